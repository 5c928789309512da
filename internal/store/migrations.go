package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// Well-known folder ids seeded by the first migration.
const (
	folderRootID     = "folder-root"
	folderInboxID    = "folder-inbox"
	folderDraftsID   = "folder-drafts"
	folderSentID     = "folder-sent"
	folderCalendarID = "folder-calendar"
)

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT REFERENCES folders(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	folder_id      TEXT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
	message_id     TEXT NOT NULL DEFAULT '',
	subject        TEXT,
	sender_name    TEXT,
	sender_address TEXT,
	received_at    TEXT,
	recipients     TEXT NOT NULL DEFAULT '[]',
	body           TEXT,
	unread         INTEGER,
	attachments    TEXT NOT NULL DEFAULT '[]',
	importance     INTEGER,
	categories     TEXT,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS appointments (
	id               TEXT PRIMARY KEY,
	folder_id        TEXT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
	subject          TEXT,
	start_at         TEXT,
	end_at           TEXT,
	location         TEXT,
	organizer        TEXT,
	attendees        TEXT NOT NULL DEFAULT '[]',
	body             TEXT,
	all_day          INTEGER,
	recurring        INTEGER,
	reminder_minutes INTEGER,
	categories       TEXT,
	importance       INTEGER,
	busy_status      INTEGER,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_folders_role ON folders(role);
CREATE INDEX IF NOT EXISTS idx_messages_folder_received ON messages(folder_id, received_at);
CREATE INDEX IF NOT EXISTS idx_appointments_folder_start ON appointments(folder_id, start_at);

INSERT INTO folders (id, parent_id, name, role, sort_order) VALUES
	('folder-root', NULL, 'Personal Folders', '', 0),
	('folder-inbox', 'folder-root', 'Inbox', 'inbox', 1),
	('folder-drafts', 'folder-root', 'Drafts', 'drafts', 2),
	('folder-sent', 'folder-root', 'Sent Items', 'sent', 3),
	('folder-calendar', 'folder-root', 'Calendar', 'calendar', 4);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
