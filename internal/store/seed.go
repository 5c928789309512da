package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// CreateFolder adds a folder under parentID (empty for a top-level
// folder) and returns its id.
func (s *SQLiteStore) CreateFolder(
	ctx context.Context, parentID, name string,
) (string, error) {
	id := uuid.New().String()

	var parent interface{}
	if parentID != "" {
		parent = parentID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, parent_id, name, sort_order)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM folders))`,
		id, parent, name,
	)
	if err != nil {
		return "", fmt.Errorf("creating folder %q: %w", name, err)
	}
	return id, nil
}

// InsertMessage stores m in the given folder. A new durable id is
// generated when m.EntryID is empty; the id is returned.
func (s *SQLiteStore) InsertMessage(
	ctx context.Context, folderID string, m source.RawMail,
) (string, error) {
	if m.EntryID == "" {
		m.EntryID = uuid.New().String()
	}

	recipients, err := encodeRecipients(m.Recipients)
	if err != nil {
		return "", fmt.Errorf("marshaling recipients for %s: %w", m.EntryID, err)
	}
	attachments, err := encodeAttachments(m.Attachments)
	if err != nil {
		return "", fmt.Errorf("marshaling attachments for %s: %w", m.EntryID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, folder_id, message_id, subject, sender_name,
			sender_address, received_at, recipients, body, unread,
			attachments, importance, categories
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.EntryID, folderID, m.MessageID,
		toNullString(m.Subject), toNullString(m.SenderName),
		toNullString(m.SenderAddress), toNullTime(m.ReceivedTime),
		recipients, toNullString(m.Body), toNullBool(m.Unread),
		attachments, toNullInt(m.Importance), toNullString(m.Categories),
	)
	if err != nil {
		return "", fmt.Errorf("inserting message %s: %w", m.EntryID, err)
	}
	return m.EntryID, nil
}

// InsertAppointment stores a in the given folder and returns its id.
func (s *SQLiteStore) InsertAppointment(
	ctx context.Context, folderID string, a source.RawAppointment,
) (string, error) {
	if a.EntryID == "" {
		a.EntryID = uuid.New().String()
	}

	attendees, err := encodeRecipients(a.Attendees)
	if err != nil {
		return "", fmt.Errorf("marshaling attendees for %s: %w", a.EntryID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO appointments (
			id, folder_id, subject, start_at, end_at, location,
			organizer, attendees, body, all_day, recurring,
			reminder_minutes, categories, importance, busy_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EntryID, folderID, toNullString(a.Subject),
		toNullTime(a.Start), toNullTime(a.End), toNullString(a.Location),
		toNullString(a.Organizer), attendees, toNullString(a.Body),
		toNullBool(a.AllDay), toNullBool(a.Recurring),
		toNullInt(a.ReminderMinutes), toNullString(a.Categories),
		toNullInt(a.Importance), toNullInt(a.BusyStatus),
	)
	if err != nil {
		return "", fmt.Errorf("inserting appointment %s: %w", a.EntryID, err)
	}
	return a.EntryID, nil
}

// IsEmpty reports whether the store holds no messages and no appointments.
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT (SELECT COUNT(*) FROM messages) + (SELECT COUNT(*) FROM appointments)")
	if err != nil {
		return false, fmt.Errorf("counting items: %w", err)
	}
	return n == 0, nil
}

// SeedDemo fills an empty store with a few messages and appointments
// relative to now, so the server can be tried without a real mailbox.
func (s *SQLiteStore) SeedDemo(ctx context.Context, now time.Time) error {
	projects, err := s.CreateFolder(ctx, folderInboxID, "Projects")
	if err != nil {
		return err
	}

	day := func(offset int, hour int) time.Time {
		y, m, d := now.AddDate(0, 0, offset).Date()
		return time.Date(y, m, d, hour, 0, 0, 0, time.Local)
	}

	messages := []struct {
		folder string
		mail   source.RawMail
	}{
		{folderInboxID, source.RawMail{
			MessageID:     "<welcome@outlook-mcp.local>",
			Subject:       source.Ptr("Welcome to your local mailbox"),
			SenderName:    source.Ptr("Outlook MCP"),
			SenderAddress: source.Ptr("noreply@outlook-mcp.local"),
			ReceivedTime:  day(0, 8),
			Recipients:    []source.Recipient{s.owner},
			Body:          source.Ptr("This mailbox is stored in SQLite. Try search_emails with \"budget OR roadmap\"."),
			Unread:        source.Ptr(true),
		}},
		{folderInboxID, source.RawMail{
			MessageID:     "<budget-q3@example.com>",
			Subject:       source.Ptr("Q3 budget review"),
			SenderName:    source.Ptr("Alice Chen"),
			SenderAddress: source.Ptr("alice@example.com"),
			ReceivedTime:  day(-2, 14),
			Recipients:    []source.Recipient{s.owner, {Name: "Bob Ortiz", Address: source.Ptr("bob@example.com")}},
			Body:          source.Ptr("Numbers attached. Please send comments by Friday."),
			Unread:        source.Ptr(false),
			Attachments:   []source.Attachment{{FileName: "budget-q3.xlsx", Size: 48213}},
			Importance:    source.Ptr(2),
			Categories:    source.Ptr("Finance"),
		}},
		{projects, source.RawMail{
			MessageID:     "<roadmap@example.com>",
			Subject:       source.Ptr("Roadmap draft"),
			SenderName:    source.Ptr("Bob Ortiz"),
			SenderAddress: source.Ptr("bob@example.com"),
			ReceivedTime:  day(-5, 10),
			Recipients:    []source.Recipient{s.owner},
			Body:          source.Ptr("First cut of the roadmap, feedback welcome."),
		}},
	}
	for _, m := range messages {
		if _, err := s.InsertMessage(ctx, m.folder, m.mail); err != nil {
			return err
		}
	}

	appointments := []source.RawAppointment{
		{
			Subject:         source.Ptr("Team standup"),
			Start:           day(1, 9),
			End:             day(1, 9).Add(15 * time.Minute),
			Location:        source.Ptr("Room 4"),
			Organizer:       source.Ptr("Alice Chen"),
			Attendees:       []source.Recipient{{Name: "Alice Chen", Address: source.Ptr("alice@example.com")}, s.owner},
			Recurring:       source.Ptr(true),
			ReminderMinutes: source.Ptr(10),
			BusyStatus:      source.Ptr(2),
		},
		{
			Subject:    source.Ptr("Budget sign-off"),
			Start:      day(3, 15),
			End:        day(3, 16),
			Location:   source.Ptr("Video call"),
			Organizer:  source.Ptr("Bob Ortiz"),
			Body:       source.Ptr("Final review of the Q3 budget."),
			BusyStatus: source.Ptr(1),
		},
	}
	for _, a := range appointments {
		if _, err := s.InsertAppointment(ctx, folderCalendarID, a); err != nil {
			return err
		}
	}

	return nil
}
