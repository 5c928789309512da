package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// SQLiteStore is a local mailbox and calendar kept in a SQLite database.
// It implements source.Gateway.
type SQLiteStore struct {
	db    *sqlx.DB
	owner source.Recipient
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db: db,
		owner: source.Recipient{
			Name:    "Me",
			Address: source.Ptr("me@localhost"),
		},
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// SetOwner sets the mailbox owner used as sender and organizer of
// items created through the store.
func (s *SQLiteStore) SetOwner(name, address string) {
	s.owner = source.Recipient{Name: name, Address: source.Ptr(address)}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Connect verifies the database is reachable and returns a session.
func (s *SQLiteStore) Connect(ctx context.Context) (source.Conn, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, apperr.Connection("opening local mailbox", err)
	}
	return &session{store: s}, nil
}

// --- rows ---

const messageColumns = `id, folder_id, message_id, subject, sender_name,
	sender_address, received_at, recipients, body, unread, attachments,
	importance, categories`

const appointmentColumns = `id, folder_id, subject, start_at, end_at,
	location, organizer, attendees, body, all_day, recurring,
	reminder_minutes, categories, importance, busy_status`

type messageRow struct {
	ID            string         `db:"id"`
	FolderID      string         `db:"folder_id"`
	MessageID     string         `db:"message_id"`
	Subject       sql.NullString `db:"subject"`
	SenderName    sql.NullString `db:"sender_name"`
	SenderAddress sql.NullString `db:"sender_address"`
	ReceivedAt    sql.NullString `db:"received_at"`
	Recipients    string         `db:"recipients"`
	Body          sql.NullString `db:"body"`
	Unread        sql.NullBool   `db:"unread"`
	Attachments   string         `db:"attachments"`
	Importance    sql.NullInt64  `db:"importance"`
	Categories    sql.NullString `db:"categories"`
}

type appointmentRow struct {
	ID              string         `db:"id"`
	FolderID        string         `db:"folder_id"`
	Subject         sql.NullString `db:"subject"`
	StartAt         sql.NullString `db:"start_at"`
	EndAt           sql.NullString `db:"end_at"`
	Location        sql.NullString `db:"location"`
	Organizer       sql.NullString `db:"organizer"`
	Attendees       string         `db:"attendees"`
	Body            sql.NullString `db:"body"`
	AllDay          sql.NullBool   `db:"all_day"`
	Recurring       sql.NullBool   `db:"recurring"`
	ReminderMinutes sql.NullInt64  `db:"reminder_minutes"`
	Categories      sql.NullString `db:"categories"`
	Importance      sql.NullInt64  `db:"importance"`
	BusyStatus      sql.NullInt64  `db:"busy_status"`
}

// recipientJSON is the stored form of a source.Recipient.
type recipientJSON struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
}

type attachmentJSON struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

func (r messageRow) toRaw() source.RawMail {
	m := source.RawMail{
		EntryID:       r.ID,
		MessageID:     r.MessageID,
		Subject:       nullString(r.Subject),
		SenderName:    nullString(r.SenderName),
		SenderAddress: nullString(r.SenderAddress),
		Body:          nullString(r.Body),
		Unread:        nullBool(r.Unread),
		Importance:    nullInt(r.Importance),
		Categories:    nullString(r.Categories),
	}

	if r.ReceivedAt.Valid {
		t, err := parseTimestamp(r.ReceivedAt.String)
		if err != nil {
			m.Err = fmt.Errorf("message %s received_at: %w", r.ID, err)
			return m
		}
		m.ReceivedTime = t
	}

	recipients, err := decodeRecipients(r.Recipients)
	if err != nil {
		m.Err = fmt.Errorf("message %s recipients: %w", r.ID, err)
		return m
	}
	m.Recipients = recipients

	var attachments []attachmentJSON
	if err := json.Unmarshal([]byte(r.Attachments), &attachments); err != nil {
		m.Err = fmt.Errorf("message %s attachments: %w", r.ID, err)
		return m
	}
	for _, a := range attachments {
		m.Attachments = append(m.Attachments, source.Attachment{
			FileName: a.FileName,
			Size:     a.Size,
		})
	}

	return m
}

func (r appointmentRow) toRaw() source.RawAppointment {
	a := source.RawAppointment{
		EntryID:         r.ID,
		Subject:         nullString(r.Subject),
		Location:        nullString(r.Location),
		Organizer:       nullString(r.Organizer),
		Body:            nullString(r.Body),
		AllDay:          nullBool(r.AllDay),
		Recurring:       nullBool(r.Recurring),
		ReminderMinutes: nullInt(r.ReminderMinutes),
		Categories:      nullString(r.Categories),
		Importance:      nullInt(r.Importance),
		BusyStatus:      nullInt(r.BusyStatus),
	}

	var err error
	if r.StartAt.Valid {
		if a.Start, err = parseTimestamp(r.StartAt.String); err != nil {
			a.Err = fmt.Errorf("appointment %s start_at: %w", r.ID, err)
			return a
		}
	}
	if r.EndAt.Valid {
		if a.End, err = parseTimestamp(r.EndAt.String); err != nil {
			a.Err = fmt.Errorf("appointment %s end_at: %w", r.ID, err)
			return a
		}
	}

	if a.Attendees, err = decodeRecipients(r.Attendees); err != nil {
		a.Err = fmt.Errorf("appointment %s attendees: %w", r.ID, err)
	}

	return a
}

// --- queries ---

// columnFor maps a search field onto a column of the given table.
func columnFor(table string, f source.SearchField) (string, bool) {
	switch f {
	case source.FieldSubject:
		return "subject", true
	case source.FieldBody:
		return "body", true
	case source.FieldSenderName:
		return "sender_name", table == "messages"
	case source.FieldLocation:
		return "location", table == "appointments"
	}
	return "", false
}

// containsFoldFunc exposes source.ContainsFold to SQL so push-down
// filtering and the local predicate agree on every input.
const containsFoldFunc = "contains_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(containsFoldFunc, 2, containsFold)
}

func containsFold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if source.ContainsFold(sqlText(args[0]), sqlText(args[1])) {
		return int64(1), nil
	}
	return int64(0), nil
}

// sqlText reads a TEXT argument; NULL reads as "".
func sqlText(v driver.Value) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// restrictionClause renders r as a SQL disjunction of contains_fold
// calls, one per term and field.
func restrictionClause(
	table string, r *source.Restriction,
) (string, []interface{}, error) {
	if len(r.Terms) == 0 || len(r.Fields) == 0 {
		return "", nil, source.ErrRestrictUnsupported
	}

	var conditions []string
	var args []interface{}

	for _, term := range r.Terms {
		for _, f := range r.Fields {
			col, ok := columnFor(table, f)
			if !ok {
				return "", nil, source.ErrRestrictUnsupported
			}
			conditions = append(conditions,
				fmt.Sprintf("%s(%s, ?)", containsFoldFunc, col))
			args = append(args, term)
		}
	}

	return "(" + strings.Join(conditions, " OR ") + ")", args, nil
}

func (s *SQLiteStore) messages(
	ctx context.Context, folderID string, q source.ItemQuery,
) ([]source.RawMail, error) {
	conditions := []string{"folder_id = ?"}
	args := []interface{}{folderID}

	if !q.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, formatTimestamp(q.Since))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "received_at <= ?")
		args = append(args, formatTimestamp(q.Until))
	}
	if q.Restrict != nil {
		clause, rargs, err := restrictionClause("messages", q.Restrict)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, clause)
		args = append(args, rargs...)
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY received_at DESC, rowid DESC"

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	items := make([]source.RawMail, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toRaw())
	}
	return items, nil
}

func (s *SQLiteStore) appointments(
	ctx context.Context, folderID string, q source.ItemQuery,
) ([]source.RawAppointment, error) {
	conditions := []string{"folder_id = ?"}
	args := []interface{}{folderID}

	// Appointments without a start are kept; callers decide about them.
	if !q.Since.IsZero() {
		conditions = append(conditions, "(start_at IS NULL OR start_at >= ?)")
		args = append(args, formatTimestamp(q.Since))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "(start_at IS NULL OR start_at <= ?)")
		args = append(args, formatTimestamp(q.Until))
	}
	if q.Restrict != nil {
		clause, rargs, err := restrictionClause("appointments", q.Restrict)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, clause)
		args = append(args, rargs...)
	}

	query := "SELECT " + appointmentColumns + " FROM appointments WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY start_at IS NULL, start_at ASC, rowid ASC"

	var rows []appointmentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}

	items := make([]source.RawAppointment, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toRaw())
	}
	return items, nil
}

// --- helpers ---

func formatTimestamp(t time.Time) string {
	return t.Format(model.TimestampLayout)
}

// parseTimestamp reads a stored naive timestamp as local wall-clock time.
func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(model.TimestampLayout, s, time.Local)
}

func decodeRecipients(raw string) ([]source.Recipient, error) {
	if raw == "" {
		return nil, nil
	}
	var stored []recipientJSON
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	out := make([]source.Recipient, 0, len(stored))
	for _, r := range stored {
		out = append(out, source.Recipient{Name: r.Name, Address: r.Address})
	}
	return out, nil
}

func encodeRecipients(rs []source.Recipient) (string, error) {
	stored := make([]recipientJSON, 0, len(rs))
	for _, r := range rs {
		stored = append(stored, recipientJSON{Name: r.Name, Address: r.Address})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeAttachments(as []source.Attachment) (string, error) {
	stored := make([]attachmentJSON, 0, len(as))
	for _, a := range as {
		stored = append(stored, attachmentJSON{FileName: a.FileName, Size: a.Size})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return source.Ptr(n.String)
}

func nullBool(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	return source.Ptr(n.Bool)
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return source.Ptr(int(n.Int64))
}

func toNullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func toNullBool(p *bool) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(boolToInt(*p)), Valid: true}
}

func toNullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(t), Valid: true}
}

// boolToInt converts a bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
