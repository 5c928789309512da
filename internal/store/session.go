package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// Folder is a folder row of the local store.
type Folder struct {
	store *SQLiteStore
	id    string
	name  string
}

// ID returns the folder's row id.
func (f *Folder) ID() string { return f.id }

// Name returns the folder's display name.
func (f *Folder) Name() string { return f.name }

// Children returns the folder's immediate subfolders.
func (f *Folder) Children(ctx context.Context) ([]source.Folder, error) {
	return f.store.folders(ctx, "parent_id = ?", f.id)
}

// Messages returns mail items sorted newest-first.
func (f *Folder) Messages(
	ctx context.Context, q source.ItemQuery,
) ([]source.RawMail, error) {
	return f.store.messages(ctx, f.id, q)
}

// Appointments returns calendar items sorted earliest-first.
func (f *Folder) Appointments(
	ctx context.Context, q source.ItemQuery,
) ([]source.RawAppointment, error) {
	return f.store.appointments(ctx, f.id, q)
}

type folderRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (s *SQLiteStore) folders(
	ctx context.Context, where string, args ...interface{},
) ([]source.Folder, error) {
	var rows []folderRow
	query := "SELECT id, name FROM folders WHERE " + where +
		" ORDER BY sort_order, name"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}

	out := make([]source.Folder, 0, len(rows))
	for _, r := range rows {
		out = append(out, &Folder{store: s, id: r.ID, name: r.Name})
	}
	return out, nil
}

// FolderByRole returns the folder seeded for a well-known role.
func (s *SQLiteStore) FolderByRole(
	ctx context.Context, role source.Role,
) (*Folder, error) {
	var r folderRow
	err := s.db.GetContext(ctx, &r,
		"SELECT id, name FROM folders WHERE role = ? LIMIT 1", string(role))
	if isNoRows(err) {
		return nil, apperr.NotFound("no %s folder in local store", role)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s folder: %w", role, err)
	}
	return &Folder{store: s, id: r.ID, name: r.Name}, nil
}

// session is the source.Conn of the local store. Closing it leaves the
// database open for the next request.
type session struct {
	store *SQLiteStore
}

func (c *session) DefaultFolder(
	ctx context.Context, role source.Role,
) (source.Folder, error) {
	f, err := c.store.FolderByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *session) Folders(ctx context.Context) ([]source.Folder, error) {
	return c.store.folders(ctx, "parent_id IS NULL")
}

func (c *session) FetchMail(
	ctx context.Context, id string,
) (*source.RawMail, error) {
	var r messageRow
	err := c.store.db.GetContext(ctx, &r,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	if isNoRows(err) {
		return nil, apperr.NotFound("message %s no longer exists", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}

	m := r.toRaw()
	if m.Err != nil {
		return nil, m.Err
	}
	return &m, nil
}

func (c *session) FetchAppointment(
	ctx context.Context, id string,
) (*source.RawAppointment, error) {
	var r appointmentRow
	err := c.store.db.GetContext(ctx, &r,
		"SELECT "+appointmentColumns+" FROM appointments WHERE id = ?", id)
	if isNoRows(err) {
		return nil, apperr.NotFound("appointment %s no longer exists", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting appointment %s: %w", id, err)
	}

	a := r.toRaw()
	if a.Err != nil {
		return nil, a.Err
	}
	return &a, nil
}

// SubmitMail files msg into Drafts, or into Sent Items when sending.
// The local store has no transport, so sending means recording.
func (c *session) SubmitMail(
	ctx context.Context, msg source.OutgoingMail, draft bool,
) error {
	if len(msg.To) == 0 {
		return apperr.Action("message has no recipient", nil)
	}

	to, err := parseRecipients(msg.To)
	if err != nil {
		return err
	}
	cc, err := parseRecipients(msg.Cc)
	if err != nil {
		return err
	}

	role := source.RoleSent
	if draft {
		role = source.RoleDrafts
	}
	folder, err := c.store.FolderByRole(ctx, role)
	if err != nil {
		return err
	}

	_, err = c.store.InsertMessage(ctx, folder.ID(), source.RawMail{
		MessageID:     fmt.Sprintf("<%s@outlook-mcp.local>", uuid.New().String()),
		Subject:       source.Ptr(msg.Subject),
		SenderName:    source.Ptr(c.store.owner.Name),
		SenderAddress: c.store.owner.Address,
		ReceivedTime:  time.Now(),
		Recipients:    append(to, cc...),
		Body:          source.Ptr(msg.Body),
		Unread:        source.Ptr(false),
	})
	if err != nil {
		return apperr.Action("storing outgoing message", err)
	}
	return nil
}

func (c *session) SaveAppointment(
	ctx context.Context, appt source.NewAppointment,
) (string, error) {
	attendees, err := parseRecipients(appt.Attendees)
	if err != nil {
		return "", err
	}

	folder, err := c.store.FolderByRole(ctx, source.RoleCalendar)
	if err != nil {
		return "", err
	}

	raw := source.RawAppointment{
		Subject:    source.Ptr(appt.Subject),
		Start:      appt.Start,
		End:        appt.End,
		Organizer:  source.Ptr(c.store.owner.Name),
		Attendees:  attendees,
		BusyStatus: source.Ptr(2),
	}
	if appt.Location != "" {
		raw.Location = source.Ptr(appt.Location)
	}
	if appt.Body != "" {
		raw.Body = source.Ptr(appt.Body)
	}

	id, err := c.store.InsertAppointment(ctx, folder.ID(), raw)
	if err != nil {
		return "", apperr.Action("storing appointment", err)
	}
	return id, nil
}

func (c *session) Close() error { return nil }

// parseRecipients validates addresses the way a mail client would and
// rejects the whole list on the first bad entry.
func parseRecipients(addrs []string) ([]source.Recipient, error) {
	var out []source.Recipient
	for _, raw := range addrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		list, err := mail.ParseAddressList(raw)
		if err != nil {
			return nil, apperr.Action(
				fmt.Sprintf("invalid recipient %q", raw), err,
			)
		}
		for _, a := range list {
			out = append(out, source.Recipient{
				Name:    a.Name,
				Address: source.Ptr(a.Address),
			})
		}
	}
	return out, nil
}
