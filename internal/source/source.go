package source

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrRestrictUnsupported is returned by Folder.Messages and
// Folder.Appointments when the backend cannot evaluate the push-down
// restriction. Callers fall back to an unrestricted scan.
var ErrRestrictUnsupported = errors.New("restriction not supported by store")

// Role names a well-known folder every backend must provide.
type Role string

const (
	RoleInbox    Role = "inbox"
	RoleCalendar Role = "calendar"
	RoleDrafts   Role = "drafts"
	RoleSent     Role = "sent"
)

// SearchField is an item field a restriction term is matched against.
type SearchField string

const (
	FieldSubject    SearchField = "subject"
	FieldSenderName SearchField = "sender_name"
	FieldBody       SearchField = "body"
	FieldLocation   SearchField = "location"
)

// Restriction is a push-down filter: an item is kept when any term is a
// case-insensitive substring of any of the fields.
type Restriction struct {
	Terms  []string
	Fields []SearchField
}

// ItemQuery describes a folder scan.
type ItemQuery struct {
	// Since and Until narrow the scan by the item's primary timestamp.
	// They are hints; callers re-check the window. Zero means unbounded.
	Since time.Time
	Until time.Time

	// Restrict, when non-nil, asks the store to evaluate the filter.
	Restrict *Restriction
}

// Recipient is one addressee of a message or attendee of a meeting.
type Recipient struct {
	Name    string
	Address *string
}

// Attachment describes one file attached to a message.
type Attachment struct {
	FileName string
	Size     int64
}

// RawMail is a mail item as the store returns it. Pointer fields are
// optional: nil means the store item does not carry that property.
type RawMail struct {
	EntryID string

	Subject       *string
	SenderName    *string
	SenderAddress *string

	// ReceivedTime is zero when the item has no received timestamp.
	ReceivedTime time.Time

	Recipients  []Recipient
	Body        *string
	Unread      *bool
	Attachments []Attachment
	Importance  *int
	Categories  *string

	// MessageID is the RFC 5322 Message-ID, used for reply threading.
	MessageID string

	// Err is set when the store could not decode the item. Scanners skip
	// such items instead of failing the whole folder.
	Err error
}

// RawAppointment is a calendar item as the store returns it.
type RawAppointment struct {
	EntryID string

	Subject *string

	// Start and End are zero when absent.
	Start time.Time
	End   time.Time

	Location        *string
	Organizer       *string
	Attendees       []Recipient
	Body            *string
	AllDay          *bool
	Recurring       *bool
	ReminderMinutes *int
	Categories      *string
	Importance      *int
	BusyStatus      *int

	// Err is set when the store could not decode the item.
	Err error
}

// OutgoingMail is a message to be saved as a draft or sent.
type OutgoingMail struct {
	To      []string
	Cc      []string
	Subject string
	Body    string

	// InReplyTo is the Message-ID of the message being answered.
	InReplyTo string
}

// NewAppointment is a calendar item to be created.
type NewAppointment struct {
	Subject   string
	Start     time.Time
	End       time.Time
	Location  string
	Body      string
	Attendees []string
}

// Folder is a resolved container handle.
type Folder interface {
	Name() string

	// Children returns the folder's immediate subfolders.
	Children(ctx context.Context) ([]Folder, error)

	// Messages returns mail items sorted newest-first by received time.
	Messages(ctx context.Context, q ItemQuery) ([]RawMail, error)

	// Appointments returns calendar items sorted earliest-first by start.
	Appointments(ctx context.Context, q ItemQuery) ([]RawAppointment, error)
}

// Conn is an open session against the backing store.
type Conn interface {
	// DefaultFolder returns the folder playing the given role.
	DefaultFolder(ctx context.Context, role Role) (Folder, error)

	// Folders returns the top-level containers.
	Folders(ctx context.Context) ([]Folder, error)

	// FetchMail re-reads a live mail item by durable id. A vanished item
	// is reported as an apperr.KindNotFound error.
	FetchMail(ctx context.Context, id string) (*RawMail, error)

	// FetchAppointment re-reads a live calendar item by durable id.
	FetchAppointment(ctx context.Context, id string) (*RawAppointment, error)

	// SubmitMail saves msg to the drafts folder, or sends it.
	// Rejections are apperr.KindAction errors.
	SubmitMail(ctx context.Context, msg OutgoingMail, draft bool) error

	// SaveAppointment creates a calendar item and returns its durable id.
	SaveAppointment(ctx context.Context, appt NewAppointment) (string, error)

	Close() error
}

// Gateway opens sessions against the backing store.
type Gateway interface {
	// Connect returns an apperr.KindConnection error when the store is
	// unreachable or refuses the credentials.
	Connect(ctx context.Context) (Conn, error)
}

// ResolveFolder finds a folder by name. It searches the inbox's
// immediate children first, then walks the top-level folders, checking
// each one before its immediate children. Names compare
// case-insensitively and the first match wins. When nothing matches it
// returns nil, nil.
func ResolveFolder(
	ctx context.Context, conn Conn, name string,
) (Folder, error) {
	inbox, err := conn.DefaultFolder(ctx, RoleInbox)
	if err != nil {
		return nil, err
	}

	children, err := inbox.Children(ctx)
	if err != nil {
		return nil, err
	}
	if f := findByName(children, name); f != nil {
		return f, nil
	}

	roots, err := conn.Folders(ctx)
	if err != nil {
		return nil, err
	}

	for _, root := range roots {
		if strings.EqualFold(root.Name(), name) {
			return root, nil
		}

		subs, err := root.Children(ctx)
		if err != nil {
			return nil, err
		}
		if f := findByName(subs, name); f != nil {
			return f, nil
		}
	}

	return nil, nil
}

func findByName(folders []Folder, name string) Folder {
	for _, f := range folders {
		if strings.EqualFold(f.Name(), name) {
			return f
		}
	}
	return nil
}

// StringValue returns *p, or "" when p is nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// ContainsFold reports whether term occurs in value after both are
// lower-cased with strings.ToLower. It is the one search predicate:
// backends that filter on the server evaluate exactly this function.
func ContainsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}
