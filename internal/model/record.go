package model

import "time"

// Kind identifies which listing a record belongs to.
type Kind string

const (
	KindEmail       Kind = "email"
	KindAppointment Kind = "calendar"
)

// Importance levels, matching the store's numbering.
type Importance int

const (
	ImportanceLow    Importance = 0
	ImportanceNormal Importance = 1
	ImportanceHigh   Importance = 2
)

func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "Low"
	case ImportanceHigh:
		return "High"
	default:
		return "Normal"
	}
}

// BusyStatus is how an appointment shows on the owner's free/busy view.
type BusyStatus int

const (
	BusyFree        BusyStatus = 0
	BusyTentative   BusyStatus = 1
	BusyBusy        BusyStatus = 2
	BusyOutOfOffice BusyStatus = 3
)

func (b BusyStatus) String() string {
	switch b {
	case BusyFree:
		return "Free"
	case BusyTentative:
		return "Tentative"
	case BusyBusy:
		return "Busy"
	case BusyOutOfOffice:
		return "Out of Office"
	default:
		return "Unknown"
	}
}

// Record is a normalized snapshot of one store item. Records are built
// fresh for every listing and never mutated afterwards.
type Record interface {
	// DurableID re-locates the live item in the store.
	DurableID() string
	Kind() Kind
}

// Email is the normalized view of a mail item. Every field holds a
// documented default when the source item lacks it.
type Email struct {
	// ID is the store's durable identifier for the message.
	ID string `json:"id"`

	Subject       string `json:"subject"`
	SenderName    string `json:"sender"`
	SenderAddress string `json:"sender_email"`

	// ReceivedTime is a naive local wall-clock timestamp.
	ReceivedTime time.Time `json:"received_time"`

	// Recipients are rendered "Name <address>" or "Name" descriptors.
	Recipients []string `json:"recipients"`

	Body            string     `json:"body"`
	Unread          bool       `json:"unread"`
	AttachmentCount int        `json:"attachment_count"`
	Importance      Importance `json:"importance"`
	Categories      string     `json:"categories"`
}

func (e *Email) DurableID() string { return e.ID }
func (e *Email) Kind() Kind        { return KindEmail }

// HasAttachments reports whether the message carried any attachment.
func (e *Email) HasAttachments() bool { return e.AttachmentCount > 0 }

// Appointment is the normalized view of a calendar item.
type Appointment struct {
	ID string `json:"id"`

	Subject string    `json:"subject"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`

	Location  string   `json:"location"`
	Organizer string   `json:"organizer"`
	Attendees []string `json:"attendees"`
	Body      string   `json:"body"`

	AllDay          bool       `json:"is_all_day"`
	Recurring       bool       `json:"is_recurring"`
	ReminderMinutes int        `json:"reminder_minutes"`
	Categories      string     `json:"categories"`
	Importance      Importance `json:"importance"`
	BusyStatus      BusyStatus `json:"busy_status"`
}

func (a *Appointment) DurableID() string { return a.ID }
func (a *Appointment) Kind() Kind        { return KindAppointment }

// TimestampLayout is the display and storage format for naive timestamps.
const TimestampLayout = "2006-01-02 15:04:05"
