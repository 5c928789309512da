package query

import (
	"time"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// NormalizeMail maps a raw mail item onto a model.Email. Absent
// optional fields take their defaults: empty strings, false, zero
// counts and Normal importance. It fails only when the item has no
// durable id.
func NormalizeMail(raw *source.RawMail) (*model.Email, error) {
	if raw.EntryID == "" {
		return nil, apperr.PartialItem("mail item has no entry id", nil)
	}

	return &model.Email{
		ID:              raw.EntryID,
		Subject:         source.StringValue(raw.Subject),
		SenderName:      source.StringValue(raw.SenderName),
		SenderAddress:   source.StringValue(raw.SenderAddress),
		ReceivedTime:    naiveLocal(raw.ReceivedTime),
		Recipients:      descriptors(raw.Recipients),
		Body:            source.StringValue(raw.Body),
		Unread:          boolValue(raw.Unread),
		AttachmentCount: len(raw.Attachments),
		Importance:      importance(raw.Importance),
		Categories:      source.StringValue(raw.Categories),
	}, nil
}

// NormalizeAppointment maps a raw calendar item onto a
// model.Appointment. Reminder minutes default to 0, importance to
// Normal and busy status to Busy.
func NormalizeAppointment(raw *source.RawAppointment) (*model.Appointment, error) {
	if raw.EntryID == "" {
		return nil, apperr.PartialItem("calendar item has no entry id", nil)
	}

	busy := model.BusyBusy
	if raw.BusyStatus != nil {
		busy = model.BusyStatus(*raw.BusyStatus)
	}

	reminder := 0
	if raw.ReminderMinutes != nil {
		reminder = *raw.ReminderMinutes
	}

	return &model.Appointment{
		ID:              raw.EntryID,
		Subject:         source.StringValue(raw.Subject),
		Start:           naiveLocal(raw.Start),
		End:             naiveLocal(raw.End),
		Location:        source.StringValue(raw.Location),
		Organizer:       source.StringValue(raw.Organizer),
		Attendees:       descriptors(raw.Attendees),
		Body:            source.StringValue(raw.Body),
		AllDay:          boolValue(raw.AllDay),
		Recurring:       boolValue(raw.Recurring),
		ReminderMinutes: reminder,
		Categories:      source.StringValue(raw.Categories),
		Importance:      importance(raw.Importance),
		BusyStatus:      busy,
	}, nil
}

// Descriptor renders a recipient as "Name <address>", or the name
// alone when there is no address. A recipient with only an address is
// rendered as the address.
func Descriptor(r source.Recipient) string {
	addr := source.StringValue(r.Address)
	switch {
	case addr == "":
		return r.Name
	case r.Name == "":
		return addr
	default:
		return r.Name + " <" + addr + ">"
	}
}

func descriptors(rs []source.Recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, Descriptor(r))
	}
	return out
}

func boolValue(p *bool) bool {
	return p != nil && *p
}

func importance(p *int) model.Importance {
	if p == nil {
		return model.ImportanceNormal
	}
	return model.Importance(*p)
}

// naiveLocal drops t's zone and reads its wall clock in the local zone.
// The zero time stays zero.
func naiveLocal(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}
