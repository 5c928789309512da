package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

func TestDescriptor(t *testing.T) {
	tests := []struct {
		name string
		in   source.Recipient
		want string
	}{
		{"name and address", source.Recipient{Name: "Ann", Address: source.Ptr("ann@example.com")}, "Ann <ann@example.com>"},
		{"name only", source.Recipient{Name: "Ann"}, "Ann"},
		{"empty address", source.Recipient{Name: "Ann", Address: source.Ptr("")}, "Ann"},
		{"address only", source.Recipient{Address: source.Ptr("ann@example.com")}, "ann@example.com"},
		{"nothing", source.Recipient{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Descriptor(tt.in))
		})
	}
}

func TestNormalizeMailDefaults(t *testing.T) {
	e, err := NormalizeMail(&source.RawMail{EntryID: "m1"})
	require.NoError(t, err)

	assert.Equal(t, &model.Email{
		ID:         "m1",
		Recipients: []string{},
		Importance: model.ImportanceNormal,
	}, e)
	assert.False(t, e.HasAttachments())
}

func TestNormalizeMail(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*3600)
	raw := &source.RawMail{
		EntryID:       "m1",
		Subject:       source.Ptr("Hi"),
		SenderName:    source.Ptr("Ann"),
		SenderAddress: source.Ptr("ann@example.com"),
		ReceivedTime:  time.Date(2024, 5, 10, 8, 30, 0, 0, zone),
		Recipients: []source.Recipient{
			{Name: "Bob", Address: source.Ptr("bob@example.com")},
			{Name: "Team"},
		},
		Body:        source.Ptr("hello"),
		Unread:      source.Ptr(true),
		Attachments: []source.Attachment{{FileName: "a.txt"}, {FileName: "b.txt"}},
		Importance:  source.Ptr(2),
		Categories:  source.Ptr("Work"),
	}

	e, err := NormalizeMail(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hi", e.Subject)
	assert.Equal(t, []string{"Bob <bob@example.com>", "Team"}, e.Recipients)
	assert.True(t, e.Unread)
	assert.Equal(t, 2, e.AttachmentCount)
	assert.Equal(t, model.ImportanceHigh, e.Importance)
	assert.Equal(t, "Work", e.Categories)

	// Wall clock kept, zone dropped.
	assert.Equal(t, "2024-05-10 08:30:00", e.ReceivedTime.Format(model.TimestampLayout))
	assert.Equal(t, time.Local, e.ReceivedTime.Location())
}

func TestNormalizeAppointmentDefaults(t *testing.T) {
	a, err := NormalizeAppointment(&source.RawAppointment{EntryID: "a1"})
	require.NoError(t, err)

	assert.Equal(t, model.BusyBusy, a.BusyStatus)
	assert.Equal(t, model.ImportanceNormal, a.Importance)
	assert.Equal(t, 0, a.ReminderMinutes)
	assert.False(t, a.AllDay)
	assert.False(t, a.Recurring)
	assert.True(t, a.Start.IsZero())
	assert.Empty(t, a.Location)
	assert.Empty(t, a.Attendees)
}

func TestNormalizeAppointmentKeepsValues(t *testing.T) {
	a, err := NormalizeAppointment(&source.RawAppointment{
		EntryID:         "a1",
		BusyStatus:      source.Ptr(0),
		ReminderMinutes: source.Ptr(15),
		AllDay:          source.Ptr(true),
		Attendees:       []source.Recipient{{Name: "Ann", Address: source.Ptr("ann@example.com")}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.BusyFree, a.BusyStatus)
	assert.Equal(t, 15, a.ReminderMinutes)
	assert.True(t, a.AllDay)
	assert.Equal(t, []string{"Ann <ann@example.com>"}, a.Attendees)
}

func TestNormalizeMissingID(t *testing.T) {
	_, err := NormalizeMail(&source.RawMail{})
	assert.True(t, apperr.Is(err, apperr.KindPartialItem))

	_, err = NormalizeAppointment(&source.RawAppointment{})
	assert.True(t, apperr.Is(err, apperr.KindPartialItem))
}
