package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
	"github.com/xmubeta/outlook-mcp-server/internal/store"
	"github.com/xmubeta/outlook-mcp-server/internal/testutil"
)

func subjects(items []source.RawMail) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, source.StringValue(m.Subject))
	}
	return out
}

func TestDefaultFoldersSeeded(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	conn, err := s.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	for role, name := range map[source.Role]string{
		source.RoleInbox:    "Inbox",
		source.RoleDrafts:   "Drafts",
		source.RoleSent:     "Sent Items",
		source.RoleCalendar: "Calendar",
	} {
		f, err := conn.DefaultFolder(ctx, role)
		require.NoError(t, err, role)
		assert.Equal(t, name, f.Name())
	}

	roots, err := conn.Folders(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "Personal Folders", roots[0].Name())

	children, err := roots[0].Children(ctx)
	require.NoError(t, err)
	require.Len(t, children, 4)
	assert.Equal(t, "Inbox", children[0].Name())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailbox.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("kept", "Ann", time.Now()))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	items, err := testutil.Folder(t, s, source.RoleInbox).
		Messages(context.Background(), source.ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, subjects(items))
}

func TestMessagesOrderAndWindow(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)

	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("old", "Ann", now.AddDate(0, 0, -10)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("middle", "Ann", now.AddDate(0, 0, -2)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("newest", "Ann", now.Add(-time.Hour)))

	noTime := testutil.Mail("undated", "Ann", time.Time{})
	testutil.AddMail(t, s, inbox.ID(), noTime)

	all, err := inbox.Messages(context.Background(), source.ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "middle", "old", "undated"}, subjects(all))
	assert.True(t, all[3].ReceivedTime.IsZero())

	windowed, err := inbox.Messages(context.Background(), source.ItemQuery{
		Since: now.AddDate(0, 0, -7),
		Until: now,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "middle"}, subjects(windowed))
}

func TestMessagesRestriction(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	now := time.Now()

	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("Budget review", "Carol", now))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("Lunch", "ALICE", now.Add(-time.Minute)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("50% off", "Shop", now.Add(-2*time.Minute)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("Unrelated", "Dave", now.Add(-3*time.Minute)))

	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{"subject", []string{"budget"}, []string{"Budget review"}},
		{"sender any case", []string{"alice"}, []string{"Lunch"}},
		{"disjunction", []string{"budget", "alice"}, []string{"Budget review", "Lunch"}},
		{"wildcard literal", []string{"50%"}, []string{"50% off"}},
		{"underscore literal", []string{"_"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := inbox.Messages(context.Background(), source.ItemQuery{
				Restrict: &source.Restriction{
					Terms: tt.terms,
					Fields: []source.SearchField{
						source.FieldSubject, source.FieldSenderName, source.FieldBody,
					},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, subjects(items))
		})
	}
}

func TestRestrictionFoldsUnicode(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	received := time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local)

	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("\u212Aelvin scale", "Frank", received))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("GRÖSSE 42", "Dora", received))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("100% done_now", "Eve", received))

	tests := []struct {
		term string
		want []string
	}{
		{"kelvin", []string{"\u212Aelvin scale"}},
		{"grösse", []string{"GRÖSSE 42"}},
		{"%", []string{"100% done_now"}},
		{"e_n", []string{"100% done_now"}},
		{"_", []string{"100% done_now"}},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			items, err := inbox.Messages(context.Background(), source.ItemQuery{
				Restrict: &source.Restriction{
					Terms:  []string{tt.term},
					Fields: []source.SearchField{source.FieldSubject},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, subjects(items))
		})
	}
}

func TestRestrictionUnsupported(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	cal := testutil.Folder(t, s, source.RoleCalendar)
	ctx := context.Background()

	_, err := inbox.Messages(ctx, source.ItemQuery{
		Restrict: &source.Restriction{
			Terms:  []string{"room"},
			Fields: []source.SearchField{source.FieldLocation},
		},
	})
	assert.ErrorIs(t, err, source.ErrRestrictUnsupported)

	_, err = cal.Appointments(ctx, source.ItemQuery{
		Restrict: &source.Restriction{
			Terms:  []string{"ann"},
			Fields: []source.SearchField{source.FieldSenderName},
		},
	})
	assert.ErrorIs(t, err, source.ErrRestrictUnsupported)
}

func TestAppointmentsOrderAndWindow(t *testing.T) {
	s := testutil.NewTestStore(t)
	cal := testutil.Folder(t, s, source.RoleCalendar)
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)

	testutil.AddAppointment(t, s, cal.ID(), testutil.Appointment("later", day.Add(15*time.Hour)))
	testutil.AddAppointment(t, s, cal.ID(), testutil.Appointment("earlier", day.Add(9*time.Hour)))
	testutil.AddAppointment(t, s, cal.ID(), testutil.Appointment("next month", day.AddDate(0, 1, 0)))
	testutil.AddAppointment(t, s, cal.ID(), source.RawAppointment{Subject: source.Ptr("no start")})

	items, err := cal.Appointments(context.Background(), source.ItemQuery{
		Since: day,
		Until: day.AddDate(0, 0, 2),
	})
	require.NoError(t, err)

	var got []string
	for _, a := range items {
		got = append(got, source.StringValue(a.Subject))
	}
	assert.Equal(t, []string{"earlier", "later", "no start"}, got)
}

func TestOptionalFieldsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	ctx := context.Background()

	id := testutil.AddMail(t, s, inbox.ID(), source.RawMail{
		ReceivedTime: time.Date(2024, 5, 10, 8, 30, 0, 0, time.Local),
		Attachments:  []source.Attachment{{FileName: "a.pdf", Size: 10}},
		Recipients: []source.Recipient{
			{Name: "Bob", Address: source.Ptr("bob@example.com")},
			{Name: "Distribution list"},
		},
	})

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	m, err := conn.FetchMail(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, m.Subject)
	assert.Nil(t, m.Unread)
	assert.Nil(t, m.Importance)
	assert.Equal(t, "2024-05-10 08:30:00", m.ReceivedTime.Format("2006-01-02 15:04:05"))
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "a.pdf", m.Attachments[0].FileName)
	require.Len(t, m.Recipients, 2)
	assert.Nil(t, m.Recipients[1].Address)
}

func TestFetchMissing(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	_, err = conn.FetchMail(ctx, "gone")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = conn.FetchAppointment(ctx, "gone")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitMail(t *testing.T) {
	s := testutil.NewTestStore(t)
	s.SetOwner("Pat", "pat@example.com")
	ctx := context.Background()

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	msg := source.OutgoingMail{
		To:      []string{"Bob <bob@example.com>"},
		Cc:      []string{"carol@example.com"},
		Subject: "Hello",
		Body:    "Hi there",
	}
	require.NoError(t, conn.SubmitMail(ctx, msg, true))
	require.NoError(t, conn.SubmitMail(ctx, msg, false))

	for _, role := range []source.Role{source.RoleDrafts, source.RoleSent} {
		items, err := testutil.Folder(t, s, role).Messages(ctx, source.ItemQuery{})
		require.NoError(t, err)
		require.Len(t, items, 1, role)

		m := items[0]
		assert.Equal(t, "Hello", source.StringValue(m.Subject))
		assert.Equal(t, "Pat", source.StringValue(m.SenderName))
		assert.NotEmpty(t, m.MessageID)
		require.Len(t, m.Recipients, 2)
		assert.Equal(t, "Bob", m.Recipients[0].Name)
		assert.Equal(t, "carol@example.com", source.StringValue(m.Recipients[1].Address))
	}
}

func TestSubmitMailRejectsBadRecipients(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	err = conn.SubmitMail(ctx, source.OutgoingMail{To: []string{"not an address"}}, true)
	assert.True(t, apperr.Is(err, apperr.KindAction))

	err = conn.SubmitMail(ctx, source.OutgoingMail{}, true)
	assert.True(t, apperr.Is(err, apperr.KindAction))
}

func TestSaveAppointment(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	id, err := conn.SaveAppointment(ctx, source.NewAppointment{
		Subject:   "Planning",
		Start:     start,
		End:       start.Add(time.Hour),
		Location:  "Room 1",
		Attendees: []string{"ann@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	a, err := conn.FetchAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Planning", source.StringValue(a.Subject))
	assert.Equal(t, "Room 1", source.StringValue(a.Location))
	assert.Nil(t, a.Body)
	assert.True(t, a.Start.Equal(start))
	assert.Len(t, a.Attendees, 2)
}

func TestSeedDemo(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, s.SeedDemo(ctx, time.Now()))

	empty, err = s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	conn, err := s.Connect(ctx)
	require.NoError(t, err)

	projects, err := source.ResolveFolder(ctx, conn, "projects")
	require.NoError(t, err)
	require.NotNil(t, projects)

	items, err := projects.Messages(ctx, source.ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Roadmap draft"}, subjects(items))
}
