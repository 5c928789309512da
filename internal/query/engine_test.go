package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
	"github.com/xmubeta/outlook-mcp-server/internal/testutil"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)

func newTestEngine(t *testing.T) (*Engine, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewEngine(logrus.NewEntry(logger), func() time.Time { return testNow }), hook
}

// noPushdown hides a folder's filter support so every restricted
// request takes the fallback path.
type noPushdown struct {
	source.Folder
	restricted int
}

func (f *noPushdown) Messages(ctx context.Context, q source.ItemQuery) ([]source.RawMail, error) {
	if q.Restrict != nil {
		f.restricted++
		return nil, source.ErrRestrictUnsupported
	}
	return f.Folder.Messages(ctx, q)
}

func (f *noPushdown) Appointments(ctx context.Context, q source.ItemQuery) ([]source.RawAppointment, error) {
	if q.Restrict != nil {
		f.restricted++
		return nil, errors.New("filter syntax error")
	}
	return f.Folder.Appointments(ctx, q)
}

// sloppyPushdown ignores the restriction and returns a superset.
type sloppyPushdown struct {
	source.Folder
}

func (f sloppyPushdown) Messages(ctx context.Context, q source.ItemQuery) ([]source.RawMail, error) {
	q.Restrict = nil
	return f.Folder.Messages(ctx, q)
}

// staticFolder serves fixed items.
type staticFolder struct {
	mail  []source.RawMail
	appts []source.RawAppointment
}

func (f *staticFolder) Name() string { return "Static" }

func (f *staticFolder) Children(context.Context) ([]source.Folder, error) { return nil, nil }

func (f *staticFolder) Messages(context.Context, source.ItemQuery) ([]source.RawMail, error) {
	return f.mail, nil
}

func (f *staticFolder) Appointments(context.Context, source.ItemQuery) ([]source.RawAppointment, error) {
	return f.appts, nil
}

func emailIDs(es []*model.Email) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func emailSubjects(es []*model.Email) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Subject)
	}
	return out
}

func appointmentIDs(as []*model.Appointment) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func TestEmailWindow(t *testing.T) {
	since, until := EmailWindow(testNow, 7)
	assert.Equal(t, time.Date(2024, 5, 3, 12, 0, 0, 0, time.Local), since)
	assert.Equal(t, testNow, until)
}

func TestCalendarWindow(t *testing.T) {
	since, until := CalendarWindow(testNow, 14)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local), since)
	assert.Equal(t, time.Date(2024, 5, 24, 23, 59, 59, 0, time.Local), until)
}

func TestEmailsWindowLowerBound(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	e, _ := newTestEngine(t)

	for days := 1; days <= 30; days++ {
		threshold := testNow.Add(-time.Duration(days) * 24 * time.Hour)
		testutil.AddMail(t, s, inbox.ID(), testutil.Mail("edge", "x", threshold))
		testutil.AddMail(t, s, inbox.ID(), testutil.Mail("before", "x", threshold.Add(-time.Second)))
	}
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("future", "x", testNow.Add(time.Hour)))

	for _, days := range []int{1, 7, 30} {
		got, err := e.Emails(context.Background(), inbox, days, Expression{})
		require.NoError(t, err)

		threshold := testNow.Add(-time.Duration(days) * 24 * time.Hour)
		require.NotEmpty(t, got)
		for _, m := range got {
			assert.False(t, m.ReceivedTime.Before(threshold), "days=%d got %s", days, m.ReceivedTime)
			assert.False(t, m.ReceivedTime.After(testNow))
		}
		// One boundary item per day count up to days, inclusive.
		assert.Len(t, got, days+days-1)
	}
}

func TestEmailsNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	inbox := testutil.Folder(t, s, source.RoleInbox)
	e, _ := newTestEngine(t)

	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("two", "x", testNow.Add(-2*time.Hour)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("one", "x", testNow.Add(-1*time.Hour)))
	testutil.AddMail(t, s, inbox.ID(), testutil.Mail("three", "x", testNow.Add(-3*time.Hour)))

	got, err := e.Emails(context.Background(), inbox, 1, Expression{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, emailSubjects(got))
}

func TestEmailsSkipsBrokenItems(t *testing.T) {
	folder := &staticFolder{mail: []source.RawMail{
		{EntryID: "ok", ReceivedTime: testNow},
		{EntryID: "broken", ReceivedTime: testNow, Err: errors.New("bad row")},
		{ReceivedTime: testNow},
		{EntryID: "undated"},
	}}
	e, hook := newTestEngine(t)

	got, err := e.Emails(context.Background(), folder, 7, Expression{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, emailIDs(got))

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestEmailsDropsZoneBeforeComparing(t *testing.T) {
	far := time.FixedZone("UTC+14", 14*3600)
	folder := &staticFolder{mail: []source.RawMail{
		// 11:00 wall clock in a far zone reads as 11:00 local.
		{EntryID: "in", ReceivedTime: time.Date(2024, 5, 10, 11, 0, 0, 0, far)},
		{EntryID: "out", ReceivedTime: time.Date(2024, 5, 10, 13, 0, 0, 0, far)},
	}}
	e, _ := newTestEngine(t)

	got, err := e.Emails(context.Background(), folder, 1, Expression{})
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, emailIDs(got))
}

func seedSearchData(t *testing.T) (inbox, calendar source.Folder) {
	t.Helper()
	s := testutil.NewTestStore(t)
	in := testutil.Folder(t, s, source.RoleInbox)
	cal := testutil.Folder(t, s, source.RoleCalendar)

	mails := []source.RawMail{
		testutil.Mail("Lunch", "Alice Smith", testNow.Add(-time.Hour)),
		testutil.Mail("Status report", "Bob Jones", testNow.Add(-2*time.Hour)),
		testutil.Mail("ALICE's birthday", "Carol", testNow.Add(-3*time.Hour)),
		testutil.Mail("Überblick Q3", "Dora", testNow.Add(-4*time.Hour)),
		testutil.Mail("Old alice note", "Alice Smith", testNow.AddDate(0, 0, -40)),
		testutil.Mail("Nothing here", "Eve", testNow.Add(-5*time.Hour)),
		testutil.Mail("\u212Aelvin scale", "Frank", testNow.Add(-7*time.Hour)),
	}
	mails[5].Body = source.Ptr("ping bob when free")
	mails = append(mails, source.RawMail{
		Subject:      source.Ptr("no body or sender"),
		ReceivedTime: testNow.Add(-6 * time.Hour),
	})
	for _, m := range mails {
		testutil.AddMail(t, s, in.ID(), m)
	}

	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	appts := []source.RawAppointment{
		testutil.Appointment("Standup", day.Add(9*time.Hour)),
		testutil.Appointment("Budget review", day.AddDate(0, 0, 2).Add(14*time.Hour)),
		testutil.Appointment("Yesterday", day.Add(-12*time.Hour)),
		{Subject: source.Ptr("Undated budget")},
	}
	appts[0].Location = source.Ptr("Room Budget")
	for _, a := range appts {
		testutil.AddAppointment(t, s, cal.ID(), a)
	}

	return in, cal
}

func TestSearchPushdownMatchesFallback(t *testing.T) {
	inbox, calendar := seedSearchData(t)
	e, _ := newTestEngine(t)
	ctx := context.Background()

	searches := []string{
		"alice",
		"alice OR bob",
		"bob OR alice",
		"ALICE",
		"überblick",
		"kelvin",
		"KELVIN OR nomatch",
		"report OR birthday",
		"nomatch",
		"%",
	}

	for _, search := range searches {
		t.Run(search, func(t *testing.T) {
			expr := ParseExpression(search)

			direct, err := e.Emails(ctx, inbox, 30, expr)
			require.NoError(t, err)

			fallback := &noPushdown{Folder: inbox}
			scanned, err := e.Emails(ctx, fallback, 30, expr)
			require.NoError(t, err)
			assert.Equal(t, 1, fallback.restricted)

			superset, err := e.Emails(ctx, sloppyPushdown{Folder: inbox}, 30, expr)
			require.NoError(t, err)

			assert.Equal(t, emailIDs(direct), emailIDs(scanned))
			assert.Equal(t, emailIDs(direct), emailIDs(superset))

			directCal, err := e.Appointments(ctx, calendar, 14, expr)
			require.NoError(t, err)
			scannedCal, err := e.Appointments(ctx, &noPushdown{Folder: calendar}, 14, expr)
			require.NoError(t, err)
			assert.Equal(t, appointmentIDs(directCal), appointmentIDs(scannedCal))
		})
	}
}

func TestSearchAliceOrBob(t *testing.T) {
	inbox, _ := seedSearchData(t)
	e, _ := newTestEngine(t)

	got, err := e.Emails(context.Background(), inbox, 7, ParseExpression("alice OR bob"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch", "Status report", "ALICE's birthday", "Nothing here"}, emailSubjects(got))
}

func TestSearchUnicodeUsesPushdown(t *testing.T) {
	inbox, _ := seedSearchData(t)
	e, hook := newTestEngine(t)

	got, err := e.Emails(context.Background(), inbox, 7, ParseExpression("ÜBERBLICK OR kelvin"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Überblick Q3", "\u212Aelvin scale"}, emailSubjects(got))

	for _, en := range hook.AllEntries() {
		assert.NotEqual(t, "store rejected search filter, scanning folder", en.Message)
	}
}

func TestAppointmentsWindowAndSearch(t *testing.T) {
	_, calendar := seedSearchData(t)
	e, _ := newTestEngine(t)
	ctx := context.Background()

	all, err := e.Appointments(ctx, calendar, 14, Expression{})
	require.NoError(t, err)

	var subjects []string
	for _, a := range all {
		subjects = append(subjects, a.Subject)
	}
	assert.Equal(t, []string{"Standup", "Budget review", "Undated budget"}, subjects)

	budget, err := e.Appointments(ctx, calendar, 14, ParseExpression("budget"))
	require.NoError(t, err)
	assert.Len(t, budget, 3)

	short, err := e.Appointments(ctx, calendar, 1, ParseExpression("budget"))
	require.NoError(t, err)
	assert.Len(t, short, 2)
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t)
	got, err := e.Emails(context.Background(), &staticFolder{}, 7, ParseExpression("x"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
