package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
	"github.com/xmubeta/outlook-mcp-server/internal/testutil"
)

type sentMessage struct {
	from string
	to   []string
	raw  []byte
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(from string, to []string, msg []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{from: from, to: to, raw: msg})
	return nil
}

// offlineSession is a session whose mailbox list is already known, so
// nothing reaches the IMAP client.
func offlineSession(t *testing.T, smtp sender) (*session, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	cal, err := testutil.NewTestStore(t).Connect(context.Background())
	require.NoError(t, err)

	gw := &Gateway{
		smtp: smtp,
		from: &mail.Address{Address: "me@example.com"},
		log:  logrus.NewEntry(logger),
	}
	return &session{gw: gw, cal: cal, tree: newMailboxTree(nil)}, hook
}

func TestSubmitMailSendsWithoutSentMailbox(t *testing.T) {
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	smtp := &fakeSender{}
	s, hook := offlineSession(t, smtp)

	err := s.SubmitMail(context.Background(), source.OutgoingMail{
		To:      []string{"Alice <alice@example.com>"},
		Cc:      []string{"bob@example.com"},
		Subject: "Hello",
		Body:    "Hi there",
	}, false)
	require.NoError(t, err)

	require.Len(t, smtp.sent, 1)
	assert.Equal(t, "me@example.com", smtp.sent[0].from)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, smtp.sent[0].to)

	p, err := parseMessage(smtp.sent[0].raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Subject)
	assert.True(t, p.Date.Equal(fixed))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSubmitMailErrors(t *testing.T) {
	ctx := context.Background()

	s, _ := offlineSession(t, &fakeSender{})
	err := s.SubmitMail(ctx, source.OutgoingMail{}, false)
	assert.True(t, apperr.Is(err, apperr.KindAction))

	err = s.SubmitMail(ctx, source.OutgoingMail{To: []string{"not an address"}}, false)
	assert.True(t, apperr.Is(err, apperr.KindAction))
	assert.ErrorContains(t, err, "invalid recipient")

	err = s.SubmitMail(ctx, source.OutgoingMail{To: []string{"a@example.com"}}, true)
	assert.True(t, apperr.Is(err, apperr.KindAction))
	assert.ErrorContains(t, err, "no drafts mailbox")

	s, _ = offlineSession(t, &fakeSender{err: errors.New("550 rejected")})
	err = s.SubmitMail(ctx, source.OutgoingMail{To: []string{"a@example.com"}}, false)
	assert.True(t, apperr.Is(err, apperr.KindAction))
	assert.ErrorContains(t, err, "550 rejected")
}

func TestCalendarIsDelegated(t *testing.T) {
	ctx := context.Background()
	s, _ := offlineSession(t, &fakeSender{})

	cal, err := s.DefaultFolder(ctx, source.RoleCalendar)
	require.NoError(t, err)
	assert.Equal(t, "Calendar", cal.Name())

	start := time.Date(2024, 5, 11, 9, 0, 0, 0, time.Local)
	id, err := s.SaveAppointment(ctx, source.NewAppointment{
		Subject: "Standup",
		Start:   start,
		End:     start.Add(15 * time.Minute),
	})
	require.NoError(t, err)

	got, err := s.FetchAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Standup", source.StringValue(got.Subject))
}

func TestFetchMailRejectsForeignID(t *testing.T) {
	s, _ := offlineSession(t, &fakeSender{})

	_, err := s.FetchMail(context.Background(), "not-an-imap-id")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRoleMailboxUsesSpecialUse(t *testing.T) {
	s, _ := offlineSession(t, &fakeSender{})
	tree := gmailLikeTree()

	drafts, ok := s.roleMailbox(tree, source.RoleDrafts)
	require.True(t, ok)
	assert.Equal(t, "[Gmail]/Drafts", drafts.Name)

	sent, ok := s.roleMailbox(tree, source.RoleSent)
	require.True(t, ok)
	assert.Equal(t, "Sent", sent.Name)

	_, ok = s.roleMailbox(tree, source.RoleCalendar)
	assert.False(t, ok)
}
