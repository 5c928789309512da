// Package email is the IMAP mail backend. Mail comes from an IMAP
// server and is sent over SMTP; IMAP has no calendar, so calendar
// roles and items are served by a second gateway.
package email

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// Gateway implements source.Gateway over IMAP and SMTP.
type Gateway struct {
	imap     *IMAPClient
	smtp     sender
	calendar source.Gateway
	cfg      model.IMAPConfig
	from     *mail.Address
	log      *log.Entry
}

// timeNow is replaced in tests.
var timeNow = time.Now

var (
	_ source.Gateway = (*Gateway)(nil)
	_ source.Conn    = (*session)(nil)
	_ source.Folder  = (*mailbox)(nil)
)

// NewGateway creates an IMAP gateway. calendar serves the calendar
// role and appointment operations.
func NewGateway(
	cfg model.IMAPConfig,
	smtpCfg model.SMTPConfig,
	password string,
	calendar source.Gateway,
	logger *log.Entry,
) *Gateway {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Gateway{
		imap: NewIMAPClient(cfg.Host, cfg.Port, cfg.Username, password, cfg.TLS),
		smtp: &smtpSender{
			cfg:      smtpCfg,
			username: cfg.Username,
			password: password,
		},
		calendar: calendar,
		cfg:      cfg,
		from:     &mail.Address{Address: cfg.Username},
		log:      logger.WithField("component", "imap"),
	}
}

// Connect logs in to the IMAP server and opens the calendar store.
func (g *Gateway) Connect(ctx context.Context) (source.Conn, error) {
	client, err := g.imap.Connect(ctx)
	if err != nil {
		return nil, err
	}

	cal, err := g.calendar.Connect(ctx)
	if err != nil {
		_ = client.Logout().Wait()
		return nil, err
	}

	return &session{gw: g, client: client, cal: cal}, nil
}

// session is one logged-in IMAP connection. It is not safe for
// concurrent use; every tool call opens its own.
type session struct {
	gw     *Gateway
	client *imapclient.Client
	cal    source.Conn

	tree *mailboxTree

	selected    string
	uidValidity uint32
}

func (s *session) mailboxes() (*mailboxTree, error) {
	if s.tree != nil {
		return s.tree, nil
	}
	list, err := listMailboxes(s.client)
	if err != nil {
		return nil, err
	}
	s.tree = newMailboxTree(list)
	return s.tree, nil
}

// selectMailbox opens name read-only unless it is already selected.
func (s *session) selectMailbox(name string) (uint32, error) {
	if s.selected == name {
		return s.uidValidity, nil
	}
	data, err := s.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("selecting %s: %w", name, err)
	}
	s.selected = name
	s.uidValidity = data.UIDValidity
	return data.UIDValidity, nil
}

func (s *session) folder(info mailboxInfo) *mailbox {
	return &mailbox{session: s, info: info}
}

func (s *session) DefaultFolder(
	ctx context.Context, role source.Role,
) (source.Folder, error) {
	if role == source.RoleCalendar {
		return s.cal.DefaultFolder(ctx, role)
	}

	tree, err := s.mailboxes()
	if err != nil {
		return nil, err
	}

	info, ok := s.roleMailbox(tree, role)
	if !ok {
		return nil, apperr.NotFound("no %s mailbox on the IMAP server", role)
	}
	return s.folder(info), nil
}

// roleMailbox finds a role by SPECIAL-USE attribute, then by the
// configured mailbox name.
func (s *session) roleMailbox(tree *mailboxTree, role source.Role) (mailboxInfo, bool) {
	switch role {
	case source.RoleInbox:
		if info, ok := tree.named("INBOX"); ok {
			return info, true
		}
		return mailboxInfo{Name: "INBOX"}, true
	case source.RoleDrafts:
		if info, ok := tree.withAttr(imap.MailboxAttrDrafts); ok {
			return info, true
		}
		return tree.named(s.gw.cfg.DraftsMailbox)
	case source.RoleSent:
		if info, ok := tree.withAttr(imap.MailboxAttrSent); ok {
			return info, true
		}
		return tree.named(s.gw.cfg.SentMailbox)
	}
	return mailboxInfo{}, false
}

func (s *session) Folders(_ context.Context) ([]source.Folder, error) {
	tree, err := s.mailboxes()
	if err != nil {
		return nil, err
	}

	roots := tree.rootInfos()
	out := make([]source.Folder, 0, len(roots))
	for _, info := range roots {
		out = append(out, s.folder(info))
	}
	return out, nil
}

func (s *session) FetchMail(
	_ context.Context, id string,
) (*source.RawMail, error) {
	ref, err := parseItemID(id)
	if err != nil {
		return nil, apperr.NotFound("message %s no longer exists", id)
	}

	validity, err := s.selectMailbox(ref.Mailbox)
	if err != nil {
		return nil, apperr.NotFound("mailbox %s no longer exists", ref.Mailbox)
	}
	if validity != ref.UIDValidity {
		return nil, apperr.NotFound("mailbox %s was renumbered", ref.Mailbox)
	}

	msgs, err := fetchMessages(s.client, []imap.UID{ref.UID})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, apperr.NotFound("message %s no longer exists", id)
	}

	m := toRawMail(ref.Mailbox, validity, msgs[0])
	if m.Err != nil {
		return nil, m.Err
	}
	return &m, nil
}

func (s *session) FetchAppointment(
	ctx context.Context, id string,
) (*source.RawAppointment, error) {
	return s.cal.FetchAppointment(ctx, id)
}

// SubmitMail appends drafts to the drafts mailbox. Sent mail goes out
// over SMTP and a copy is filed in the sent mailbox.
func (s *session) SubmitMail(
	ctx context.Context, msg source.OutgoingMail, draft bool,
) error {
	if len(msg.To) == 0 {
		return apperr.Action("message has no recipient", nil)
	}

	raw, err := composeMessage(s.gw.from, msg, timeNow())
	if err != nil {
		return apperr.Action(err.Error(), nil)
	}

	role := source.RoleSent
	if draft {
		role = source.RoleDrafts
	}
	tree, err := s.mailboxes()
	if err != nil {
		return err
	}
	box, found := s.roleMailbox(tree, role)

	if draft {
		if !found {
			return apperr.Action("no drafts mailbox on the IMAP server", nil)
		}
		if err := appendMessage(s.client, box.Name, raw, []imap.Flag{imap.FlagDraft, imap.FlagSeen}); err != nil {
			return apperr.Action("saving draft", err)
		}
		return nil
	}

	to, err := envelopeRecipients(msg)
	if err != nil {
		return apperr.Action(err.Error(), nil)
	}
	if err := s.gw.smtp.Send(s.gw.from.Address, to, raw); err != nil {
		return apperr.Action("sending message", err)
	}

	if !found {
		s.gw.log.Warn("no sent mailbox, sent message not filed")
		return nil
	}
	if err := appendMessage(s.client, box.Name, raw, []imap.Flag{imap.FlagSeen}); err != nil {
		s.gw.log.WithError(err).Warn("filing sent message failed")
	}
	return nil
}

func (s *session) SaveAppointment(
	ctx context.Context, appt source.NewAppointment,
) (string, error) {
	return s.cal.SaveAppointment(ctx, appt)
}

func (s *session) Close() error {
	calErr := s.cal.Close()
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return calErr
}

// envelopeRecipients returns the bare addresses for RCPT TO.
func envelopeRecipients(msg source.OutgoingMail) ([]string, error) {
	all, err := parseAddresses(append(append([]string(nil), msg.To...), msg.Cc...))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.Address)
	}
	return out, nil
}

// mailbox is an IMAP mailbox as a source.Folder.
type mailbox struct {
	session *session
	info    mailboxInfo
}

func (m *mailbox) Name() string { return m.info.DisplayName() }

func (m *mailbox) Children(_ context.Context) ([]source.Folder, error) {
	tree, err := m.session.mailboxes()
	if err != nil {
		return nil, err
	}

	infos := tree.childInfos(m.info.Name)
	out := make([]source.Folder, 0, len(infos))
	for _, info := range infos {
		out = append(out, m.session.folder(info))
	}
	return out, nil
}

// Messages searches the mailbox and downloads every match, fetch_batch
// messages at a time, newest first.
func (m *mailbox) Messages(
	_ context.Context, q source.ItemQuery,
) ([]source.RawMail, error) {
	if !m.info.selectable() {
		return []source.RawMail{}, nil
	}

	criteria, err := searchCriteria(q)
	if err != nil {
		return nil, err
	}

	validity, err := m.session.selectMailbox(m.info.Name)
	if err != nil {
		return nil, err
	}

	data, err := m.session.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		if q.Restrict != nil {
			return nil, fmt.Errorf("searching %s: %w: %v", m.info.Name, source.ErrRestrictUnsupported, err)
		}
		return nil, fmt.Errorf("searching %s: %w", m.info.Name, err)
	}

	uids := data.AllUIDs()
	batches := uidBatches(uids, m.session.gw.cfg.FetchBatch)

	out := make([]source.RawMail, 0, len(uids))
	for _, batch := range batches {
		fetched, err := fetchMessages(m.session.client, batch)
		if err != nil {
			return nil, err
		}
		for _, f := range fetched {
			out = append(out, toRawMail(m.info.Name, validity, f))
		}
	}
	sortNewestFirst(out)

	m.session.gw.log.WithFields(log.Fields{
		"mailbox":    m.info.Name,
		"matched":    len(uids),
		"fetched":    len(out),
		"batches":    len(batches),
		"restricted": q.Restrict != nil,
	}).Debug("searched mailbox")

	return out, nil
}

// Appointments is always empty: IMAP mailboxes hold no calendar items.
func (m *mailbox) Appointments(
	_ context.Context, _ source.ItemQuery,
) ([]source.RawAppointment, error) {
	return []source.RawAppointment{}, nil
}

func sortNewestFirst(items []source.RawMail) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ReceivedTime.After(items[j].ReceivedTime)
	})
}
