package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// IMAPClient holds the settings for dialing an IMAP server.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server and
// authenticates. Failures are apperr.KindConnection errors. The caller
// must Logout the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.host, c.port)

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, apperr.Connection(fmt.Sprintf("connecting to IMAP %s", addr), err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		return nil, apperr.Connection(
			fmt.Sprintf("authentication failed for %s", c.username), err,
		)
	}

	return client, nil
}

// listMailboxes returns every mailbox with its SPECIAL-USE attributes.
func listMailboxes(client *imapclient.Client) ([]mailboxInfo, error) {
	data, err := client.List("", "*", &imap.ListOptions{
		ReturnSpecialUse: true,
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	out := make([]mailboxInfo, 0, len(data))
	for _, d := range data {
		out = append(out, mailboxInfo{Name: d.Mailbox, Delim: d.Delim, Attrs: d.Attrs})
	}
	return out, nil
}

// searchFields maps restriction fields to IMAP SEARCH keys.
var searchFields = map[source.SearchField]func(term string) imap.SearchCriteria{
	source.FieldSubject: func(term string) imap.SearchCriteria {
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: term}}}
	},
	source.FieldSenderName: func(term string) imap.SearchCriteria {
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: term}}}
	},
	source.FieldBody: func(term string) imap.SearchCriteria {
		return imap.SearchCriteria{Body: []string{term}}
	},
}

// searchCriteria translates q into IMAP SEARCH criteria. SINCE has day
// granularity in the server's zone, so the bound is widened by a day;
// the engine re-checks the exact window.
func searchCriteria(q source.ItemQuery) (*imap.SearchCriteria, error) {
	criteria := &imap.SearchCriteria{}

	if r := q.Restrict; r != nil && len(r.Terms) > 0 {
		var alternatives []imap.SearchCriteria
		for _, term := range r.Terms {
			for _, field := range r.Fields {
				build, ok := searchFields[field]
				if !ok {
					return nil, fmt.Errorf("field %s: %w", field, source.ErrRestrictUnsupported)
				}
				alternatives = append(alternatives, build(term))
			}
		}
		if len(alternatives) > 0 {
			criteria = anyOf(alternatives)
		}
	}

	if !q.Since.IsZero() {
		criteria.Since = q.Since.AddDate(0, 0, -1)
	}
	if !q.Until.IsZero() {
		criteria.Before = q.Until.AddDate(0, 0, 2)
	}
	return criteria, nil
}

// anyOf folds cs into nested OR criteria.
func anyOf(cs []imap.SearchCriteria) *imap.SearchCriteria {
	if len(cs) == 1 {
		c := cs[0]
		return &c
	}
	rest := anyOf(cs[1:])
	return &imap.SearchCriteria{
		Or: [][2]imap.SearchCriteria{{cs[0], *rest}},
	}
}

// fetchedMessage pairs FETCH metadata with the raw message bytes.
type fetchedMessage struct {
	UID          imap.UID
	Flags        []imap.Flag
	InternalDate time.Time
	Envelope     *imap.Envelope
	Raw          []byte
}

var fullBody = &imap.FetchItemBodySection{Peek: true}

// fetchMessages downloads the given UIDs of the selected mailbox.
func fetchMessages(client *imapclient.Client, uids []imap.UID) ([]fetchedMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{fullBody},
	})
	defer fetchCmd.Close()

	var out []fetchedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		out = append(out, fetchedMessage{
			UID:          buf.UID,
			Flags:        buf.Flags,
			InternalDate: buf.InternalDate,
			Envelope:     buf.Envelope,
			Raw:          buf.FindBodySection(fullBody),
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

// uidBatches splits uids into batches of at most size, highest UIDs
// first. A size below 1 yields a single batch.
func uidBatches(uids []imap.UID, size int) [][]imap.UID {
	if len(uids) == 0 {
		return nil
	}
	sorted := append([]imap.UID(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if size < 1 {
		size = len(sorted)
	}

	var batches [][]imap.UID
	for len(sorted) > 0 {
		n := min(size, len(sorted))
		batches = append(batches, sorted[:n])
		sorted = sorted[n:]
	}
	return batches
}

// appendMessage stores raw in mailbox with the given flags.
func appendMessage(
	client *imapclient.Client, mailbox string, raw []byte, flags []imap.Flag,
) error {
	cmd := client.Append(mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: flags,
		Time:  time.Now(),
	})
	if _, err := bytes.NewReader(raw).WriteTo(cmd); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s: %w", mailbox, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}

// toRawMail converts a fetched message. Items that cannot be parsed
// come back with Err set.
func toRawMail(mailbox string, validity uint32, m fetchedMessage) source.RawMail {
	raw := source.RawMail{
		EntryID: itemID{UIDValidity: validity, UID: m.UID, Mailbox: mailbox}.String(),
		Unread:  source.Ptr(!hasFlag(m.Flags, imap.FlagSeen)),
	}

	if len(m.Raw) == 0 {
		raw.Err = fmt.Errorf("message %s has no body", raw.EntryID)
		return raw
	}
	p, err := parseMessage(m.Raw)
	if err != nil {
		raw.Err = fmt.Errorf("parsing message %s: %w", raw.EntryID, err)
		return raw
	}

	raw.Subject = source.Ptr(p.Subject)
	if p.From != nil {
		raw.SenderName = source.Ptr(p.From.Name)
		if p.From.Name == "" {
			raw.SenderName = source.Ptr(p.From.Address)
		}
		raw.SenderAddress = source.Ptr(p.From.Address)
	}

	switch {
	case !m.InternalDate.IsZero():
		raw.ReceivedTime = m.InternalDate.In(time.Local)
	case !p.Date.IsZero():
		raw.ReceivedTime = p.Date.In(time.Local)
	}

	raw.Recipients = p.Recipients
	raw.Body = source.Ptr(p.Body())
	raw.Attachments = p.Attachments
	raw.Importance = p.Importance
	raw.Categories = p.Categories
	raw.MessageID = p.MessageID
	if raw.MessageID == "" && m.Envelope != nil && m.Envelope.MessageID != "" {
		raw.MessageID = "<" + m.Envelope.MessageID + ">"
	}
	return raw
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
