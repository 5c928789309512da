package email

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// parsedMessage is the MIME content of a fetched message.
type parsedMessage struct {
	Subject     string
	From        *mail.Address
	Recipients  []source.Recipient
	Date        time.Time
	MessageID   string
	TextBody    string
	HTMLBody    string
	Attachments []source.Attachment
	Importance  *int
	Categories  *string
}

// parseMessage reads a raw RFC 5322 message with go-message. Parts that
// fail to decode are skipped; a message whose header cannot be read is
// an error.
func parseMessage(raw []byte) (*parsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	p := &parsedMessage{}

	p.Subject, _ = h.Subject()
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		p.From = from[0]
	}
	for _, key := range []string{"To", "Cc"} {
		list, err := h.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range list {
			p.Recipients = append(p.Recipients, recipient(a))
		}
	}
	if d, err := h.Date(); err == nil {
		p.Date = d
	}
	if id, err := h.MessageID(); err == nil && id != "" {
		p.MessageID = "<" + id + ">"
	}
	p.Importance = importanceFromHeader(h.Get("Importance"), h.Get("X-Priority"))
	if kw := strings.TrimSpace(h.Get("Keywords")); kw != "" {
		p.Categories = &kw
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && p.TextBody == "":
				p.TextBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && p.HTMLBody == "":
				p.HTMLBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := ph.Filename()
			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}
			p.Attachments = append(p.Attachments, source.Attachment{
				FileName: filename,
				Size:     n,
			})
		}
	}

	return p, nil
}

// Body prefers the plain-text part and falls back to stripped HTML.
func (p *parsedMessage) Body() string {
	if p.TextBody != "" {
		return p.TextBody
	}
	return stripHTML(p.HTMLBody)
}

func recipient(a *mail.Address) source.Recipient {
	r := source.Recipient{Name: a.Name}
	if a.Address != "" {
		r.Address = source.Ptr(a.Address)
	}
	return r
}

// importanceFromHeader maps the Importance header, or failing that
// X-Priority, onto the store's 0 (low) / 1 (normal) / 2 (high) scale.
// It returns nil when neither header is present.
func importanceFromHeader(importance, priority string) *int {
	switch strings.ToLower(strings.TrimSpace(importance)) {
	case "low":
		return source.Ptr(0)
	case "normal":
		return source.Ptr(1)
	case "high":
		return source.Ptr(2)
	}

	// X-Priority: "1 (Highest)" .. "5 (Lowest)".
	fields := strings.Fields(priority)
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil
	}
	switch {
	case n <= 2:
		return source.Ptr(2)
	case n >= 4:
		return source.Ptr(0)
	}
	return source.Ptr(1)
}

// composeMessage renders an outgoing plain-text message.
func composeMessage(from *mail.Address, msg source.OutgoingMail, now time.Time) ([]byte, error) {
	to, err := parseAddresses(msg.To)
	if err != nil {
		return nil, err
	}
	cc, err := parseAddresses(msg.Cc)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
		h.Set("References", msg.InReplyTo)
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// parseAddresses parses each entry as an address list and flattens the
// result.
func parseAddresses(entries []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		list, err := mail.ParseAddressList(e)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", e, err)
		}
		out = append(out, list...)
	}
	return out, nil
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
