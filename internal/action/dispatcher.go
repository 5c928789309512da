// Package action performs the mutating operations: replying to a
// listed message, composing new mail and creating appointments. Every
// operation works on the live store item, never on a listed snapshot.
package action

import (
	"context"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/query"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// TimeLayout is the only accepted format for appointment times.
const TimeLayout = "2006-01-02 15:04"

// Op names the operation a Result reports on.
type Op string

const (
	OpReply             Op = "reply"
	OpCompose           Op = "compose"
	OpCreateAppointment Op = "create_appointment"
)

// Result describes a completed action. It carries data only; the tool
// layer turns it into text.
type Result struct {
	Op    Op
	Draft bool

	// Recipient is who the message went to, as given or as read from
	// the live item.
	Recipient string

	Subject string
	Start   time.Time
	End     time.Time

	// ID is the durable id of a created appointment.
	ID string
}

// ComposeRequest is a new outgoing message.
type ComposeRequest struct {
	To      string
	Cc      string
	Subject string
	Body    string
	Draft   bool
}

// AppointmentRequest is a new calendar item as the caller typed it.
type AppointmentRequest struct {
	Subject   string
	Start     string
	End       string
	Location  string
	Body      string
	Attendees string
}

// Dispatcher runs actions against the backing store.
type Dispatcher struct {
	gateway source.Gateway
	log     *log.Entry
}

// NewDispatcher creates a Dispatcher over gw.
func NewDispatcher(gw source.Gateway, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Dispatcher{gateway: gw, log: logger.WithField("component", "action")}
}

// Reply answers the live message identified by durableID. The reply
// goes to the message's current sender with a single "RE: " prefix.
func (d *Dispatcher) Reply(
	ctx context.Context, durableID, body string, asDraft bool,
) (Result, error) {
	conn, err := d.gateway.Connect(ctx)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	orig, err := conn.FetchMail(ctx, durableID)
	if err != nil {
		return Result{}, err
	}

	addr := source.StringValue(orig.SenderAddress)
	if addr == "" {
		return Result{}, apperr.Action("original message has no sender address", nil)
	}
	sender := &mail.Address{Name: source.StringValue(orig.SenderName), Address: addr}

	msg := source.OutgoingMail{
		To:        []string{sender.String()},
		Subject:   ReplySubject(source.StringValue(orig.Subject)),
		Body:      body,
		InReplyTo: orig.MessageID,
	}
	if err := conn.SubmitMail(ctx, msg, asDraft); err != nil {
		return Result{}, err
	}

	d.log.WithFields(log.Fields{
		"id":    durableID,
		"draft": asDraft,
	}).Info("replied to message")

	return Result{
		Op:        OpReply,
		Draft:     asDraft,
		Recipient: query.Descriptor(source.Recipient{Name: sender.Name, Address: &addr}),
		Subject:   msg.Subject,
	}, nil
}

// Compose sends a new message, or saves it as a draft.
func (d *Dispatcher) Compose(ctx context.Context, req ComposeRequest) (Result, error) {
	to := SplitAddresses(req.To)
	if len(to) == 0 {
		return Result{}, apperr.Validation("a recipient email address is required")
	}

	conn, err := d.gateway.Connect(ctx)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	msg := source.OutgoingMail{
		To:      to,
		Cc:      SplitAddresses(req.Cc),
		Subject: req.Subject,
		Body:    req.Body,
	}
	if err := conn.SubmitMail(ctx, msg, req.Draft); err != nil {
		return Result{}, err
	}

	d.log.WithField("draft", req.Draft).Info("composed message")

	return Result{
		Op:        OpCompose,
		Draft:     req.Draft,
		Recipient: req.To,
		Subject:   req.Subject,
	}, nil
}

// CreateAppointment validates req and saves it to the default calendar.
// Malformed times are reported before the store is contacted.
func (d *Dispatcher) CreateAppointment(
	ctx context.Context, req AppointmentRequest,
) (Result, error) {
	start, err := ParseTime(req.Start)
	if err != nil {
		return Result{}, err
	}
	end, err := ParseTime(req.End)
	if err != nil {
		return Result{}, err
	}
	if end.Before(start) {
		return Result{}, apperr.Validation("end time %s is before start time %s", req.End, req.Start)
	}

	conn, err := d.gateway.Connect(ctx)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	id, err := conn.SaveAppointment(ctx, source.NewAppointment{
		Subject:   req.Subject,
		Start:     start,
		End:       end,
		Location:  strings.TrimSpace(req.Location),
		Body:      req.Body,
		Attendees: SplitList(req.Attendees, ","),
	})
	if err != nil {
		return Result{}, err
	}

	d.log.WithField("id", id).Info("created appointment")

	return Result{
		Op:      OpCreateAppointment,
		Subject: req.Subject,
		Start:   start,
		End:     end,
		ID:      id,
	}, nil
}

// ParseTime reads s in TimeLayout as local wall-clock time.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, apperr.Validation("Invalid date format. Please use 'YYYY-MM-DD HH:MM' format.")
	}
	return t, nil
}

// ReplySubject prefixes subject with "RE: " unless it already carries
// a reply prefix.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return "RE: " + trimmed
}

// ParseBool reads a loosely typed flag. Booleans pass through; strings
// "true", "1" and "yes" are true in any case; everything else is false.
func ParseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}

// SplitList splits s on sep, trims each part and drops empty ones.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SplitAddresses splits an Outlook-style recipient line on ";". Comma
// separated lists are left whole for the address parser.
func SplitAddresses(s string) []string {
	return SplitList(s, ";")
}
