// Package tools implements the mail and calendar tools: argument
// validation, the list/search/by-number flows over the listing cache,
// and rendering of every result and error as text.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/action"
	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/listing"
	"github.com/xmubeta/outlook-mcp-server/internal/metrics"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/query"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// Result is the text outcome of a tool call.
type Result struct {
	Text    string
	IsError bool
}

// Handler executes tool calls.
type Handler struct {
	gateway source.Gateway
	engine  *query.Engine
	cache   *listing.Cache
	actions *action.Dispatcher
	limits  model.LimitsConfig
	log     *log.Entry
}

// NewHandler wires a Handler. The cache is shared by every call made
// through the handler.
func NewHandler(
	gw source.Gateway,
	engine *query.Engine,
	cache *listing.Cache,
	actions *action.Dispatcher,
	limits model.LimitsConfig,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Handler{
		gateway: gw,
		engine:  engine,
		cache:   cache,
		actions: actions,
		limits:  limits,
		log:     logger.WithField("component", "tools"),
	}
}

// Tools returns the definitions of the tools this handler serves.
func (h *Handler) Tools() []Tool {
	return Definitions(h.limits)
}

// ErrUnknownTool is returned by Call for a name that is not a tool.
var ErrUnknownTool = errors.New("unknown tool")

// toolFunc runs one tool. op describes the tool for error messages.
type toolFunc struct {
	op  string
	run func(h *Handler, ctx context.Context, a args) (string, error)
}

var registry = map[string]toolFunc{
	ListFolders:                {"listing mail folders", (*Handler).listFolders},
	ListRecentEmails:           {"retrieving email titles", (*Handler).listRecentEmails},
	SearchEmails:               {"searching emails", (*Handler).searchEmails},
	GetEmailByNumber:           {"retrieving email details", (*Handler).getEmailByNumber},
	ReplyToEmailByNumber:       {"replying to email", (*Handler).replyToEmail},
	ComposeEmail:               {"composing email", (*Handler).composeEmail},
	ListCalendarAppointments:   {"retrieving calendar appointments", (*Handler).listAppointments},
	SearchCalendarAppointments: {"searching calendar appointments", (*Handler).searchAppointments},
	GetAppointmentByNumber:     {"retrieving appointment details", (*Handler).getAppointmentByNumber},
	CreateCalendarAppointment:  {"creating calendar appointment", (*Handler).createAppointment},
}

// Call runs the named tool with raw JSON arguments. Tool failures are
// reported in the Result; the error is non-nil only for an unknown tool.
func (h *Handler) Call(ctx context.Context, name string, raw json.RawMessage) (res Result, err error) {
	tool, ok := registry[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	logger := h.log.WithField("tool", name)

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Errorf("tool panicked\n%s", debug.Stack())
			res = Result{Text: fmt.Sprintf("Error %s: internal error: %v", tool.op, r), IsError: true}
			metrics.RecordToolCall(name, "panic", time.Since(start))
		}
	}()

	text, runErr := h.run(ctx, tool, raw)
	if runErr != nil {
		kind := apperr.KindOf(runErr)
		entry := logger.WithError(runErr).WithField("kind", kind)
		if kind == apperr.KindValidation || kind == apperr.KindNotFound {
			entry.Info("tool call rejected")
		} else {
			entry.Warn("tool call failed")
		}
		metrics.RecordToolCall(name, kind.String(), time.Since(start))
		return Result{Text: renderError(tool.op, runErr), IsError: true}, nil
	}

	logger.WithField("duration", time.Since(start)).Debug("tool call done")
	metrics.RecordToolCall(name, "ok", time.Since(start))
	return Result{Text: text}, nil
}

func (h *Handler) run(ctx context.Context, tool toolFunc, raw json.RawMessage) (string, error) {
	a, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	return tool.run(h, ctx, a)
}

// --- validation ---

func (h *Handler) days(a args, def, max int) (int, error) {
	n, ok := a.Int("days", def)
	if !ok || n < 1 || n > max {
		return 0, apperr.Validation("'days' must be an integer between 1 and %d", max)
	}
	return n, nil
}

func searchTerm(a args) (string, error) {
	term := strings.TrimSpace(a.String("search_term"))
	if term == "" {
		return "", apperr.Validation("Please provide a search term")
	}
	return term, nil
}

func ordinal(a args, name string) (int, error) {
	if !a.Has(name) {
		return 0, apperr.Validation("'%s' is required", name)
	}
	n, ok := a.Int(name, 0)
	if !ok {
		return 0, apperr.Validation("'%s' must be an integer", name)
	}
	return n, nil
}

// resolve looks up ordinal n and turns cache errors into messages
// naming the kind and the tools that create listings.
func (h *Handler) resolve(kind model.Kind, n int) (model.Record, error) {
	rec, err := h.cache.Resolve(kind, n)
	if err == nil {
		return rec, nil
	}

	noun, listTools := "Email", "list_recent_emails or search_emails"
	plural := "emails"
	if kind == model.KindAppointment {
		noun, listTools = "Appointment", "list_calendar_appointments or search_calendar_appointments"
		plural = "appointments"
	}

	switch {
	case errors.Is(err, listing.ErrEmptyListing):
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf(
			"No %s have been listed yet. Please use %s first.", plural, listTools), err)
	case errors.Is(err, listing.ErrOrdinalNotFound):
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf(
			"%s #%d not found in the current listing.", noun, n), err)
	}
	return nil, err
}

// --- folders ---

func (h *Handler) listFolders(ctx context.Context, _ args) (string, error) {
	conn, err := h.gateway.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	roots, err := conn.Folders(ctx)
	if err != nil {
		return "", err
	}

	nodes := make([]folderNode, 0, len(roots))
	for _, root := range roots {
		node := folderNode{Name: root.Name()}

		children, err := root.Children(ctx)
		if err != nil {
			return "", err
		}
		for _, child := range children {
			sub := folderNode{Name: child.Name()}

			// The third level is best-effort.
			grandchildren, err := child.Children(ctx)
			if err != nil {
				h.log.WithError(err).WithField("folder", child.Name()).
					Debug("skipping subfolders")
			}
			for _, g := range grandchildren {
				sub.Children = append(sub.Children, folderNode{Name: g.Name()})
			}
			node.Children = append(node.Children, sub)
		}
		nodes = append(nodes, node)
	}

	return renderFolders(nodes), nil
}

// --- email ---

func (h *Handler) listRecentEmails(ctx context.Context, a args) (string, error) {
	days, err := h.days(a, defaultEmailDays, h.limits.MaxEmailDays)
	if err != nil {
		return "", err
	}
	return h.emailListing(ctx, emailQuery{
		folder: strings.TrimSpace(a.String("folder_name")),
		days:   days,
	})
}

func (h *Handler) searchEmails(ctx context.Context, a args) (string, error) {
	term, err := searchTerm(a)
	if err != nil {
		return "", err
	}
	days, err := h.days(a, defaultEmailDays, h.limits.MaxEmailDays)
	if err != nil {
		return "", err
	}
	return h.emailListing(ctx, emailQuery{
		folder: strings.TrimSpace(a.String("folder_name")),
		days:   days,
		search: term,
	})
}

// emailListing runs q and installs the result as the email listing.
// The previous listing is cleared only once the folder is known.
func (h *Handler) emailListing(ctx context.Context, q emailQuery) (string, error) {
	h.cache.Lock(model.KindEmail)
	defer h.cache.Unlock(model.KindEmail)

	conn, err := h.gateway.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var folder source.Folder
	if q.folder != "" {
		folder, err = source.ResolveFolder(ctx, conn, q.folder)
		if err != nil {
			return "", err
		}
		if folder == nil {
			return "", apperr.NotFound("Folder '%s' not found", q.folder)
		}
	} else {
		folder, err = conn.DefaultFolder(ctx, source.RoleInbox)
		if err != nil {
			return "", err
		}
	}

	h.cache.Clear(model.KindEmail)

	emails, err := h.engine.Emails(ctx, folder, q.days, query.ParseExpression(q.search))
	if err != nil {
		return "", err
	}

	records := make([]model.Record, 0, len(emails))
	for _, e := range emails {
		records = append(records, e)
	}
	h.cache.Install(model.KindEmail, records)

	return renderEmailList(q, emails), nil
}

func (h *Handler) getEmailByNumber(ctx context.Context, a args) (string, error) {
	n, err := ordinal(a, "email_number")
	if err != nil {
		return "", err
	}

	h.cache.Lock(model.KindEmail)
	defer h.cache.Unlock(model.KindEmail)

	rec, err := h.resolve(model.KindEmail, n)
	if err != nil {
		return "", err
	}
	email := rec.(*model.Email)

	conn, err := h.gateway.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	live, err := conn.FetchMail(ctx, email.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", apperr.New(apperr.KindNotFound, fmt.Sprintf(
				"Email #%d could not be retrieved from the mail store.", n), err)
		}
		return "", err
	}

	return renderEmailDetail(n, email, live.Attachments), nil
}

func (h *Handler) replyToEmail(ctx context.Context, a args) (string, error) {
	n, err := ordinal(a, "email_number")
	if err != nil {
		return "", err
	}
	text := a.String("reply_text")
	draft := a.Bool("save_as_draft", true)

	h.cache.Lock(model.KindEmail)
	defer h.cache.Unlock(model.KindEmail)

	rec, err := h.resolve(model.KindEmail, n)
	if err != nil {
		return "", err
	}

	res, err := h.actions.Reply(ctx, rec.DurableID(), text, draft)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", apperr.New(apperr.KindNotFound, fmt.Sprintf(
				"Email #%d could not be retrieved from the mail store.", n), err)
		}
		return "", err
	}
	return renderActionResult(res), nil
}

func (h *Handler) composeEmail(ctx context.Context, a args) (string, error) {
	to := strings.TrimSpace(a.String("recipient_email"))
	if to == "" {
		return "", apperr.Validation("Please provide a recipient email address")
	}

	res, err := h.actions.Compose(ctx, action.ComposeRequest{
		To:      to,
		Cc:      strings.TrimSpace(a.String("cc_email")),
		Subject: a.String("subject"),
		Body:    a.String("body"),
		Draft:   a.Bool("save_as_draft", true),
	})
	if err != nil {
		return "", err
	}
	return renderActionResult(res), nil
}

// --- calendar ---

func (h *Handler) listAppointments(ctx context.Context, a args) (string, error) {
	days, err := h.days(a, defaultCalendarDays, h.limits.MaxCalendarDays)
	if err != nil {
		return "", err
	}
	return h.appointmentListing(ctx, days, "")
}

func (h *Handler) searchAppointments(ctx context.Context, a args) (string, error) {
	term, err := searchTerm(a)
	if err != nil {
		return "", err
	}
	days, err := h.days(a, defaultCalendarDays, h.limits.MaxCalendarDays)
	if err != nil {
		return "", err
	}
	return h.appointmentListing(ctx, days, term)
}

func (h *Handler) appointmentListing(ctx context.Context, days int, search string) (string, error) {
	h.cache.Lock(model.KindAppointment)
	defer h.cache.Unlock(model.KindAppointment)

	conn, err := h.gateway.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	calendar, err := conn.DefaultFolder(ctx, source.RoleCalendar)
	if err != nil {
		return "", err
	}

	h.cache.Clear(model.KindAppointment)

	appts, err := h.engine.Appointments(ctx, calendar, days, query.ParseExpression(search))
	if err != nil {
		return "", err
	}

	records := make([]model.Record, 0, len(appts))
	for _, appt := range appts {
		records = append(records, appt)
	}
	h.cache.Install(model.KindAppointment, records)

	return renderAppointmentList(search, days, appts), nil
}

func (h *Handler) getAppointmentByNumber(_ context.Context, a args) (string, error) {
	n, err := ordinal(a, "appointment_number")
	if err != nil {
		return "", err
	}

	h.cache.Lock(model.KindAppointment)
	defer h.cache.Unlock(model.KindAppointment)

	rec, err := h.resolve(model.KindAppointment, n)
	if err != nil {
		return "", err
	}
	return renderAppointmentDetail(n, rec.(*model.Appointment)), nil
}

func (h *Handler) createAppointment(ctx context.Context, a args) (string, error) {
	res, err := h.actions.CreateAppointment(ctx, action.AppointmentRequest{
		Subject:   a.String("subject"),
		Start:     a.String("start_time"),
		End:       a.String("end_time"),
		Location:  a.String("location"),
		Body:      a.String("body"),
		Attendees: a.String("attendees"),
	})
	if err != nil {
		return "", err
	}
	return renderActionResult(res), nil
}
