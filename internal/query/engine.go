// Package query turns a folder, a day window and an optional search
// expression into an ordered list of normalized records.
//
// A search is first offered to the store as a push-down restriction.
// When the store rejects it the folder is scanned unfiltered. Either
// way the same predicate runs over every item, so both paths return the
// same records.
package query

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/metrics"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// Engine runs list and search queries against store folders.
type Engine struct {
	now func() time.Time
	log *log.Entry
}

// NewEngine creates an Engine. A nil clock defaults to time.Now.
func NewEngine(logger *log.Entry, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{now: now, log: logger.WithField("component", "query")}
}

// EmailWindow returns the retrospective window [now-days, now].
func EmailWindow(now time.Time, days int) (since, until time.Time) {
	now = naiveLocal(now)
	return now.Add(-time.Duration(days) * 24 * time.Hour), now
}

// CalendarWindow returns [today 00:00:00, today+days 23:59:59].
func CalendarWindow(now time.Time, days int) (since, until time.Time) {
	now = naiveLocal(now)
	y, m, d := now.Date()
	since = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	until = time.Date(y, m, d+days, 23, 59, 59, 0, time.Local)
	return since, until
}

// Emails returns the messages of folder received in the last days
// days that match expr, newest first.
func (e *Engine) Emails(
	ctx context.Context, folder source.Folder, days int, expr Expression,
) ([]*model.Email, error) {
	since, until := EmailWindow(e.now(), days)
	q := source.ItemQuery{Since: since, Until: until}

	items, err := e.fetchMail(ctx, folder, q, expr)
	if err != nil {
		return nil, err
	}

	logger := e.log.WithField("folder", folder.Name())
	out := make([]*model.Email, 0, len(items))

	for i := range items {
		raw := &items[i]
		if raw.Err != nil {
			logger.WithError(raw.Err).Warn("skipping unreadable message")
			metrics.IncrementSkippedItem(string(model.KindEmail))
			continue
		}
		if raw.ReceivedTime.IsZero() {
			continue
		}

		received := naiveLocal(raw.ReceivedTime)
		if received.Before(since) || received.After(until) {
			continue
		}
		if !expr.matchMail(raw) {
			continue
		}

		rec, err := NormalizeMail(raw)
		if err != nil {
			logger.WithError(err).Warn("skipping message")
			metrics.IncrementSkippedItem(string(model.KindEmail))
			continue
		}
		out = append(out, rec)
	}

	logger.WithFields(log.Fields{
		"days":    days,
		"matches": len(out),
	}).Debug("email query done")

	return out, nil
}

// Appointments returns the calendar items of folder starting between
// today and days days ahead that match expr, earliest first. Items
// without a start time are kept regardless of the window.
func (e *Engine) Appointments(
	ctx context.Context, folder source.Folder, days int, expr Expression,
) ([]*model.Appointment, error) {
	since, until := CalendarWindow(e.now(), days)
	q := source.ItemQuery{Since: since, Until: until}

	items, err := e.fetchAppointments(ctx, folder, q, expr)
	if err != nil {
		return nil, err
	}

	logger := e.log.WithField("folder", folder.Name())
	out := make([]*model.Appointment, 0, len(items))

	for i := range items {
		raw := &items[i]
		if raw.Err != nil {
			logger.WithError(raw.Err).Warn("skipping unreadable appointment")
			metrics.IncrementSkippedItem(string(model.KindAppointment))
			continue
		}

		if !raw.Start.IsZero() {
			start := naiveLocal(raw.Start)
			if start.Before(since) || start.After(until) {
				continue
			}
		}
		if !expr.matchAppointment(raw) {
			continue
		}

		rec, err := NormalizeAppointment(raw)
		if err != nil {
			logger.WithError(err).Warn("skipping appointment")
			metrics.IncrementSkippedItem(string(model.KindAppointment))
			continue
		}
		out = append(out, rec)
	}

	logger.WithFields(log.Fields{
		"days":    days,
		"matches": len(out),
	}).Debug("calendar query done")

	return out, nil
}

func (e *Engine) fetchMail(
	ctx context.Context, folder source.Folder, q source.ItemQuery, expr Expression,
) ([]source.RawMail, error) {
	if !expr.Empty() {
		restricted := q
		restricted.Restrict = expr.mailRestriction()

		items, err := folder.Messages(ctx, restricted)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.pushdownFailed(folder, model.KindEmail, err)
	}

	items, err := folder.Messages(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading messages of %s: %w", folder.Name(), err)
	}
	return items, nil
}

func (e *Engine) fetchAppointments(
	ctx context.Context, folder source.Folder, q source.ItemQuery, expr Expression,
) ([]source.RawAppointment, error) {
	if !expr.Empty() {
		restricted := q
		restricted.Restrict = expr.appointmentRestriction()

		items, err := folder.Appointments(ctx, restricted)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.pushdownFailed(folder, model.KindAppointment, err)
	}

	items, err := folder.Appointments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading appointments of %s: %w", folder.Name(), err)
	}
	return items, nil
}

func (e *Engine) pushdownFailed(folder source.Folder, kind model.Kind, err error) {
	e.log.WithFields(log.Fields{
		"folder": folder.Name(),
		"kind":   kind,
	}).WithError(err).Warn("store rejected search filter, scanning folder")
	metrics.IncrementPushdownFallback(string(kind))
}
