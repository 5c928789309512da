package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xmubeta/outlook-mcp-server/internal/action"
	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// folderNode is one line of the folder tree.
type folderNode struct {
	Name     string
	Children []folderNode
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.TimestampLayout)
}

func renderFolders(roots []folderNode) string {
	var sb strings.Builder
	sb.WriteString("Available mail folders:\n\n")

	var walk func(nodes []folderNode, depth int)
	walk = func(nodes []folderNode, depth int) {
		for _, n := range nodes {
			fmt.Fprintf(&sb, "%s- %s\n", strings.Repeat("  ", depth), n.Name)
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)

	return sb.String()
}

// emailQuery describes the list or search that produced a listing.
type emailQuery struct {
	folder string
	days   int
	search string
}

func (q emailQuery) folderDisplay() string {
	if q.folder == "" {
		return "Inbox"
	}
	return "'" + q.folder + "'"
}

func renderEmailList(q emailQuery, emails []*model.Email) string {
	matching := ""
	if q.search != "" {
		matching = fmt.Sprintf(" matching '%s'", q.search)
	}

	if len(emails) == 0 {
		return fmt.Sprintf("No emails%s found in %s from the last %d days.",
			matching, q.folderDisplay(), q.days)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d emails%s in %s from the last %d days:\n\n",
		len(emails), matching, q.folderDisplay(), q.days)

	for i, e := range emails {
		read := "Read"
		if e.Unread {
			read = "Unread"
		}
		fmt.Fprintf(&sb, "Email #%d\n", i+1)
		fmt.Fprintf(&sb, "Subject: %s\n", e.Subject)
		fmt.Fprintf(&sb, "From: %s <%s>\n", e.SenderName, e.SenderAddress)
		fmt.Fprintf(&sb, "Received: %s\n", formatTime(e.ReceivedTime))
		fmt.Fprintf(&sb, "Read Status: %s\n", read)
		fmt.Fprintf(&sb, "Has Attachments: %s\n\n", yesNo(e.HasAttachments()))
	}

	sb.WriteString("To view the full content of an email, use the get_email_by_number tool with the email number.")
	return sb.String()
}

func renderEmailDetail(n int, e *model.Email, attachments []source.Attachment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Email #%d Details:\n\n", n)
	fmt.Fprintf(&sb, "Subject: %s\n", e.Subject)
	fmt.Fprintf(&sb, "From: %s <%s>\n", e.SenderName, e.SenderAddress)
	fmt.Fprintf(&sb, "Received: %s\n", formatTime(e.ReceivedTime))
	fmt.Fprintf(&sb, "Recipients: %s\n", strings.Join(e.Recipients, ", "))
	fmt.Fprintf(&sb, "Importance: %s\n", e.Importance)
	if e.Categories != "" {
		fmt.Fprintf(&sb, "Categories: %s\n", e.Categories)
	}
	fmt.Fprintf(&sb, "Has Attachments: %s\n", yesNo(e.HasAttachments()))

	if e.HasAttachments() {
		sb.WriteString("Attachments:\n")
		for _, a := range attachments {
			fmt.Fprintf(&sb, "  - %s\n", a.FileName)
		}
	}

	sb.WriteString("\nBody:\n")
	sb.WriteString(e.Body)
	sb.WriteString("\n\nTo reply to this email, use the reply_to_email_by_number tool with this email number.")
	return sb.String()
}

func renderAppointmentList(search string, days int, appts []*model.Appointment) string {
	matching := ""
	if search != "" {
		matching = fmt.Sprintf(" matching '%s'", search)
	}

	if len(appts) == 0 {
		if search != "" {
			return fmt.Sprintf("No appointments%s found in the next %d days.", matching, days)
		}
		return fmt.Sprintf("No appointments found in the next %d days.", days)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d appointments%s in the next %d days:\n\n", len(appts), matching, days)

	for i, a := range appts {
		fmt.Fprintf(&sb, "Appointment #%d\n", i+1)
		fmt.Fprintf(&sb, "Subject: %s\n", a.Subject)
		fmt.Fprintf(&sb, "Start: %s\n", formatTime(a.Start))
		fmt.Fprintf(&sb, "End: %s\n", formatTime(a.End))
		fmt.Fprintf(&sb, "Location: %s\n", a.Location)
		fmt.Fprintf(&sb, "All Day: %s\n", yesNo(a.AllDay))
		fmt.Fprintf(&sb, "Recurring: %s\n\n", yesNo(a.Recurring))
	}

	sb.WriteString("To view the full details of an appointment, use the get_appointment_by_number tool with the appointment number.")
	return sb.String()
}

func renderAppointmentDetail(n int, a *model.Appointment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Appointment #%d Details:\n\n", n)
	fmt.Fprintf(&sb, "Subject: %s\n", a.Subject)
	fmt.Fprintf(&sb, "Start Time: %s\n", formatTime(a.Start))
	fmt.Fprintf(&sb, "End Time: %s\n", formatTime(a.End))
	fmt.Fprintf(&sb, "Location: %s\n", a.Location)
	fmt.Fprintf(&sb, "Organizer: %s\n", a.Organizer)
	if len(a.Attendees) > 0 {
		fmt.Fprintf(&sb, "Attendees: %s\n", strings.Join(a.Attendees, ", "))
	}
	fmt.Fprintf(&sb, "All Day Event: %s\n", yesNo(a.AllDay))
	fmt.Fprintf(&sb, "Recurring: %s\n", yesNo(a.Recurring))
	fmt.Fprintf(&sb, "Reminder: %d minutes before\n", a.ReminderMinutes)
	fmt.Fprintf(&sb, "Categories: %s\n", a.Categories)
	fmt.Fprintf(&sb, "Busy Status: %s\n", a.BusyStatus)

	if a.Body != "" {
		fmt.Fprintf(&sb, "\nDescription:\n%s\n", a.Body)
	}
	return sb.String()
}

func renderActionResult(res action.Result) string {
	switch res.Op {
	case action.OpReply:
		if res.Draft {
			return "Reply saved as draft for: " + res.Recipient
		}
		return "Reply sent successfully to: " + res.Recipient
	case action.OpCompose:
		if res.Draft {
			return "Email saved as draft for: " + res.Recipient
		}
		return "Email sent successfully to: " + res.Recipient
	case action.OpCreateAppointment:
		return fmt.Sprintf("Calendar appointment '%s' created successfully for %s - %s",
			res.Subject, res.Start.Format(action.TimeLayout), res.End.Format(action.TimeLayout))
	}
	return "Done."
}

// renderError is the single place errors become text. op names what
// was being attempted, e.g. "searching emails".
func renderError(op string, err error) string {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return fmt.Sprintf("Error %s: %v", op, err)
	}

	switch appErr.Kind {
	case apperr.KindValidation, apperr.KindNotFound:
		return "Error: " + appErr.Message
	case apperr.KindConnection:
		return fmt.Sprintf("Error %s: could not connect to the mail store: %v", op, appErr)
	default:
		return fmt.Sprintf("Error %s: %v", op, appErr)
	}
}
