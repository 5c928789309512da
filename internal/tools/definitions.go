package tools

import (
	"encoding/json"
	"fmt"

	"github.com/xmubeta/outlook-mcp-server/internal/model"
)

// Tool names.
const (
	ListFolders                = "list_folders"
	ListRecentEmails           = "list_recent_emails"
	SearchEmails               = "search_emails"
	GetEmailByNumber           = "get_email_by_number"
	ReplyToEmailByNumber       = "reply_to_email_by_number"
	ComposeEmail               = "compose_email"
	ListCalendarAppointments   = "list_calendar_appointments"
	SearchCalendarAppointments = "search_calendar_appointments"
	GetAppointmentByNumber     = "get_appointment_by_number"
	CreateCalendarAppointment  = "create_calendar_appointment"
)

const (
	defaultEmailDays    = 7
	defaultCalendarDays = 14
)

// Tool describes one callable tool and the JSON schema of its input.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Definitions returns the tools advertised to clients.
// Day limits are taken from limits.
func Definitions(limits model.LimitsConfig) []Tool {
	emailDays := fmt.Sprintf(`{
		"type": "integer",
		"minimum": 1,
		"maximum": %d,
		"default": %d,
		"description": "Number of days to look back (max %d)"
	}`, limits.MaxEmailDays, defaultEmailDays, limits.MaxEmailDays)

	calendarDays := fmt.Sprintf(`{
		"type": "integer",
		"minimum": 1,
		"maximum": %d,
		"default": %d,
		"description": "Number of days to look ahead from today (max %d)"
	}`, limits.MaxCalendarDays, defaultCalendarDays, limits.MaxCalendarDays)

	folderName := `{
		"type": "string",
		"description": "Name of the folder to check (defaults to the Inbox)"
	}`

	saveAsDraft := `{
		"type": "boolean",
		"default": true,
		"description": "Save as a draft instead of sending immediately"
	}`

	return []Tool{
		{
			Name:        ListFolders,
			Description: "List all available mail folders, three levels deep.",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name: ListRecentEmails,
			Description: "List emails received in the last number of days. " +
				"Results are numbered for use with get_email_by_number.",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"days": %s,
					"folder_name": %s
				}
			}`, emailDays, folderName)),
		},
		{
			Name: SearchEmails,
			Description: "Search emails by contact name or keyword in subject, " +
				"sender and body. Separate alternatives with \" OR \".",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"search_term": {
						"type": "string",
						"description": "Name or keyword to search for, e.g. \"alice OR budget\""
					},
					"days": %s,
					"folder_name": %s
				},
				"required": ["search_term"]
			}`, emailDays, folderName)),
		},
		{
			Name:        GetEmailByNumber,
			Description: "Get the full content of an email by its number from the last email listing.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"email_number": {
						"type": "integer",
						"minimum": 1,
						"description": "The number of the email from the list results"
					}
				},
				"required": ["email_number"]
			}`),
		},
		{
			Name:        ReplyToEmailByNumber,
			Description: "Reply to an email by its number from the last email listing.",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"email_number": {
						"type": "integer",
						"minimum": 1,
						"description": "The number of the email from the list results"
					},
					"reply_text": {
						"type": "string",
						"description": "The text content of the reply"
					},
					"save_as_draft": %s
				},
				"required": ["email_number", "reply_text"]
			}`, saveAsDraft)),
		},
		{
			Name:        ComposeEmail,
			Description: "Compose a new email and send it or save it as a draft.",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"recipient_email": {
						"type": "string",
						"description": "Email address of the recipient; separate several with \";\""
					},
					"subject": {
						"type": "string",
						"description": "Subject line of the email"
					},
					"body": {
						"type": "string",
						"description": "Main content of the email"
					},
					"cc_email": {
						"type": "string",
						"description": "Email address for CC (optional)"
					},
					"save_as_draft": %s
				},
				"required": ["recipient_email", "subject", "body"]
			}`, saveAsDraft)),
		},
		{
			Name: ListCalendarAppointments,
			Description: "List calendar appointments from today through the " +
				"given number of days. Results are numbered for use with get_appointment_by_number.",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"days": %s
				}
			}`, calendarDays)),
		},
		{
			Name: SearchCalendarAppointments,
			Description: "Search calendar appointments by keyword in subject, " +
				"location and body. Separate alternatives with \" OR \".",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"search_term": {
						"type": "string",
						"description": "Keyword to search for"
					},
					"days": %s
				},
				"required": ["search_term"]
			}`, calendarDays)),
		},
		{
			Name:        GetAppointmentByNumber,
			Description: "Get the details of an appointment by its number from the last calendar listing.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"appointment_number": {
						"type": "integer",
						"minimum": 1,
						"description": "The number of the appointment from the list results"
					}
				},
				"required": ["appointment_number"]
			}`),
		},
		{
			Name:        CreateCalendarAppointment,
			Description: "Create a new calendar appointment.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"subject": {
						"type": "string",
						"description": "Subject or title of the appointment"
					},
					"start_time": {
						"type": "string",
						"description": "Start time in format 'YYYY-MM-DD HH:MM'"
					},
					"end_time": {
						"type": "string",
						"description": "End time in format 'YYYY-MM-DD HH:MM'"
					},
					"location": {
						"type": "string",
						"description": "Location of the appointment (optional)"
					},
					"body": {
						"type": "string",
						"description": "Description of the appointment (optional)"
					},
					"attendees": {
						"type": "string",
						"description": "Comma-separated attendee email addresses (optional)"
					}
				},
				"required": ["subject", "start_time", "end_time"]
			}`),
		},
	}
}
