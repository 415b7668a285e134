package wavebox

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// SenderVisitor marks messages authored by the website visitor. Any other
// sender value belongs to the organization side (agent or bot).
const SenderVisitor = "VISITOR"

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,}$`)

// Lead is a visitor's contact record. It gates access to chat and is created
// once per browser session.
type Lead struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	PhoneNumber      string `json:"phoneNumber"`
	Location         string `json:"location,omitempty"`
	Source           string `json:"source,omitempty"`
	OrganizationSlug string `json:"slug,omitempty"`
}

// Validate checks the lead form fields. Field names in the returned
// FieldErrors match the form inputs so they can be surfaced inline.
func (l *Lead) Validate() error {
	errs := FieldErrors{}
	if len(strings.TrimSpace(l.Name)) < 3 {
		errs["name"] = "name must be at least 3 characters"
	}
	if _, err := mail.ParseAddress(l.Email); err != nil {
		errs["email"] = "must be a valid email address"
	}
	if !phonePattern.MatchString(l.PhoneNumber) {
		errs["phoneNumber"] = "must be a valid phone number with at least 10 digits"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// LeadRecord is a created lead as returned by the backend.
type LeadRecord struct {
	ID string `json:"id"`
	Lead
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatSession identifies an active conversation. All message operations
// require a complete session.
type ChatSession struct {
	LeadID         string `json:"wavebox_lead_id"`
	ChatID         string `json:"wavebox_chat_id"`
	OrganizationID string `json:"organization_id"`
}

// Valid reports whether every session identifier is present.
func (s ChatSession) Valid() bool {
	return s.LeadID != "" && s.ChatID != "" && s.OrganizationID != ""
}

// Message is one entry in a conversation. The backend owns identity and
// ordering; the client never assigns message ids.
type Message struct {
	Text        string `json:"message"`
	Sender      string `json:"sender"`
	ResponderID string `json:"responder_id,omitempty"`
}

// FromVisitor reports whether the message was sent by the visitor.
func (m Message) FromVisitor() bool {
	return m.Sender == SenderVisitor
}

// CreateLeadResponse is the backend reply to lead creation: the stored lead
// plus the chat session all further message traffic runs on.
type CreateLeadResponse struct {
	Lead LeadRecord  `json:"lead"`
	Chat ChatSession `json:"chat"`
}

// SendMessageRequest is the body for POST /api/website-messaging.
type SendMessageRequest struct {
	Message        string `json:"message"`
	OrganizationID string `json:"organization_id"`
	ChatID         string `json:"wavebox_chat_id"`
	LeadID         string `json:"wavebox_lead_id"`
	ResponderID    string `json:"responder_id,omitempty"`
}

// PopupQuery selects popups eligible for a page visit.
type PopupQuery struct {
	Path         string
	IsMobile     bool
	IsNewVisitor bool
}

// Popup statuses as the backend reports them.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Popup is a promotional popup record. Only Active popups may be displayed.
type Popup struct {
	ID       string          `json:"id"`
	Content  json.RawMessage `json:"content"`
	Status   string          `json:"status"`
	Metadata PopupSettings   `json:"metadata"`
}

// Active reports whether the popup is eligible for display at all.
func (p Popup) Active() bool {
	return p.Status == StatusActive
}
