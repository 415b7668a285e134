// Package chat manages the visitor side of a website conversation: lead
// capture, session persistence, optimistic sends and a polling sync loop
// against the messaging backend.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/innovar-labs/wavebox-widget/internal/observability/metrics"
	"github.com/innovar-labs/wavebox-widget/internal/store"
	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// SessionKey is the session-scoped marker holding the persisted {lead, chat}
// record. The name is fixed so existing visitor sessions keep working.
const SessionKey = "wavebox_session"

const (
	defaultPollInterval  = 5 * time.Second
	defaultPulseDuration = 3 * time.Second
	defaultLeadSource    = "website"
	defaultLocation      = "Unknown"
)

// ErrNoSession is returned by message operations before a lead was captured.
var ErrNoSession = errors.New("chat: no active session")

// ErrSubmitInFlight is returned when a lead submission is already running.
var ErrSubmitInFlight = errors.New("chat: lead submission already in flight")

// ErrClosed is returned by operations on a manager that was torn down.
var ErrClosed = errors.New("chat: session manager closed")

// State is the lifecycle of the chat surface for one visitor.
type State int

const (
	// StateNoLead is the initial state: no contact details captured yet.
	StateNoLead State = iota
	// StateLeadFormVisible means the lead form is on screen.
	StateLeadFormVisible
	// StateLeadSubmitting means a lead creation call is in flight.
	StateLeadSubmitting
	// StateSessionActive means chat is open and the poll loop is running.
	StateSessionActive
)

func (s State) String() string {
	switch s {
	case StateLeadFormVisible:
		return "lead_form_visible"
	case StateLeadSubmitting:
		return "lead_submitting"
	case StateSessionActive:
		return "session_active"
	default:
		return "no_lead"
	}
}

// Backend is the subset of the API client the session manager needs.
type Backend interface {
	CreateLead(ctx context.Context, lead wavebox.Lead) (*wavebox.CreateLeadResponse, error)
	SendMessage(ctx context.Context, req wavebox.SendMessageRequest) (*wavebox.Message, error)
	FetchMessages(ctx context.Context, session wavebox.ChatSession) ([]wavebox.Message, error)
}

// Locator resolves a coarse visitor location for lead enrichment. Failures
// are non-fatal; submission proceeds with a placeholder.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// Reloader models a full page reload. A broken persisted session is treated
// as unrecoverable client state and handed to the embedding layer to restart.
type Reloader interface {
	Reload()
}

// Notifier receives the one-shot new-message notification (sound cue in the
// browser surface).
type Notifier interface {
	NotifyNewMessage()
}

// Options configures a session manager.
type Options struct {
	Logger   *logging.Logger
	Metrics  *metrics.WidgetMetrics
	Locator  Locator
	Reloader Reloader
	Notifier Notifier
	// PollInterval is the message sync cadence. Defaults to 5s.
	PollInterval time.Duration
	// PulseDuration is how long the new-message pulse stays set. Defaults
	// to 3s.
	PulseDuration time.Duration
}

// SessionManager drives the visitor chat state machine
// NoLead -> LeadFormVisible -> LeadSubmitting -> SessionActive. It owns the
// in-memory message list; the backend's returned order is authoritative.
type SessionManager struct {
	api           Backend
	markers       store.MarkerStore
	slug          string
	logger        *logging.Logger
	metrics       *metrics.WidgetMetrics
	locator       Locator
	reloader      Reloader
	notifier      Notifier
	pollInterval  time.Duration
	pulseDuration time.Duration

	mu          sync.Mutex
	state       State
	session     wavebox.ChatSession
	messages    []wavebox.Message
	responderID string
	panelOpen   bool
	pulsing     bool
	pulseTimer  *time.Timer
	pollCancel  context.CancelFunc
	pollDone    chan struct{}
	closed      bool

	sends sync.WaitGroup
}

// NewSessionManager builds a session manager for one visitor. Call Start to
// restore any persisted session and begin polling.
func NewSessionManager(api Backend, markers store.MarkerStore, slug string, opts Options) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pulseDuration := opts.PulseDuration
	if pulseDuration <= 0 {
		pulseDuration = defaultPulseDuration
	}
	return &SessionManager{
		api:           api,
		markers:       markers,
		slug:          slug,
		logger:        logger.Component("chat-session"),
		metrics:       opts.Metrics,
		locator:       opts.Locator,
		reloader:      opts.Reloader,
		notifier:      opts.Notifier,
		pollInterval:  pollInterval,
		pulseDuration: pulseDuration,
	}
}

// Start restores a persisted session if one exists and starts the poll loop
// for it. A malformed persisted record triggers the reload path. Returns the
// resulting state.
func (m *SessionManager) Start(ctx context.Context) State {
	session, found, err := m.loadSession(ctx)
	if err != nil {
		m.logger.Warn("discarding unreadable persisted session", "error", err)
		_ = m.markers.Delete(ctx, store.ScopeSession, SessionKey)
		m.reset()
		return m.State()
	}
	if !found {
		return m.State()
	}

	m.mu.Lock()
	m.session = session
	m.state = StateSessionActive
	m.startPollLocked()
	m.mu.Unlock()
	m.logger.Info("restored chat session", "chat_id", session.ChatID)
	return StateSessionActive
}

// State returns the current lifecycle state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the active chat session, if any.
func (m *SessionManager) Session() (wavebox.ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.state == StateSessionActive
}

// Messages returns a copy of the local message list, oldest first.
func (m *SessionManager) Messages() []wavebox.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wavebox.Message(nil), m.messages...)
}

// Pulsing reports whether the new-message pulse is currently set.
func (m *SessionManager) Pulsing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulsing
}

// OpenPanel marks the chat panel open. Without a session this surfaces the
// lead form.
func (m *SessionManager) OpenPanel() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panelOpen = true
	if m.state == StateNoLead {
		m.state = StateLeadFormVisible
	}
	return m.state
}

// ClosePanel marks the chat panel closed. Polling continues; only the
// notification pulse depends on panel visibility.
func (m *SessionManager) ClosePanel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panelOpen = false
}

// SubmitLead validates and submits the lead form. On success the returned
// session is persisted and the manager transitions to SessionActive; on
// failure the form stays up and the error is returned. Location is a
// best-effort enrichment and never blocks submission.
func (m *SessionManager) SubmitLead(ctx context.Context, lead wavebox.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case StateLeadSubmitting:
		m.mu.Unlock()
		return ErrSubmitInFlight
	case StateSessionActive:
		m.mu.Unlock()
		return errors.New("chat: session already active")
	}
	m.state = StateLeadSubmitting
	m.mu.Unlock()

	lead.OrganizationSlug = m.slug
	if lead.Source == "" {
		lead.Source = defaultLeadSource
	}
	lead.Location = m.locate(ctx)

	resp, err := m.api.CreateLead(ctx, lead)
	if err != nil {
		m.logger.Error("lead creation failed", "error", err)
		m.metrics.ObserveLeadSubmission("error")
		m.mu.Lock()
		m.state = StateLeadFormVisible
		m.mu.Unlock()
		return err
	}

	if err := m.persistSession(ctx, resp.Chat); err != nil {
		// The backend accepted the lead; keep the session in memory and
		// carry on without persistence.
		m.logger.Warn("failed to persist chat session", "error", err)
	}

	m.mu.Lock()
	m.session = resp.Chat
	m.state = StateSessionActive
	m.startPollLocked()
	m.mu.Unlock()

	m.metrics.ObserveLeadSubmission("success")
	m.logger.Info("chat session started", "chat_id", resp.Chat.ChatID, "lead_id", resp.Chat.LeadID)
	return nil
}

// Send appends the message to the local list immediately and posts it in the
// background, attaching the last seen responder id. Network failures are
// logged and never roll back the optimistic entry.
func (m *SessionManager) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateSessionActive {
		m.mu.Unlock()
		return ErrNoSession
	}
	session := m.session
	responderID := m.responderID
	m.messages = append(m.messages, wavebox.Message{Text: text, Sender: wavebox.SenderVisitor})
	m.sends.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.sends.Done()
		_, err := m.api.SendMessage(ctx, wavebox.SendMessageRequest{
			Message:        text,
			OrganizationID: session.OrganizationID,
			ChatID:         session.ChatID,
			LeadID:         session.LeadID,
			ResponderID:    responderID,
		})
		if err != nil {
			m.logger.Error("message send failed", "chat_id", session.ChatID, "error", err)
			m.metrics.ObserveMessageSent("error")
			return
		}
		m.metrics.ObserveMessageSent("success")
	}()
	return nil
}

// Close stops the poll loop and pulse timer and waits for in-flight sends.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopPollLocked()
	m.stopPulseLocked()
	m.mu.Unlock()
	m.sends.Wait()
}

// reset drops all local session state back to NoLead and hands control to
// the reloader. Mirrors the original widget's page-reload recovery.
func (m *SessionManager) reset() {
	m.mu.Lock()
	m.stopPollLocked()
	m.stopPulseLocked()
	m.state = StateNoLead
	m.session = wavebox.ChatSession{}
	m.messages = nil
	m.responderID = ""
	m.pulsing = false
	reloader := m.reloader
	m.mu.Unlock()

	if reloader != nil {
		reloader.Reload()
	}
}

func (m *SessionManager) locate(ctx context.Context) string {
	if m.locator == nil {
		return defaultLocation
	}
	location, err := m.locator.Locate(ctx)
	if err != nil || location == "" {
		m.logger.Warn("geolocation unavailable, proceeding without", "error", err)
		return defaultLocation
	}
	return location
}

func (m *SessionManager) persistSession(ctx context.Context, session wavebox.ChatSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return m.markers.Set(ctx, store.ScopeSession, SessionKey, string(raw))
}

// loadSession reads the persisted session record. A stored value that does
// not decode to a complete session is an error; absence is not.
func (m *SessionManager) loadSession(ctx context.Context) (wavebox.ChatSession, bool, error) {
	raw, ok, err := m.markers.Get(ctx, store.ScopeSession, SessionKey)
	if err != nil || !ok {
		return wavebox.ChatSession{}, false, err
	}
	var session wavebox.ChatSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return wavebox.ChatSession{}, false, err
	}
	if !session.Valid() {
		return wavebox.ChatSession{}, false, errors.New("chat: incomplete persisted session")
	}
	return session, true, nil
}
