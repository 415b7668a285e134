package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/innovar-labs/wavebox-widget/internal/store"
	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
)

type fakeBackend struct {
	mu       sync.Mutex
	leadResp *wavebox.CreateLeadResponse
	leadErr  error
	leads    []wavebox.Lead
	sendReqs []wavebox.SendMessageRequest
	sendGate chan struct{}
	messages []wavebox.Message
	fetchErr error
}

func (b *fakeBackend) CreateLead(_ context.Context, lead wavebox.Lead) (*wavebox.CreateLeadResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leads = append(b.leads, lead)
	return b.leadResp, b.leadErr
}

func (b *fakeBackend) SendMessage(_ context.Context, req wavebox.SendMessageRequest) (*wavebox.Message, error) {
	b.mu.Lock()
	gate := b.sendGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendReqs = append(b.sendReqs, req)
	return &wavebox.Message{Text: req.Message, Sender: wavebox.SenderVisitor}, nil
}

func (b *fakeBackend) FetchMessages(_ context.Context, _ wavebox.ChatSession) ([]wavebox.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return append([]wavebox.Message(nil), b.messages...), nil
}

func (b *fakeBackend) setMessages(msgs []wavebox.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = msgs
}

func (b *fakeBackend) sentRequests() []wavebox.SendMessageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]wavebox.SendMessageRequest(nil), b.sendReqs...)
}

func (b *fakeBackend) submittedLeads() []wavebox.Lead {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]wavebox.Lead(nil), b.leads...)
}

type fakeLocator struct {
	location string
	err      error
}

func (l *fakeLocator) Locate(context.Context) (string, error) { return l.location, l.err }

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) NotifyNewMessage() { c.n.Add(1) }

type countingReloader struct{ n atomic.Int32 }

func (c *countingReloader) Reload() { c.n.Add(1) }

func validLead() wavebox.Lead {
	return wavebox.Lead{Name: "Jane Doe", Email: "jane@x.com", PhoneNumber: "+12345678901"}
}

func sessionFixture() wavebox.ChatSession {
	return wavebox.ChatSession{LeadID: "lead-1", ChatID: "chat-1", OrganizationID: "org-1"}
}

func leadResponse() *wavebox.CreateLeadResponse {
	return &wavebox.CreateLeadResponse{
		Lead: wavebox.LeadRecord{ID: "lead-1"},
		Chat: sessionFixture(),
	}
}

func TestSubmitLeadActivatesAndPersistsSession(t *testing.T) {
	ctx := context.Background()
	api := &fakeBackend{leadResp: leadResponse()}
	markers := store.NewMemoryStore()
	m := NewSessionManager(api, markers, "acme", Options{
		Locator:      &fakeLocator{location: "Austin, TX"},
		PollInterval: time.Hour,
	})
	defer m.Close()

	require.Equal(t, StateLeadFormVisible, m.OpenPanel())
	require.NoError(t, m.SubmitLead(ctx, validLead()))
	assert.Equal(t, StateSessionActive, m.State())

	session, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, sessionFixture(), session)

	// The submitted lead carries slug, default source and the located city.
	leads := api.submittedLeads()
	require.Len(t, leads, 1)
	assert.Equal(t, "acme", leads[0].OrganizationSlug)
	assert.Equal(t, "website", leads[0].Source)
	assert.Equal(t, "Austin, TX", leads[0].Location)

	// The session record round-trips through the session-scoped marker.
	raw, found, err := markers.Get(ctx, store.ScopeSession, SessionKey)
	require.NoError(t, err)
	require.True(t, found)
	var persisted wavebox.ChatSession
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, sessionFixture(), persisted)
}

func TestSubmitLeadValidationFailsBeforeNetwork(t *testing.T) {
	api := &fakeBackend{leadResp: leadResponse()}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{PollInterval: time.Hour})
	defer m.Close()

	m.OpenPanel()
	err := m.SubmitLead(context.Background(), wavebox.Lead{Name: "Jo", Email: "bad", PhoneNumber: "123"})
	require.Error(t, err)
	var fields wavebox.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Len(t, fields, 3)
	assert.Empty(t, api.submittedLeads())
	assert.Equal(t, StateLeadFormVisible, m.State())
}

func TestSubmitLeadBackendFailureKeepsFormUp(t *testing.T) {
	api := &fakeBackend{leadErr: errors.New("boom")}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{PollInterval: time.Hour})
	defer m.Close()

	m.OpenPanel()
	require.Error(t, m.SubmitLead(context.Background(), validLead()))
	assert.Equal(t, StateLeadFormVisible, m.State())
	if _, ok := m.Session(); ok {
		t.Fatal("failed submission must not leave a session behind")
	}
}

func TestSubmitLeadLocatorFailureDegrades(t *testing.T) {
	api := &fakeBackend{leadResp: leadResponse()}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
		Locator:      &fakeLocator{err: errors.New("denied")},
		PollInterval: time.Hour,
	})
	defer m.Close()

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(context.Background(), validLead()))
	leads := api.submittedLeads()
	require.Len(t, leads, 1)
	assert.Equal(t, "Unknown", leads[0].Location)
}

func TestSendIsOptimistic(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	api := &fakeBackend{leadResp: leadResponse(), sendGate: gate}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{PollInterval: time.Hour})

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(ctx, validLead()))
	require.NoError(t, m.Send(ctx, "hello"))

	// The local list already has the entry while the POST is still blocked.
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, wavebox.Message{Text: "hello", Sender: wavebox.SenderVisitor}, msgs[0])
	assert.Empty(t, api.sentRequests())

	close(gate)
	m.Close() // waits for the in-flight send

	reqs := api.sentRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, wavebox.SendMessageRequest{
		Message:        "hello",
		OrganizationID: "org-1",
		ChatID:         "chat-1",
		LeadID:         "lead-1",
	}, reqs[0])
}

func TestSendWithoutSession(t *testing.T) {
	m := NewSessionManager(&fakeBackend{}, store.NewMemoryStore(), "acme", Options{})
	defer m.Close()
	assert.ErrorIs(t, m.Send(context.Background(), "hello"), ErrNoSession)
}

func TestPollReplacesListAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeBackend{leadResp: leadResponse()}
	notifier := &countingNotifier{}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
		Notifier:      notifier,
		PollInterval:  10 * time.Millisecond,
		PulseDuration: 150 * time.Millisecond,
	})
	defer m.Close()

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(ctx, validLead()))

	api.setMessages([]wavebox.Message{
		{Text: "hello", Sender: wavebox.SenderVisitor},
		{Text: "hi there", Sender: "agent", ResponderID: "agent-7"},
	})

	require.Eventually(t, func() bool {
		return len(m.Messages()) == 2
	}, 2*time.Second, 5*time.Millisecond, "poll never replaced the list")

	assert.True(t, m.Pulsing())
	assert.Equal(t, int32(1), notifier.n.Load())

	// Further ticks over the same list must not re-notify, and the pulse
	// clears on its own.
	require.Eventually(t, func() bool {
		return !m.Pulsing()
	}, 2*time.Second, 5*time.Millisecond, "pulse never cleared")
	assert.Equal(t, int32(1), notifier.n.Load())

	// The responder id learned from the fetch rides on the next send.
	require.NoError(t, m.Send(ctx, "thanks"))
	require.Eventually(t, func() bool {
		reqs := api.sentRequests()
		return len(reqs) == 1 && reqs[0].ResponderID == "agent-7"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollDoesNotNotifyWhenPanelClosed(t *testing.T) {
	ctx := context.Background()
	api := &fakeBackend{leadResp: leadResponse()}
	notifier := &countingNotifier{}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
		Notifier:     notifier,
		PollInterval: 10 * time.Millisecond,
	})
	defer m.Close()

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(ctx, validLead()))
	m.ClosePanel()

	api.setMessages([]wavebox.Message{{Text: "hi there", Sender: "agent"}})
	require.Eventually(t, func() bool {
		return len(m.Messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(0), notifier.n.Load())
	assert.False(t, m.Pulsing())
}

func TestPollLostSessionTriggersReload(t *testing.T) {
	ctx := context.Background()
	api := &fakeBackend{leadResp: leadResponse()}
	markers := store.NewMemoryStore()
	reloader := &countingReloader{}
	m := NewSessionManager(api, markers, "acme", Options{
		Reloader:     reloader,
		PollInterval: 10 * time.Millisecond,
	})
	defer m.Close()

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(ctx, validLead()))

	// Simulate the session record rotting underneath the active chat.
	require.NoError(t, markers.Set(ctx, store.ScopeSession, SessionKey, "not json"))

	require.Eventually(t, func() bool {
		return reloader.n.Load() == 1 && m.State() == StateNoLead
	}, 2*time.Second, 5*time.Millisecond, "lost session never reset the manager")

	if _, found, _ := markers.Get(ctx, store.ScopeSession, SessionKey); found {
		t.Fatal("broken session record was not cleared")
	}
}

func TestStartRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	markers := store.NewMemoryStore()
	raw, _ := json.Marshal(sessionFixture())
	require.NoError(t, markers.Set(ctx, store.ScopeSession, SessionKey, string(raw)))

	m := NewSessionManager(&fakeBackend{}, markers, "acme", Options{PollInterval: time.Hour})
	defer m.Close()

	assert.Equal(t, StateSessionActive, m.Start(ctx))
	session, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, sessionFixture(), session)
}

func TestStartWithMalformedSessionReloads(t *testing.T) {
	ctx := context.Background()
	markers := store.NewMemoryStore()
	require.NoError(t, markers.Set(ctx, store.ScopeSession, SessionKey, `{"wavebox_lead_id":"x"}`))

	reloader := &countingReloader{}
	m := NewSessionManager(&fakeBackend{}, markers, "acme", Options{Reloader: reloader})
	defer m.Close()

	assert.Equal(t, StateNoLead, m.Start(ctx))
	assert.Equal(t, int32(1), reloader.n.Load())
	if _, found, _ := markers.Get(ctx, store.ScopeSession, SessionKey); found {
		t.Fatal("malformed session record was not cleared")
	}
}

func TestSubmitLeadAfterCloseRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := &fakeBackend{leadResp: leadResponse()}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
		PollInterval: 5 * time.Millisecond,
	})
	m.OpenPanel()
	m.Close()

	if err := m.SubmitLead(context.Background(), validLead()); !errors.Is(err, ErrClosed) {
		t.Fatalf("submit after close: err = %v, want ErrClosed", err)
	}
	if err := m.Send(context.Background(), "hello"); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: err = %v, want ErrClosed", err)
	}
	assert.Empty(t, api.submittedLeads())
}

func TestCloseRacingSubmitLeadLeavesNoPoller(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		api := &fakeBackend{leadResp: leadResponse()}
		m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
			PollInterval: time.Millisecond,
		})
		m.OpenPanel()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.SubmitLead(ctx, validLead())
		}()
		go func() {
			defer wg.Done()
			m.Close()
		}()
		wg.Wait()
	}
}

func TestCloseStopsPolling(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	api := &fakeBackend{leadResp: leadResponse()}
	m := NewSessionManager(api, store.NewMemoryStore(), "acme", Options{
		PollInterval: 5 * time.Millisecond,
	})

	m.OpenPanel()
	require.NoError(t, m.SubmitLead(ctx, validLead()))
	require.NoError(t, m.Send(ctx, "hello"))
	time.Sleep(20 * time.Millisecond)
	m.Close()
}
