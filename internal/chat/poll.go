package chat

import (
	"context"
	"time"

	"github.com/innovar-labs/wavebox-widget/internal/store"
)

// startPollLocked launches the message sync loop. Caller holds m.mu and has
// already set the session. Restarting while a loop is running replaces it.
// A closed manager never restarts polling: stopPollLocked drops the lock
// while draining the old loop, so a racing caller could otherwise revive a
// goroutine after Close returned.
func (m *SessionManager) startPollLocked() {
	if m.closed {
		return
	}
	m.stopPollLocked()
	ctx, cancel := context.WithCancel(context.Background())
	m.pollCancel = cancel
	m.pollDone = make(chan struct{})
	go m.pollLoop(ctx, m.pollDone)
}

func (m *SessionManager) stopPollLocked() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	if m.pollDone != nil {
		done := m.pollDone
		m.pollDone = nil
		m.mu.Unlock()
		<-done
		m.mu.Lock()
	}
}

func (m *SessionManager) stopPulseLocked() {
	if m.pulseTimer != nil {
		m.pulseTimer.Stop()
		m.pulseTimer = nil
	}
	m.pulsing = false
}

// pollLoop fetches the full message list every tick and replaces the local
// list wholesale. The backend is the sole source of truth at each tick; no
// incremental merge.
func (m *SessionManager) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.pollOnce(ctx) {
				// Ticking must stop before the reset tears the loop down,
				// so the reload fires exactly once.
				go m.reset()
				return
			}
		}
	}
}

// pollOnce runs one sync tick. It returns false when the persisted session
// is gone and the loop must stop.
func (m *SessionManager) pollOnce(ctx context.Context) bool {
	// The persisted record is re-read each tick; a session that vanished or
	// rotted underneath us is unrecoverable client state.
	session, found, err := m.loadSession(ctx)
	if err != nil || !found {
		m.logger.Error("persisted session lost during active chat", "error", err)
		_ = m.markers.Delete(ctx, store.ScopeSession, SessionKey)
		return false
	}

	start := time.Now()
	fetched, err := m.api.FetchMessages(ctx, session)
	m.metrics.ObservePollLatency(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		m.logger.Warn("message fetch failed", "chat_id", session.ChatID, "error", err)
		m.metrics.ObservePollTick("error")
		return true
	}
	m.metrics.ObservePollTick("success")

	m.mu.Lock()
	previous := len(m.messages)
	m.messages = fetched
	for _, msg := range fetched {
		if msg.ResponderID != "" {
			m.responderID = msg.ResponderID
		}
	}
	grew := len(fetched) > previous
	fromOtherParty := len(fetched) > 0 && !fetched[len(fetched)-1].FromVisitor()
	notify := grew && fromOtherParty && m.panelOpen
	if notify {
		m.startPulseLocked()
	}
	notifier := m.notifier
	m.mu.Unlock()

	if notify {
		m.metrics.ObserveNewMessagePulse()
		if notifier != nil {
			notifier.NotifyNewMessage()
		}
	}
	return true
}

// startPulseLocked sets the new-message pulse and arms its auto-clear.
// Caller holds m.mu.
func (m *SessionManager) startPulseLocked() {
	m.pulsing = true
	if m.pulseTimer != nil {
		m.pulseTimer.Stop()
	}
	m.pulseTimer = time.AfterFunc(m.pulseDuration, func() {
		m.mu.Lock()
		m.pulsing = false
		m.pulseTimer = nil
		m.mu.Unlock()
	})
}
