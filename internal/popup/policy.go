package popup

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/innovar-labs/wavebox-widget/internal/store"
	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// State is the lifecycle of one popup instance on one page visit.
type State int

const (
	// StatePending means eligibility gating has not passed.
	StatePending State = iota
	// StateEligible means the popup may show once its trigger fires.
	StateEligible
	// StateVisible means the popup is on screen.
	StateVisible
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEligible:
		return "eligible"
	case StateVisible:
		return "visible"
	case StateClosed:
		return "closed"
	default:
		return "pending"
	}
}

// Context describes the page visit a popup is evaluated against.
type Context struct {
	Path         string
	IsMobile     bool
	IsNewVisitor bool
}

const (
	defaultDelaySeconds  = 5
	defaultScrollPercent = 50
)

// Marker key formats carried over from the browser widget, so existing
// visitor state keeps working.
func shownKey(popupID string) string {
	return "popup_" + popupID + "_shown"
}

func lastShownKey(popupID string) string {
	return "popup_" + popupID + "_last_shown"
}

// Options configures a popup instance.
type Options struct {
	Logger *logging.Logger
	// OnShow is invoked, outside the instance lock, when the popup becomes
	// visible.
	OnShow func(RenderPlan)
	// OnClose is invoked after the instance transitions to Closed.
	OnClose func()
	// Now overrides the clock.
	Now func() time.Time
}

// Instance runs one popup through Pending → Eligible → Visible → Closed.
// Page events (scroll offsets, pointer leave) are fed in by the embedding
// layer; time comes from the injected clock.
type Instance struct {
	popup    wavebox.Popup
	settings Settings
	markers  store.MarkerStore
	page     Context
	logger   *logging.Logger
	now      func() time.Time
	onShow   func(RenderPlan)
	onClose  func()

	// tick is the unit behind second-denominated settings; tests shrink it.
	tick time.Duration

	mu         sync.Mutex
	state      State
	fired      bool
	delayTimer *time.Timer
	closeTimer *time.Timer
}

// NewInstance builds an instance for one popup on one page visit.
func NewInstance(p wavebox.Popup, markers store.MarkerStore, page Context, opts Options) *Instance {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Instance{
		popup:    p,
		settings: ResolveSettings(p.Metadata),
		markers:  markers,
		page:     page,
		logger:   logger,
		now:      now,
		onShow:   opts.OnShow,
		onClose:  opts.OnClose,
		tick:     time.Second,
	}
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Settings returns the resolved settings the instance runs on.
func (i *Instance) Settings() Settings {
	return i.settings
}

// Start evaluates eligibility and, when it passes, arms the trigger.
// Immediate triggers show synchronously before Start returns. An ineligible
// popup stays Pending for the rest of the page visit; the caller discards it.
func (i *Instance) Start(ctx context.Context) (State, error) {
	ok, err := i.eligible(ctx)
	if err != nil {
		return i.State(), err
	}
	if !ok {
		return StatePending, nil
	}

	i.mu.Lock()
	if i.state != StatePending {
		state := i.state
		i.mu.Unlock()
		return state, nil
	}
	i.state = StateEligible

	switch i.settings.Trigger {
	case TriggerDelay:
		delay := i.settings.TriggerValue
		if delay <= 0 {
			delay = defaultDelaySeconds
		}
		i.delayTimer = time.AfterFunc(time.Duration(delay)*i.tick, func() {
			i.show(context.Background())
		})
		i.mu.Unlock()
	case TriggerScroll, TriggerExitIntent:
		// Armed; waits for page events.
		i.mu.Unlock()
	default: // immediate
		i.mu.Unlock()
		i.show(ctx)
	}
	return i.State(), nil
}

// OnScroll feeds a scroll sample. The popup shows when the scrolled
// percentage of the scrollable height reaches the configured threshold.
func (i *Instance) OnScroll(ctx context.Context, scrollY, viewportHeight, documentHeight float64) {
	i.mu.Lock()
	armed := i.state == StateEligible && !i.fired && i.settings.Trigger == TriggerScroll
	threshold := float64(i.settings.TriggerValue)
	i.mu.Unlock()
	if !armed {
		return
	}
	if threshold <= 0 {
		threshold = defaultScrollPercent
	}

	scrollable := documentHeight - viewportHeight
	percent := 100.0
	if scrollable > 0 {
		percent = scrollY / scrollable * 100
	}
	if percent >= threshold {
		i.show(ctx)
	}
}

// OnPointerLeave feeds a pointer-leave event. Exit intent is the pointer
// crossing the top edge of the viewport.
func (i *Instance) OnPointerLeave(ctx context.Context, clientY float64) {
	i.mu.Lock()
	armed := i.state == StateEligible && !i.fired && i.settings.Trigger == TriggerExitIntent
	i.mu.Unlock()
	if !armed || clientY > 0 {
		return
	}
	i.show(ctx)
}

func (i *Instance) show(ctx context.Context) {
	i.mu.Lock()
	if i.state != StateEligible || i.fired {
		i.mu.Unlock()
		return
	}
	i.fired = true
	i.state = StateVisible
	i.stopTriggerTimerLocked()

	if i.settings.Duration > 0 {
		i.closeTimer = time.AfterFunc(time.Duration(i.settings.Duration)*i.tick, func() {
			i.Close(context.Background())
		})
	}
	plan := BuildRenderPlan(i.popup.ID, i.settings, i.popup.Content)
	onShow := i.onShow
	i.mu.Unlock()

	// Session-scoped popups are marked at show time, not close time.
	if i.settings.Frequency == FrequencyOncePerSession {
		if err := i.markers.Set(ctx, store.ScopeSession, shownKey(i.popup.ID), "true"); err != nil {
			i.logger.Warn("failed to record session shown marker", "popup_id", i.popup.ID, "error", err)
		}
	}

	i.logger.Info("popup shown",
		"popup_id", i.popup.ID,
		"trigger", string(i.settings.Trigger),
		"position", string(i.settings.Position),
	)
	if onShow != nil {
		onShow(plan)
	}
}

// Close transitions Visible → Closed, records the frequency marker for the
// popup's policy and invokes the close callback. Closing an instance that
// never showed tears it down without recording anything.
func (i *Instance) Close(ctx context.Context) {
	i.mu.Lock()
	if i.state == StateClosed {
		i.mu.Unlock()
		return
	}
	wasVisible := i.state == StateVisible
	i.state = StateClosed
	i.stopTriggerTimerLocked()
	i.stopCloseTimerLocked()
	onClose := i.onClose
	i.mu.Unlock()

	if wasVisible {
		i.recordFrequencyMarkers(ctx)
	}
	if onClose != nil {
		onClose()
	}
}

// Teardown cancels timers and terminates the instance without recording
// markers or invoking callbacks. Used on page unload and context changes.
func (i *Instance) Teardown() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateClosed
	i.stopTriggerTimerLocked()
	i.stopCloseTimerLocked()
}

func (i *Instance) stopTriggerTimerLocked() {
	if i.delayTimer != nil {
		i.delayTimer.Stop()
		i.delayTimer = nil
	}
}

func (i *Instance) stopCloseTimerLocked() {
	if i.closeTimer != nil {
		i.closeTimer.Stop()
		i.closeTimer = nil
	}
}

func (i *Instance) recordFrequencyMarkers(ctx context.Context) {
	id := i.popup.ID
	switch i.settings.Frequency {
	case FrequencyOnce:
		if err := i.markers.Set(ctx, store.ScopePersistent, shownKey(id), "true"); err != nil {
			i.logger.Warn("failed to record shown marker", "popup_id", id, "error", err)
		}
		i.setLastShown(ctx)
	case FrequencyOncePerSession:
		if err := i.markers.Set(ctx, store.ScopeSession, shownKey(id), "true"); err != nil {
			i.logger.Warn("failed to record session shown marker", "popup_id", id, "error", err)
		}
	default: // custom and always only track the last-shown timestamp
		i.setLastShown(ctx)
	}
}

func (i *Instance) setLastShown(ctx context.Context) {
	ts := i.now().UTC().Format(time.RFC3339)
	if err := i.markers.Set(ctx, store.ScopePersistent, lastShownKey(i.popup.ID), ts); err != nil {
		i.logger.Warn("failed to record last-shown marker", "popup_id", i.popup.ID, "error", err)
	}
}

// eligible applies the Pending → Eligible gate: status, device, page,
// audience, date window and frequency, all of which must pass.
func (i *Instance) eligible(ctx context.Context) (bool, error) {
	if !i.popup.Active() {
		return false, nil
	}
	if i.page.IsMobile && !i.settings.ShowOnMobile {
		return false, nil
	}
	if !i.page.IsMobile && !i.settings.ShowOnDesktop {
		return false, nil
	}
	if !i.pageMatches() {
		return false, nil
	}
	if !i.audienceMatches() {
		return false, nil
	}
	now := i.now()
	if i.settings.StartDate != nil && now.Before(*i.settings.StartDate) {
		return false, nil
	}
	if i.settings.EndDate != nil && now.After(*i.settings.EndDate) {
		return false, nil
	}
	return i.frequencyAllows(ctx)
}

func (i *Instance) pageMatches() bool {
	if i.settings.TargetPages != TargetPagesSpecific {
		return true
	}
	for _, p := range i.settings.SpecificPages {
		if p == "" {
			continue
		}
		if i.page.Path == p || strings.HasPrefix(i.page.Path, p) {
			return true
		}
	}
	return false
}

func (i *Instance) audienceMatches() bool {
	switch i.settings.TargetAudience {
	case AudienceNew:
		return i.page.IsNewVisitor
	case AudienceReturning:
		return !i.page.IsNewVisitor
	default:
		return true
	}
}

func (i *Instance) frequencyAllows(ctx context.Context) (bool, error) {
	id := i.popup.ID
	switch i.settings.Frequency {
	case FrequencyAlways:
		return true, nil
	case FrequencyOnce:
		shown, ok, err := i.markers.Get(ctx, store.ScopePersistent, shownKey(id))
		if err != nil {
			return false, err
		}
		return !(ok && shown == "true"), nil
	case FrequencyOncePerSession:
		shown, ok, err := i.markers.Get(ctx, store.ScopeSession, shownKey(id))
		if err != nil {
			return false, err
		}
		return !(ok && shown == "true"), nil
	case FrequencyCustom:
		if i.settings.FrequencyDays <= 0 {
			return true, nil
		}
		raw, ok, err := i.markers.Get(ctx, store.ScopePersistent, lastShownKey(id))
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		lastShown, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			i.logger.Warn("discarding malformed last-shown marker", "popup_id", id, "value", raw)
			return true, nil
		}
		elapsedDays := int(math.Floor(i.now().Sub(lastShown).Hours() / 24))
		return elapsedDays >= i.settings.FrequencyDays, nil
	default:
		return true, nil
	}
}
