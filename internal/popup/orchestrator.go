package popup

import (
	"context"
	"sync"
	"time"

	"github.com/innovar-labs/wavebox-widget/internal/observability/metrics"
	"github.com/innovar-labs/wavebox-widget/internal/store"
	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// visitedKey is the persistent first-load marker behind new-visitor
// detection. Set once, never reset.
const visitedKey = "visited"

// Fetcher retrieves the popups eligible for a page context.
type Fetcher interface {
	FetchActivePopups(ctx context.Context, query wavebox.PopupQuery) ([]wavebox.Popup, error)
}

// OrchestratorOptions configures a popup orchestrator.
type OrchestratorOptions struct {
	Logger  *logging.Logger
	Metrics *metrics.WidgetMetrics
	// OnShow is invoked when a popup becomes visible.
	OnShow func(wavebox.Popup, RenderPlan)
	// OnClose is invoked when the visible popup closes, before the next one
	// is considered.
	OnClose func(wavebox.Popup)
	// Now overrides the clock for the policy instances.
	Now func() time.Time
}

// Orchestrator sequences the popups for a page visit strictly one at a time,
// in backend order, advancing only when the current popup closes.
type Orchestrator struct {
	api     Fetcher
	markers store.MarkerStore
	logger  *logging.Logger
	metrics *metrics.WidgetMetrics
	onShow  func(wavebox.Popup, RenderPlan)
	onClose func(wavebox.Popup)
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	queue   []wavebox.Popup
	next    int
	page    Context
	current *Instance
}

// NewOrchestrator creates an orchestrator over the given backend and marker
// store.
func NewOrchestrator(api Fetcher, markers store.MarkerStore, opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		api:     api,
		markers: markers,
		logger:  logger.Component("popup-orchestrator"),
		metrics: opts.Metrics,
		onShow:  opts.OnShow,
		onClose: opts.OnClose,
		now:     now,
	}
}

// Navigate establishes a new page context: it tears down any popup in flight,
// fetches the eligible set for the path and starts the sequence. A fetch that
// resolves after a newer Navigate call is discarded.
func (o *Orchestrator) Navigate(ctx context.Context, path string, isMobile bool) error {
	isNew, err := o.isNewVisitor(ctx)
	if err != nil {
		o.logger.Warn("new-visitor detection failed, assuming returning", "error", err)
	}

	o.mu.Lock()
	o.gen++
	myGen := o.gen
	o.page = Context{Path: path, IsMobile: isMobile, IsNewVisitor: isNew}
	o.queue = nil
	o.next = 0
	if o.current != nil {
		o.current.Teardown()
		o.current = nil
	}
	o.mu.Unlock()

	popups, err := o.api.FetchActivePopups(ctx, wavebox.PopupQuery{
		Path:         path,
		IsMobile:     isMobile,
		IsNewVisitor: isNew,
	})
	if err != nil {
		o.logger.Error("failed to fetch active popups", "path", path, "error", err)
		return err
	}

	o.mu.Lock()
	if o.gen != myGen {
		o.mu.Unlock()
		o.logger.Debug("discarding stale popup fetch", "path", path)
		return nil
	}
	o.queue = popups
	o.next = 0
	o.mu.Unlock()

	o.advance(ctx, myGen)
	return nil
}

// advance walks the queue until a popup becomes eligible (or visible), or
// the queue runs out. Popups gated by frequency/eligibility are skipped.
func (o *Orchestrator) advance(ctx context.Context, myGen uint64) {
	for {
		o.mu.Lock()
		if o.gen != myGen || o.next >= len(o.queue) {
			if o.gen == myGen {
				o.current = nil
			}
			o.mu.Unlock()
			return
		}
		p := o.queue[o.next]
		o.next++
		trigger := ResolveSettings(p.Metadata).Trigger
		inst := NewInstance(p, o.markers, o.page, Options{
			Logger: o.logger,
			Now:    o.now,
			OnShow: func(plan RenderPlan) {
				o.metrics.ObservePopupImpression(string(trigger))
				if o.onShow != nil {
					o.onShow(p, plan)
				}
			},
			OnClose: func() {
				o.metrics.ObservePopupClose()
				if o.onClose != nil {
					o.onClose(p)
				}
				o.advance(context.Background(), myGen)
			},
		})
		o.current = inst
		o.mu.Unlock()

		state, err := inst.Start(ctx)
		if err != nil {
			o.logger.Error("popup eligibility check failed", "popup_id", p.ID, "error", err)
		}
		if state == StatePending {
			inst.Teardown()
			continue
		}
		return
	}
}

// OnScroll forwards a scroll sample to the popup awaiting a scroll trigger.
func (o *Orchestrator) OnScroll(ctx context.Context, scrollY, viewportHeight, documentHeight float64) {
	if inst := o.currentInstance(); inst != nil {
		inst.OnScroll(ctx, scrollY, viewportHeight, documentHeight)
	}
}

// OnPointerLeave forwards a pointer-leave event to the current popup.
func (o *Orchestrator) OnPointerLeave(ctx context.Context, clientY float64) {
	if inst := o.currentInstance(); inst != nil {
		inst.OnPointerLeave(ctx, clientY)
	}
}

// CloseCurrent closes the visible popup, which advances the sequence.
func (o *Orchestrator) CloseCurrent(ctx context.Context) {
	if inst := o.currentInstance(); inst != nil {
		inst.Close(ctx)
	}
}

// Current returns the popup instance the orchestrator is running, if any.
func (o *Orchestrator) Current() (State, bool) {
	inst := o.currentInstance()
	if inst == nil {
		return StateClosed, false
	}
	return inst.State(), true
}

// Teardown cancels all timers and drops the sequence, e.g. on page unload.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	o.queue = nil
	o.next = 0
	if o.current != nil {
		o.current.Teardown()
		o.current = nil
	}
}

func (o *Orchestrator) currentInstance() *Instance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// isNewVisitor reads the persistent visited marker, setting it on first
// sight. The first page load reports a new visitor; every later one does not.
func (o *Orchestrator) isNewVisitor(ctx context.Context) (bool, error) {
	_, ok, err := o.markers.Get(ctx, store.ScopePersistent, visitedKey)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := o.markers.Set(ctx, store.ScopePersistent, visitedKey, "true"); err != nil {
		return true, err
	}
	return true, nil
}
