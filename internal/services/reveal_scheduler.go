package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

const (
	defaultRevealDelay    = 50 * time.Millisecond
	revealMetricNamespace = "github.com/Prathaban-G/ecommerce/internal/services/reveal"
)

var (
	// ErrRevealSourceMissing indicates the scheduler was built without an item source.
	ErrRevealSourceMissing = errors.New("reveal scheduler: item source is required")
	// ErrRevealSchedulerClosed indicates Start was called after Close.
	ErrRevealSchedulerClosed = errors.New("reveal scheduler: closed")
)

// ItemSource lists the stored items of a category.
type ItemSource interface {
	ListItems(ctx context.Context, categoryID string) ([]domain.RawItem, error)
}

// ItemSourceFunc adapts a function to ItemSource.
type ItemSourceFunc func(ctx context.Context, categoryID string) ([]domain.RawItem, error)

// ListItems calls f.
func (f ItemSourceFunc) ListItems(ctx context.Context, categoryID string) ([]domain.RawItem, error) {
	return f(ctx, categoryID)
}

// RevealSnapshot is a consistent copy of the scheduler state. Revision grows
// with every observable change so observers can discard out-of-order copies.
type RevealSnapshot struct {
	Epoch       uint64
	Revision    uint64
	CategoryID  string
	State       domain.RevealState
	Visible     []domain.NormalizedItem
	Buffered    int
	Bounds      domain.PriceBounds
	BoundsReady bool
	FetchErr    error
}

// Settled reports whether the epoch has reached its final visible list.
func (s RevealSnapshot) Settled() bool {
	return s.State == domain.RevealStateSettled
}

// RevealSchedulerDeps bundles collaborators for the reveal scheduler.
type RevealSchedulerDeps struct {
	Items   ItemSource
	Filters *FilterEngine
	// Delay separates consecutive appends; item i appears i*Delay after the reveal starts.
	Delay    time.Duration
	Clock    func() time.Time
	After    func(time.Duration) <-chan time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Meter    metric.Meter
	OnChange func(RevealSnapshot)
}

// RevealScheduler owns the fetch, normalize, sort and staggered reveal pipeline
// for one viewer. Every selection mints a new epoch; only the goroutine holding
// the current epoch may append to the visible list, and it re-checks the epoch
// under the lock before each append.
type RevealScheduler struct {
	items    ItemSource
	filters  *FilterEngine
	delay    time.Duration
	clock    func() time.Time
	after    func(time.Duration) <-chan time.Time
	logger   func(context.Context, string, map[string]any)
	onChange func(RevealSnapshot)

	epochs        metric.Int64Counter
	staleAppends  metric.Int64Counter
	fetchLatency  metric.Float64Histogram
	fetchFailures metric.Int64Counter

	mu          sync.Mutex
	epoch       uint64
	revision    uint64
	categoryID  string
	state       domain.RevealState
	visible     []domain.NormalizedItem
	buffered    int
	bounds      domain.PriceBounds
	boundsReady bool
	fetchErr    error
	superseded  chan struct{}
	closed      bool

	wg sync.WaitGroup
}

// NewRevealScheduler wires dependencies into a RevealScheduler in the idle state.
func NewRevealScheduler(deps RevealSchedulerDeps) (*RevealScheduler, error) {
	if deps.Items == nil {
		return nil, ErrRevealSourceMissing
	}
	filters := deps.Filters
	if filters == nil {
		filters = NewFilterEngine(DefaultPriceBounds)
	}
	delay := deps.Delay
	if delay <= 0 {
		delay = defaultRevealDelay
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	after := deps.After
	if after == nil {
		after = time.After
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	onChange := deps.OnChange
	if onChange == nil {
		onChange = func(RevealSnapshot) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(revealMetricNamespace)
	}

	s := &RevealScheduler{
		items:    deps.Items,
		filters:  filters,
		delay:    delay,
		clock:    clock,
		after:    after,
		logger:   logger,
		onChange: onChange,
		state:    domain.RevealStateIdle,
		visible:  []domain.NormalizedItem{},
	}

	var err error
	if s.epochs, err = meter.Int64Counter("catalog.reveal.epochs",
		metric.WithDescription("Count of fetch-and-reveal epochs started")); err != nil {
		logger(context.Background(), "reveal.metric_register_failed", map[string]any{"metric": "epochs", "error": err.Error()})
	}
	if s.staleAppends, err = meter.Int64Counter("catalog.reveal.stale_appends",
		metric.WithDescription("Count of appends discarded because a newer epoch exists")); err != nil {
		logger(context.Background(), "reveal.metric_register_failed", map[string]any{"metric": "stale_appends", "error": err.Error()})
	}
	if s.fetchFailures, err = meter.Int64Counter("catalog.reveal.fetch_failures",
		metric.WithDescription("Count of item fetches rejected by the store")); err != nil {
		logger(context.Background(), "reveal.metric_register_failed", map[string]any{"metric": "fetch_failures", "error": err.Error()})
	}
	if s.fetchLatency, err = meter.Float64Histogram("catalog.reveal.fetch_latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of item fetches")); err != nil {
		logger(context.Background(), "reveal.metric_register_failed", map[string]any{"metric": "fetch_latency", "error": err.Error()})
	}

	return s, nil
}

// Start supersedes any running epoch and begins fetching categoryID under a
// new one. The visible list is cleared immediately. The previous epoch's
// request is not aborted; its result is discarded when it arrives. The fetch
// is detached from ctx cancellation so a finished HTTP request does not end it.
func (s *RevealScheduler) Start(ctx context.Context, categoryID string) (uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrRevealSchedulerClosed
	}
	if s.superseded != nil {
		close(s.superseded)
	}
	s.epoch++
	epoch := s.epoch
	done := make(chan struct{})
	s.superseded = done
	s.categoryID = categoryID
	s.state = domain.RevealStateFetching
	s.visible = []domain.NormalizedItem{}
	s.buffered = 0
	s.bounds = domain.PriceBounds{}
	s.boundsReady = false
	s.fetchErr = nil
	snap := s.changedLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.onChange(snap)
	s.record(ctx, s.epochs, attribute.String("category_id", categoryID))
	s.logger(ctx, "reveal.epoch_started", map[string]any{"epoch": epoch, "categoryId": categoryID})

	go s.run(context.WithoutCancel(ctx), epoch, categoryID, done)
	return epoch, nil
}

// Snapshot returns a copy of the current state.
func (s *RevealScheduler) Snapshot() RevealSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Epoch returns the current epoch, zero before the first Start.
func (s *RevealScheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Close supersedes the running epoch and refuses further starts. Pending
// reveals stop at their next wait; in-flight fetches finish in the background.
func (s *RevealScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	if s.superseded != nil {
		close(s.superseded)
		s.superseded = nil
	}
}

// Wait blocks until every fetch and reveal goroutine has returned.
func (s *RevealScheduler) Wait() {
	s.wg.Wait()
}

func (s *RevealScheduler) run(ctx context.Context, epoch uint64, categoryID string, done <-chan struct{}) {
	defer s.wg.Done()

	started := s.clock()
	raw, err := s.items.ListItems(ctx, categoryID)
	s.recordLatency(ctx, s.clock().Sub(started), err == nil)
	if err != nil {
		s.settleFailure(ctx, epoch, categoryID, err)
		return
	}

	items := NormalizeItems(raw)
	bounds := s.filters.Bounds(items)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.discard(ctx, epoch, categoryID, len(items))
		return
	}
	s.buffered = len(items)
	s.bounds = bounds
	s.boundsReady = true
	if len(items) == 0 {
		s.state = domain.RevealStateSettled
	} else {
		s.state = domain.RevealStateRevealing
	}
	snap := s.changedLocked()
	s.mu.Unlock()
	s.onChange(snap)

	if len(items) == 0 {
		s.logger(ctx, "reveal.settled", map[string]any{"epoch": epoch, "categoryId": categoryID, "items": 0})
		return
	}

	revealStart := s.clock()
	for i, item := range items {
		due := revealStart.Add(time.Duration(i) * s.delay)
		if wait := due.Sub(s.clock()); wait > 0 {
			select {
			case <-s.after(wait):
			case <-done:
				s.discard(ctx, epoch, categoryID, len(items)-i)
				return
			}
		}

		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			s.discard(ctx, epoch, categoryID, len(items)-i)
			return
		}
		s.visible = append(s.visible, item)
		settled := len(s.visible) == len(items)
		if settled {
			s.state = domain.RevealStateSettled
		}
		snap := s.changedLocked()
		s.mu.Unlock()
		s.onChange(snap)

		if settled {
			s.logger(ctx, "reveal.settled", map[string]any{"epoch": epoch, "categoryId": categoryID, "items": len(items)})
		}
	}
}

func (s *RevealScheduler) settleFailure(ctx context.Context, epoch uint64, categoryID string, fetchErr error) {
	s.record(ctx, s.fetchFailures, attribute.String("category_id", categoryID))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.discard(ctx, epoch, categoryID, 0)
		return
	}
	s.state = domain.RevealStateSettled
	s.visible = []domain.NormalizedItem{}
	s.fetchErr = fetchErr
	snap := s.changedLocked()
	s.mu.Unlock()
	s.onChange(snap)

	s.logger(ctx, "reveal.fetch_failed", map[string]any{"epoch": epoch, "categoryId": categoryID, "error": fetchErr.Error()})
}

func (s *RevealScheduler) discard(ctx context.Context, epoch uint64, categoryID string, pending int) {
	if s.staleAppends != nil && pending > 0 {
		s.staleAppends.Add(ctx, int64(pending), metric.WithAttributes(attribute.String("category_id", categoryID)))
	}
	s.logger(ctx, "reveal.epoch_discarded", map[string]any{"epoch": epoch, "categoryId": categoryID, "pending": pending})
}

func (s *RevealScheduler) record(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (s *RevealScheduler) recordLatency(ctx context.Context, d time.Duration, ok bool) {
	if s.fetchLatency == nil {
		return
	}
	s.fetchLatency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attribute.Bool("success", ok)))
}

// changedLocked records an observable change and returns the new state.
// Callers hold s.mu.
func (s *RevealScheduler) changedLocked() RevealSnapshot {
	s.revision++
	return s.snapshotLocked()
}

func (s *RevealScheduler) snapshotLocked() RevealSnapshot {
	visible := make([]domain.NormalizedItem, len(s.visible))
	copy(visible, s.visible)
	return RevealSnapshot{
		Epoch:       s.epoch,
		Revision:    s.revision,
		CategoryID:  s.categoryID,
		State:       s.state,
		Visible:     visible,
		Buffered:    s.buffered,
		Bounds:      s.bounds,
		BoundsReady: s.boundsReady,
		FetchErr:    s.fetchErr,
	}
}
