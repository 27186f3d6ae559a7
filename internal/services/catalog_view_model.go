package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

// FetchFailureMessage is shown when the item query for the selected category fails.
const FetchFailureMessage = "Could not load items"

var (
	// ErrCategoryRequired indicates an empty category identifier was supplied.
	ErrCategoryRequired = errors.New("catalog view: category id is required")
	// ErrNoCategorySelected indicates an intent that needs a selected category.
	ErrNoCategorySelected = errors.New("catalog view: no category selected")
	// ErrItemNotVisible indicates the item is not part of the visible list.
	ErrItemNotVisible = errors.New("catalog view: item is not visible")
	// ErrNoDetailOpen indicates an image intent without an open detail view.
	ErrNoDetailOpen = errors.New("catalog view: no item detail is open")
	// ErrViewClosed indicates the view model has been closed.
	ErrViewClosed = errors.New("catalog view: closed")
)

// CategoryLookup resolves a category by id.
type CategoryLookup interface {
	GetCategory(ctx context.Context, categoryID string) (domain.Category, error)
}

// ContactRequest is handed to the messaging sink when a shopper asks about an item.
type ContactRequest struct {
	SessionID   string
	CategoryID  string
	Item        domain.DisplayItem
	URL         string
	RequestedAt time.Time
}

// ContactSink receives composed contact links. Opening the link is a side
// effect owned by the sink.
type ContactSink interface {
	Open(ctx context.Context, req ContactRequest) error
}

// ContactSinkFunc adapts a function to ContactSink.
type ContactSinkFunc func(ctx context.Context, req ContactRequest) error

// Open calls f.
func (f ContactSinkFunc) Open(ctx context.Context, req ContactRequest) error {
	return f(ctx, req)
}

// ViewItem is the presentation payload for one rendered item.
type ViewItem struct {
	domain.DisplayItem
	PriceLabel         string
	OriginalPriceLabel string
	DiscountLabel      string
	StockLabel         string
}

// DetailView describes the item opened in the detail view.
type DetailView struct {
	Item        ViewItem
	ImageIndex  int
	ActiveImage string
}

// ViewState is the render payload for one viewer.
type ViewState struct {
	SessionID    string
	Category     *domain.Category
	State        domain.RevealState
	Epoch        uint64
	Revision     uint64
	Items        []ViewItem
	VisibleCount int
	TotalCount   int
	Filter       domain.FilterState
	PriceBounds  domain.PriceBounds
	Detail       *DetailView
	FetchFailed  bool
	Message      string
}

// CatalogViewModelDeps bundles collaborators for a viewer's catalog view model.
type CatalogViewModelDeps struct {
	SessionID   string
	Items       ItemSource
	Categories  CategoryLookup
	Filters     *FilterEngine
	Links       *DeepLinkComposer
	Contacts    ContactSink
	RevealDelay time.Duration
	Clock       func() time.Time
	After       func(time.Duration) <-chan time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
	Meter       metric.Meter
}

// CatalogViewModel composes the reveal scheduler, filter state and detail
// selection for one viewer and exposes them as a single render payload.
type CatalogViewModel struct {
	id         string
	scheduler  *RevealScheduler
	categories CategoryLookup
	filters    *FilterEngine
	links      *DeepLinkComposer
	contacts   ContactSink
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)

	// selecting serializes intents that start a new epoch.
	selecting sync.Mutex

	mu          sync.Mutex
	category    *domain.Category
	filter      domain.FilterState
	boundsEpoch uint64
	detail      *domain.DetailSelection
	subscribers map[int]chan ViewState
	nextSub     int
	closed      bool
}

// NewCatalogViewModel constructs an idle view model.
func NewCatalogViewModel(deps CatalogViewModelDeps) (*CatalogViewModel, error) {
	if deps.Items == nil {
		return nil, ErrRevealSourceMissing
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog view: category lookup is required")
	}
	if deps.Links == nil {
		return nil, errors.New("catalog view: deep link composer is required")
	}
	filters := deps.Filters
	if filters == nil {
		filters = NewFilterEngine(DefaultPriceBounds)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	contacts := deps.Contacts
	if contacts == nil {
		contacts = ContactSinkFunc(func(context.Context, ContactRequest) error { return nil })
	}

	defaults := filters.Defaults()
	vm := &CatalogViewModel{
		id:          deps.SessionID,
		categories:  deps.Categories,
		filters:     filters,
		links:       deps.Links,
		contacts:    contacts,
		clock:       func() time.Time { return clock().UTC() },
		logger:      logger,
		filter:      domain.FilterState{MinPrice: defaults.Min, MaxPrice: defaults.Max},
		subscribers: make(map[int]chan ViewState),
	}

	scheduler, err := NewRevealScheduler(RevealSchedulerDeps{
		Items:    deps.Items,
		Filters:  filters,
		Delay:    deps.RevealDelay,
		Clock:    clock,
		After:    deps.After,
		Logger:   logger,
		Meter:    deps.Meter,
		OnChange: vm.handleReveal,
	})
	if err != nil {
		return nil, err
	}
	vm.scheduler = scheduler
	return vm, nil
}

// ID returns the session identifier the view model was created for.
func (vm *CatalogViewModel) ID() string {
	return vm.id
}

// SelectCategory makes categoryID the current selection and starts a new
// reveal epoch. Reselecting the current category keeps the running epoch.
func (vm *CatalogViewModel) SelectCategory(ctx context.Context, categoryID string) (ViewState, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return ViewState{}, ErrCategoryRequired
	}

	vm.selecting.Lock()
	defer vm.selecting.Unlock()

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return ViewState{}, ErrViewClosed
	}
	if vm.category != nil && vm.category.ID == categoryID && vm.scheduler.Epoch() > 0 {
		vm.mu.Unlock()
		return vm.State(), nil
	}
	vm.mu.Unlock()

	category, err := vm.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return ViewState{}, err
	}

	vm.mu.Lock()
	vm.category = &category
	vm.detail = nil
	vm.mu.Unlock()

	if _, err := vm.scheduler.Start(ctx, category.ID); err != nil {
		return ViewState{}, err
	}
	return vm.State(), nil
}

// Refresh refetches the selected category under a new epoch.
func (vm *CatalogViewModel) Refresh(ctx context.Context) (ViewState, error) {
	vm.selecting.Lock()
	defer vm.selecting.Unlock()

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return ViewState{}, ErrViewClosed
	}
	if vm.category == nil {
		vm.mu.Unlock()
		return ViewState{}, ErrNoCategorySelected
	}
	categoryID := vm.category.ID
	vm.detail = nil
	vm.mu.Unlock()

	if _, err := vm.scheduler.Start(ctx, categoryID); err != nil {
		return ViewState{}, err
	}
	return vm.State(), nil
}

// SetSearchText replaces the name filter.
func (vm *CatalogViewModel) SetSearchText(text string) ViewState {
	return vm.mutate(func() {
		vm.filter.SearchText = text
	})
}

// SetPriceRange replaces the price filter. An inverted range is accepted and
// renders an empty list.
func (vm *CatalogViewModel) SetPriceRange(minPrice, maxPrice float64) ViewState {
	return vm.mutate(func() {
		vm.filter.MinPrice = minPrice
		vm.filter.MaxPrice = maxPrice
	})
}

// FilterUpdate names the filter fields to change. Nil fields keep their value.
type FilterUpdate struct {
	SearchText *string
	MinPrice   *float64
	MaxPrice   *float64
}

// SetFilter applies every field of update as a single change.
func (vm *CatalogViewModel) SetFilter(update FilterUpdate) ViewState {
	return vm.mutate(func() {
		if update.SearchText != nil {
			vm.filter.SearchText = *update.SearchText
		}
		if update.MinPrice != nil {
			vm.filter.MinPrice = *update.MinPrice
		}
		if update.MaxPrice != nil {
			vm.filter.MaxPrice = *update.MaxPrice
		}
	})
}

// OpenDetail opens the detail view for a visible item with its first image active.
func (vm *CatalogViewModel) OpenDetail(itemID string) (ViewState, error) {
	itemID = strings.TrimSpace(itemID)
	if _, ok := vm.visibleItem(itemID); !ok {
		return ViewState{}, ErrItemNotVisible
	}
	return vm.mutate(func() {
		vm.detail = &domain.DetailSelection{ItemID: itemID}
	}), nil
}

// SelectImage activates the image at index, clamped to the item's image list.
func (vm *CatalogViewModel) SelectImage(index int) (ViewState, error) {
	return vm.moveImage(func(_, count int) int {
		return clampIndex(index, count)
	})
}

// StepImage moves the active image by delta, wrapping at either end.
func (vm *CatalogViewModel) StepImage(delta int) (ViewState, error) {
	return vm.moveImage(func(current, count int) int {
		if count == 0 {
			return 0
		}
		return ((current+delta)%count + count) % count
	})
}

// CloseDetail closes the detail view.
func (vm *CatalogViewModel) CloseDetail() ViewState {
	return vm.mutate(func() {
		vm.detail = nil
	})
}

// RequestContact composes the messaging link for a visible item and hands it
// to the contact sink. The composed request is returned even when the sink fails.
func (vm *CatalogViewModel) RequestContact(ctx context.Context, itemID string) (ContactRequest, error) {
	itemID = strings.TrimSpace(itemID)
	snap, ok := vm.visibleItem(itemID)
	if !ok {
		return ContactRequest{}, ErrItemNotVisible
	}

	display := domain.Display(snap)
	req := ContactRequest{
		SessionID:   vm.id,
		CategoryID:  vm.scheduler.Snapshot().CategoryID,
		Item:        display,
		URL:         vm.links.ContactURL(display),
		RequestedAt: vm.clock(),
	}
	if err := vm.contacts.Open(ctx, req); err != nil {
		vm.logger(ctx, "catalog.contact_sink_failed", map[string]any{"itemId": itemID, "error": err.Error()})
		return req, fmt.Errorf("catalog view: contact sink: %w", err)
	}
	vm.logger(ctx, "catalog.contact_requested", map[string]any{"itemId": itemID, "categoryId": req.CategoryID})
	return req, nil
}

// State returns the current render payload.
func (vm *CatalogViewModel) State() ViewState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	snap := vm.scheduler.Snapshot()
	vm.syncBoundsLocked(snap)
	return vm.buildStateLocked(snap)
}

// Subscribe registers for render payloads pushed on every change. Slow
// subscribers only ever see the latest payload. The returned function
// unregisters the subscription and closes the channel.
func (vm *CatalogViewModel) Subscribe() (<-chan ViewState, func()) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	ch := make(chan ViewState, 1)
	if vm.closed {
		close(ch)
		return ch, func() {}
	}
	id := vm.nextSub
	vm.nextSub++
	vm.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			vm.mu.Lock()
			defer vm.mu.Unlock()
			if sub, ok := vm.subscribers[id]; ok {
				delete(vm.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close stops the scheduler and closes every subscription.
func (vm *CatalogViewModel) Close() {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.closed = true
	for id, ch := range vm.subscribers {
		delete(vm.subscribers, id)
		close(ch)
	}
	vm.mu.Unlock()
	vm.scheduler.Close()
}

// Wait blocks until background fetch and reveal work has finished.
func (vm *CatalogViewModel) Wait() {
	vm.scheduler.Wait()
}

// handleReveal runs outside the scheduler lock. Notifications may arrive out
// of order, so the latest snapshot is read again under vm.mu.
func (vm *CatalogViewModel) handleReveal(RevealSnapshot) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return
	}
	snap := vm.scheduler.Snapshot()
	vm.syncBoundsLocked(snap)
	vm.publishLocked(snap)
}

func (vm *CatalogViewModel) mutate(fn func()) ViewState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	snap := vm.scheduler.Snapshot()
	vm.syncBoundsLocked(snap)
	fn()
	state := vm.buildStateLocked(snap)
	vm.publishStateLocked(state)
	return state
}

func (vm *CatalogViewModel) moveImage(next func(current, count int) int) (ViewState, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	snap := vm.scheduler.Snapshot()
	vm.syncBoundsLocked(snap)
	if vm.detail == nil {
		return ViewState{}, ErrNoDetailOpen
	}
	item, ok := findItem(snap.Visible, vm.detail.ItemID)
	if !ok {
		vm.detail = nil
		return ViewState{}, ErrItemNotVisible
	}
	vm.detail.ImageIndex = next(vm.detail.ImageIndex, len(item.Images))
	state := vm.buildStateLocked(snap)
	vm.publishStateLocked(state)
	return state, nil
}

func (vm *CatalogViewModel) visibleItem(itemID string) (domain.NormalizedItem, bool) {
	if itemID == "" {
		return domain.NormalizedItem{}, false
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	snap := vm.scheduler.Snapshot()
	if !vm.currentLocked(snap) {
		return domain.NormalizedItem{}, false
	}
	return findItem(snap.Visible, itemID)
}

// currentLocked reports whether snap belongs to the selected category. A new
// selection is recorded before its epoch starts; until then the snapshot
// still carries the previous category's items.
func (vm *CatalogViewModel) currentLocked(snap RevealSnapshot) bool {
	return vm.category == nil || vm.category.ID == snap.CategoryID
}

// syncBoundsLocked resets the price filter once per epoch, when the freshly
// fetched bounds become known. Search text is left untouched.
func (vm *CatalogViewModel) syncBoundsLocked(snap RevealSnapshot) {
	if !snap.BoundsReady || snap.Epoch == vm.boundsEpoch || !vm.currentLocked(snap) {
		return
	}
	vm.boundsEpoch = snap.Epoch
	vm.filter.MinPrice = snap.Bounds.Min
	vm.filter.MaxPrice = snap.Bounds.Max
}

func (vm *CatalogViewModel) publishLocked(snap RevealSnapshot) {
	if len(vm.subscribers) == 0 {
		return
	}
	vm.publishStateLocked(vm.buildStateLocked(snap))
}

func (vm *CatalogViewModel) publishStateLocked(state ViewState) {
	for _, ch := range vm.subscribers {
		select {
		case ch <- state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

func (vm *CatalogViewModel) buildStateLocked(snap RevealSnapshot) ViewState {
	if !vm.currentLocked(snap) {
		snap = RevealSnapshot{
			CategoryID: vm.category.ID,
			State:      domain.RevealStateFetching,
			Epoch:      snap.Epoch,
			Revision:   snap.Revision,
		}
	}
	state := ViewState{
		SessionID:    vm.id,
		State:        snap.State,
		Epoch:        snap.Epoch,
		Revision:     snap.Revision,
		VisibleCount: len(snap.Visible),
		TotalCount:   snap.Buffered,
		Filter:       vm.filter,
		PriceBounds:  vm.filters.Defaults(),
	}
	if snap.BoundsReady {
		state.PriceBounds = snap.Bounds
	}
	if vm.category != nil {
		category := *vm.category
		state.Category = &category
	}
	if snap.FetchErr != nil {
		state.FetchFailed = true
		state.Message = FetchFailureMessage
	}

	rendered := vm.filters.Apply(snap.Visible, vm.filter)
	state.Items = make([]ViewItem, 0, len(rendered))
	for _, item := range rendered {
		state.Items = append(state.Items, vm.viewItem(item))
	}

	if vm.detail != nil {
		if item, ok := findItem(snap.Visible, vm.detail.ItemID); ok {
			index := clampIndex(vm.detail.ImageIndex, len(item.Images))
			detail := &DetailView{Item: vm.viewItem(item), ImageIndex: index}
			if len(item.Images) > 0 {
				detail.ActiveImage = item.Images[index]
			}
			state.Detail = detail
		}
	}
	return state
}

func (vm *CatalogViewModel) viewItem(item domain.NormalizedItem) ViewItem {
	display := domain.Display(item)
	view := ViewItem{
		DisplayItem: display,
		PriceLabel:  vm.links.FormatAmount(display.DiscountedPrice),
		StockLabel:  display.StockTier.Label(),
	}
	if display.HasDiscount() {
		view.OriginalPriceLabel = vm.links.FormatAmount(display.Price)
		view.DiscountLabel = fmt.Sprintf("%g%% OFF", display.Discount)
	}
	return view
}

func findItem(items []domain.NormalizedItem, itemID string) (domain.NormalizedItem, bool) {
	for _, item := range items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.NormalizedItem{}, false
}

func clampIndex(index, count int) int {
	if count <= 0 || index < 0 {
		return 0
	}
	if index >= count {
		return count - 1
	}
	return index
}
