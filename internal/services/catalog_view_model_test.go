package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

type stubCategoryLookup struct {
	categories map[string]domain.Category
}

func (s stubCategoryLookup) GetCategory(_ context.Context, categoryID string) (domain.Category, error) {
	category, ok := s.categories[categoryID]
	if !ok {
		return domain.Category{}, ErrCategoryNotFound
	}
	return category, nil
}

type recordingSink struct {
	mu       sync.Mutex
	requests []ContactRequest
	err      error
}

func (s *recordingSink) Open(_ context.Context, req ContactRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

func toysFixture() *gatedSource {
	source := newGatedSource()
	source.items["toys"] = []domain.RawItem{
		{
			ItemFields: domain.ItemFields{ID: "1", Name: "Car", Price: 100, Discount: 10, Stock: 0, Rank: 1},
			Images:     domain.LegacyImages("https://img/car-front.png", "https://img/car-side.png"),
		},
		{
			ItemFields: domain.ItemFields{ID: "2", Name: "Doll", Price: 50, Discount: 0, Stock: 20, Rank: 2},
			Images:     domain.CurrentImages("https://img/doll.png"),
		},
	}
	source.items["games"] = []domain.RawItem{
		{ItemFields: domain.ItemFields{ID: "g1", Name: "Chess", Price: 300, Stock: 4, Rank: 9}},
	}
	return source
}

func newTestViewModel(t *testing.T, source ItemSource, sink ContactSink) *CatalogViewModel {
	t.Helper()
	links, err := NewDeepLinkComposer(DeepLinkConfig{Number: "918056511598"})
	if err != nil {
		t.Fatalf("NewDeepLinkComposer: %v", err)
	}
	vm, err := NewCatalogViewModel(CatalogViewModelDeps{
		SessionID: "session-1",
		Items:     source,
		Categories: stubCategoryLookup{categories: map[string]domain.Category{
			"toys":  {ID: "toys", Name: "Toys", Rank: 3},
			"games": {ID: "games", Name: "Games", Rank: 7},
		}},
		Links:    links,
		Contacts: sink,
		After:    immediateAfter,
		Clock:    func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewCatalogViewModel: %v", err)
	}
	t.Cleanup(func() {
		vm.Close()
		vm.Wait()
	})
	return vm
}

func itemNames(state ViewState) []string {
	out := make([]string, 0, len(state.Items))
	for _, item := range state.Items {
		out = append(out, item.Name)
	}
	return out
}

func TestCatalogViewModelToysExample(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	vm := newTestViewModel(t, toysFixture(), sink)

	state, err := vm.SelectCategory(context.Background(), "toys")
	if err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	if state.Category == nil || state.Category.Name != "Toys" {
		t.Fatalf("expected Toys selected got %+v", state.Category)
	}
	vm.Wait()

	state = vm.State()
	if state.State != domain.RevealStateSettled {
		t.Fatalf("expected settled got %s", state.State)
	}
	if got := itemNames(state); !reflect.DeepEqual(got, []string{"Doll", "Car"}) {
		t.Fatalf("expected [Doll Car] got %v", got)
	}

	doll, car := state.Items[0], state.Items[1]
	if doll.PriceLabel != "₹50.00" || doll.OriginalPriceLabel != "" || doll.DiscountLabel != "" {
		t.Fatalf("unexpected doll labels %+v", doll)
	}
	if doll.StockTier != domain.StockTierInStock || doll.StockLabel != "In Stock" {
		t.Fatalf("unexpected doll tier %s", doll.StockTier)
	}
	if car.DiscountedPrice != 90 || car.PriceLabel != "₹90.00" || car.OriginalPriceLabel != "₹100.00" {
		t.Fatalf("unexpected car pricing %+v", car)
	}
	if car.DiscountLabel != "10% OFF" {
		t.Fatalf("unexpected discount label %q", car.DiscountLabel)
	}
	if car.StockTier != domain.StockTierOutOfStock || car.StockLabel != "Out of Stock" {
		t.Fatalf("unexpected car tier %s", car.StockTier)
	}
	if state.Filter.MinPrice != 50 || state.Filter.MaxPrice != 100 {
		t.Fatalf("expected filter reset to [50, 100] got %+v", state.Filter)
	}

	req, err := vm.RequestContact(context.Background(), "1")
	if err != nil {
		t.Fatalf("RequestContact: %v", err)
	}
	want := "https://wa.me/918056511598?text=Hello%2C%20I'm%20interested%20in%20%22Car%22.%20The%20discounted%20price%20is%20%E2%82%B990.00%20(Original%3A%20%E2%82%B9100.00).%20Is%20it%20available%3F"
	if req.URL != want {
		t.Fatalf("unexpected url %s", req.URL)
	}
	if len(sink.requests) != 1 || sink.requests[0].CategoryID != "toys" || sink.requests[0].SessionID != "session-1" {
		t.Fatalf("unexpected sink requests %+v", sink.requests)
	}
}

func TestCatalogViewModelFilters(t *testing.T) {
	t.Parallel()

	vm := newTestViewModel(t, toysFixture(), nil)
	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	vm.Wait()

	state := vm.SetSearchText("DOL")
	if got := itemNames(state); !reflect.DeepEqual(got, []string{"Doll"}) {
		t.Fatalf("expected [Doll] got %v", got)
	}

	vm.SetSearchText("")
	state = vm.SetPriceRange(60, 100)
	if got := itemNames(state); !reflect.DeepEqual(got, []string{"Car"}) {
		t.Fatalf("expected [Car] got %v", got)
	}

	state = vm.SetPriceRange(100, 60)
	if len(state.Items) != 0 {
		t.Fatalf("expected empty view for inverted range got %v", itemNames(state))
	}
	if state.VisibleCount != 2 {
		t.Fatalf("visible list should be untouched, got %d", state.VisibleCount)
	}

	vm.SetSearchText("car")
	if _, err := vm.SelectCategory(context.Background(), "games"); err != nil {
		t.Fatalf("SelectCategory games: %v", err)
	}
	vm.Wait()
	state = vm.State()
	if state.Filter.SearchText != "car" {
		t.Fatalf("search text should survive category change, got %q", state.Filter.SearchText)
	}
	if state.Filter.MinPrice != 300 || state.Filter.MaxPrice != 300 {
		t.Fatalf("expected price filter reset to games bounds got %+v", state.Filter)
	}
	if len(state.Items) != 0 {
		t.Fatalf("expected no games matching car got %v", itemNames(state))
	}
}

func TestCatalogViewModelDetail(t *testing.T) {
	t.Parallel()

	vm := newTestViewModel(t, toysFixture(), nil)
	if _, err := vm.OpenDetail("1"); !errors.Is(err, ErrItemNotVisible) {
		t.Fatalf("expected ErrItemNotVisible before reveal got %v", err)
	}
	if _, err := vm.SelectImage(1); !errors.Is(err, ErrNoDetailOpen) {
		t.Fatalf("expected ErrNoDetailOpen got %v", err)
	}

	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	vm.Wait()

	state, err := vm.OpenDetail("1")
	if err != nil {
		t.Fatalf("OpenDetail: %v", err)
	}
	if state.Detail == nil || state.Detail.ImageIndex != 0 || state.Detail.ActiveImage != "https://img/car-front.png" {
		t.Fatalf("unexpected detail %+v", state.Detail)
	}

	state, err = vm.SelectImage(7)
	if err != nil {
		t.Fatalf("SelectImage: %v", err)
	}
	if state.Detail.ImageIndex != 1 {
		t.Fatalf("expected clamped index 1 got %d", state.Detail.ImageIndex)
	}
	state, err = vm.SelectImage(-4)
	if err != nil {
		t.Fatalf("SelectImage: %v", err)
	}
	if state.Detail.ImageIndex != 0 {
		t.Fatalf("expected clamped index 0 got %d", state.Detail.ImageIndex)
	}

	state, err = vm.StepImage(-1)
	if err != nil {
		t.Fatalf("StepImage: %v", err)
	}
	if state.Detail.ImageIndex != 1 || state.Detail.ActiveImage != "https://img/car-side.png" {
		t.Fatalf("expected wrap to last image got %+v", state.Detail)
	}

	state = vm.CloseDetail()
	if state.Detail != nil {
		t.Fatalf("expected detail closed")
	}

	if _, err := vm.OpenDetail("1"); err != nil {
		t.Fatalf("OpenDetail: %v", err)
	}
	if _, err := vm.SelectCategory(context.Background(), "games"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	if state := vm.State(); state.Detail != nil {
		t.Fatalf("detail should be cleared on category change")
	}
}

func TestCatalogViewModelSwitchingCategoriesNeverLeaks(t *testing.T) {
	t.Parallel()

	source := toysFixture()
	releaseToys := source.hold("toys")
	vm := newTestViewModel(t, source, nil)

	updates, cancel := vm.Subscribe()
	defer cancel()

	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory toys: %v", err)
	}
	if _, err := vm.SelectCategory(context.Background(), "games"); err != nil {
		t.Fatalf("SelectCategory games: %v", err)
	}
	waitFor(t, func() bool { return vm.State().State == domain.RevealStateSettled })
	releaseToys()
	vm.Wait()

	state := vm.State()
	if got := itemNames(state); !reflect.DeepEqual(got, []string{"Chess"}) {
		t.Fatalf("expected only games items got %v", got)
	}
	if state.Category == nil || state.Category.ID != "games" {
		t.Fatalf("expected games selected got %+v", state.Category)
	}

	select {
	case latest := <-updates:
		if latest.Category == nil || latest.Category.ID != "games" {
			t.Fatalf("unexpected pushed state %+v", latest.Category)
		}
	default:
		t.Fatalf("expected a pushed state")
	}
}

func TestCatalogViewModelFetchFailure(t *testing.T) {
	t.Parallel()

	source := toysFixture()
	source.errs["toys"] = errors.New("permission denied")
	vm := newTestViewModel(t, source, nil)

	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	vm.Wait()

	state := vm.State()
	if !state.FetchFailed || state.Message != FetchFailureMessage {
		t.Fatalf("expected fetch failure state got %+v", state)
	}
	if len(state.Items) != 0 {
		t.Fatalf("expected empty list got %v", itemNames(state))
	}

	source.mu.Lock()
	delete(source.errs, "toys")
	source.mu.Unlock()
	if _, err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	vm.Wait()
	if state := vm.State(); state.FetchFailed || len(state.Items) != 2 {
		t.Fatalf("expected recovery after refresh got %+v", state)
	}
}

func TestCatalogViewModelIntentErrors(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("publish failed")}
	vm := newTestViewModel(t, toysFixture(), sink)

	if _, err := vm.SelectCategory(context.Background(), " "); !errors.Is(err, ErrCategoryRequired) {
		t.Fatalf("expected ErrCategoryRequired got %v", err)
	}
	if _, err := vm.SelectCategory(context.Background(), "missing"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound got %v", err)
	}
	if _, err := vm.Refresh(context.Background()); !errors.Is(err, ErrNoCategorySelected) {
		t.Fatalf("expected ErrNoCategorySelected got %v", err)
	}
	if _, err := vm.RequestContact(context.Background(), "1"); !errors.Is(err, ErrItemNotVisible) {
		t.Fatalf("expected ErrItemNotVisible got %v", err)
	}

	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	vm.Wait()
	req, err := vm.RequestContact(context.Background(), "2")
	if err == nil {
		t.Fatalf("expected sink error")
	}
	if req.URL == "" {
		t.Fatalf("expected composed url despite sink failure")
	}

	vm.Close()
	if _, err := vm.SelectCategory(context.Background(), "games"); !errors.Is(err, ErrViewClosed) {
		t.Fatalf("expected ErrViewClosed got %v", err)
	}
	if _, ok := <-mustSubscribe(vm); ok {
		t.Fatalf("expected closed subscription channel")
	}
}

func mustSubscribe(vm *CatalogViewModel) <-chan ViewState {
	ch, _ := vm.Subscribe()
	return ch
}

func TestCatalogViewModelPendingSelectionHidesPreviousItems(t *testing.T) {
	t.Parallel()

	ticks := make(chan time.Time)
	links, err := NewDeepLinkComposer(DeepLinkConfig{Number: "918056511598"})
	if err != nil {
		t.Fatalf("NewDeepLinkComposer: %v", err)
	}
	vm, err := NewCatalogViewModel(CatalogViewModelDeps{
		SessionID: "session-1",
		Items:     toysFixture(),
		Categories: stubCategoryLookup{categories: map[string]domain.Category{
			"toys": {ID: "toys", Name: "Toys", Rank: 3},
		}},
		Links: links,
		After: func(time.Duration) <-chan time.Time { return ticks },
		Clock: func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewCatalogViewModel: %v", err)
	}
	t.Cleanup(func() {
		vm.Close()
		vm.Wait()
	})

	updates, cancel := vm.Subscribe()
	defer cancel()

	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory toys: %v", err)
	}
	waitFor(t, func() bool { return vm.State().VisibleCount == 1 })

	// A selection is recorded before its epoch starts; reveal steps of the
	// previous epoch may still land in that window.
	vm.mu.Lock()
	vm.category = &domain.Category{ID: "games", Name: "Games"}
	vm.mu.Unlock()
	for drained := false; !drained; {
		select {
		case <-updates:
		default:
			drained = true
		}
	}

	ticks <- time.Time{}

	select {
	case state := <-updates:
		if state.Category == nil || state.Category.ID != "games" {
			t.Fatalf("expected pending games selection got %+v", state.Category)
		}
		if len(state.Items) != 0 || state.VisibleCount != 0 {
			t.Fatalf("games state carries toys items %v", itemNames(state))
		}
		if state.State != domain.RevealStateFetching {
			t.Fatalf("expected fetching got %s", state.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a pushed state")
	}

	if _, err := vm.OpenDetail("2"); !errors.Is(err, ErrItemNotVisible) {
		t.Fatalf("expected toys item hidden from detail got %v", err)
	}
}

func TestCatalogViewModelRapidSwitchNeverPairsStaleItems(t *testing.T) {
	t.Parallel()

	source := newGatedSource()
	toys := make([]domain.RawItem, 0, 500)
	for i := 0; i < 500; i++ {
		toys = append(toys, rawItem(fmt.Sprintf("toy-%d", i), 500-i, float64(i+1)))
	}
	source.items["toys"] = toys
	source.items["games"] = []domain.RawItem{rawItem("chess", 1, 300)}

	for i := 0; i < 25; i++ {
		vm := newTestViewModel(t, source, nil)
		updates, cancel := vm.Subscribe()

		if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
			t.Fatalf("SelectCategory toys: %v", err)
		}
		if _, err := vm.SelectCategory(context.Background(), "games"); err != nil {
			t.Fatalf("SelectCategory games: %v", err)
		}

		deadline := time.After(2 * time.Second)
		for settled := false; !settled; {
			select {
			case state := <-updates:
				if state.Category == nil || state.Category.ID != "games" {
					continue
				}
				for _, item := range state.Items {
					if item.ID != "chess" {
						t.Fatalf("iteration %d: games state carries %s", i, item.ID)
					}
				}
				settled = state.State == domain.RevealStateSettled
			case <-deadline:
				t.Fatalf("iteration %d: games never settled", i)
			}
		}
		cancel()
		vm.Close()
		vm.Wait()
	}
}

func TestCatalogViewModelSetFilterPublishesOnce(t *testing.T) {
	t.Parallel()

	vm := newTestViewModel(t, toysFixture(), nil)
	if _, err := vm.SelectCategory(context.Background(), "toys"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	vm.Wait()

	published := make(chan ViewState, 4)
	vm.mu.Lock()
	vm.subscribers[-1] = published
	vm.mu.Unlock()

	search, minPrice := "a", 60.0
	state := vm.SetFilter(FilterUpdate{SearchText: &search, MinPrice: &minPrice})
	if state.Filter != (domain.FilterState{SearchText: "a", MinPrice: 60, MaxPrice: 100}) {
		t.Fatalf("unexpected filter %+v", state.Filter)
	}
	if got := itemNames(state); !reflect.DeepEqual(got, []string{"Car"}) {
		t.Fatalf("expected [Car] got %v", got)
	}

	if len(published) != 1 {
		t.Fatalf("expected a single published state got %d", len(published))
	}
	if pushed := <-published; pushed.Filter != state.Filter {
		t.Fatalf("pushed filter %+v differs from %+v", pushed.Filter, state.Filter)
	}
}
