package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

type stubCategoryRepository struct {
	categories []domain.Category
	listErr    error
	getErr     error
	listCalls  int
	getCalls   int
}

func (s *stubCategoryRepository) ListCategories(context.Context) ([]domain.Category, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *stubCategoryRepository) GetCategory(_ context.Context, categoryID string) (domain.Category, error) {
	s.getCalls++
	if s.getErr != nil {
		return domain.Category{}, s.getErr
	}
	for _, category := range s.categories {
		if category.ID == categoryID {
			return category, nil
		}
	}
	return domain.Category{}, stubRepoError{notFound: true}
}

type stubRepoError struct {
	notFound    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return false }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubCategoryCache struct {
	categories []domain.Category
	ok         bool
	ttl        time.Duration
	getErr     error
	sets       int
	cleared    bool
}

func (c *stubCategoryCache) GetCategories(context.Context) ([]domain.Category, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.categories, c.ok, nil
}

func (c *stubCategoryCache) SetCategories(_ context.Context, categories []domain.Category, ttl time.Duration) error {
	c.categories = categories
	c.ok = true
	c.ttl = ttl
	c.sets++
	return nil
}

func (c *stubCategoryCache) InvalidateCategories(context.Context) error {
	c.categories = nil
	c.ok = false
	c.cleared = true
	return nil
}

func categoryFixture() []domain.Category {
	return []domain.Category{
		{ID: "kites", Name: "Kites", Rank: 2},
		{ID: "toys", Name: "Toys", Rank: 8, IsNew: true},
		{ID: "books", Name: "Story Books", Rank: 5, IsNew: true},
		{ID: "games", Name: "Board Games", Rank: 8},
	}
}

func categoryIDs(categories []domain.Category) []string {
	out := make([]string, 0, len(categories))
	for _, category := range categories {
		out = append(out, category.ID)
	}
	return out
}

func TestCategoryServiceListCategories(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepository{categories: categoryFixture()}
	svc, err := NewCategoryService(CategoryServiceDeps{Categories: repo})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}

	cases := []struct {
		name  string
		query CategoryQuery
		want  []string
	}{
		{name: "all sorted by rank", query: CategoryQuery{}, want: []string{"toys", "games", "books", "kites"}},
		{name: "new only", query: CategoryQuery{Filter: domain.CategoryFilterNew}, want: []string{"toys", "books"}},
		{name: "trending excludes threshold", query: CategoryQuery{Filter: "Trending"}, want: []string{"toys", "games"}},
		{name: "search", query: CategoryQuery{Search: "GAME"}, want: []string{"games"}},
		{name: "search within new", query: CategoryQuery{Filter: domain.CategoryFilterNew, Search: "book"}, want: []string{"books"}},
	}
	for _, tc := range cases {
		got, err := svc.ListCategories(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("%s: ListCategories: %v", tc.name, err)
		}
		if !reflect.DeepEqual(categoryIDs(got), tc.want) {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, categoryIDs(got))
		}
	}

	if _, err := svc.ListCategories(context.Background(), CategoryQuery{Filter: "popular"}); !errors.Is(err, ErrCategoryInvalidFilter) {
		t.Fatalf("expected ErrCategoryInvalidFilter got %v", err)
	}
}

func TestCategoryServiceUsesCache(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepository{categories: categoryFixture()}
	cache := &stubCategoryCache{}
	svc, err := NewCategoryService(CategoryServiceDeps{Categories: repo, Cache: cache, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}

	ctx := context.Background()
	if _, err := svc.ListCategories(ctx, CategoryQuery{}); err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if _, err := svc.ListCategories(ctx, CategoryQuery{}); err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected single repository read got %d", repo.listCalls)
	}
	if cache.sets != 1 || cache.ttl != time.Minute {
		t.Fatalf("expected cache populated with ttl, got sets=%d ttl=%s", cache.sets, cache.ttl)
	}

	category, err := svc.GetCategory(ctx, "books")
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if category.Name != "Story Books" || repo.getCalls != 0 {
		t.Fatalf("expected cached lookup got %+v (repo calls %d)", category, repo.getCalls)
	}

	if err := svc.InvalidateCache(ctx); err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}
	if !cache.cleared {
		t.Fatalf("expected cache invalidated")
	}
}

func TestCategoryServiceCacheFailureFallsBack(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepository{categories: categoryFixture()}
	cache := &stubCategoryCache{getErr: errors.New("redis down")}
	var events []string
	svc, err := NewCategoryService(CategoryServiceDeps{
		Categories: repo,
		Cache:      cache,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			events = append(events, event)
		},
	})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}

	got, err := svc.ListCategories(context.Background(), CategoryQuery{})
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected repository results got %v", categoryIDs(got))
	}
	if len(events) == 0 || events[0] != "category.cache_read_failed" {
		t.Fatalf("expected cache failure to be logged, got %v", events)
	}
}

func TestCategoryServiceGetCategory(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepository{categories: categoryFixture()}
	svc, err := NewCategoryService(CategoryServiceDeps{Categories: repo})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}

	if _, err := svc.GetCategory(context.Background(), "missing"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound got %v", err)
	}
	if _, err := svc.GetCategory(context.Background(), ""); !errors.Is(err, ErrCategoryRequired) {
		t.Fatalf("expected ErrCategoryRequired got %v", err)
	}

	repo.getErr = stubRepoError{unavailable: true}
	_, err = svc.GetCategory(context.Background(), "toys")
	var repoErr stubRepoError
	if !errors.As(err, &repoErr) || !repoErr.IsUnavailable() {
		t.Fatalf("expected unavailable repository error got %v", err)
	}
}

func TestCategoryServiceDefaultCategory(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepository{categories: categoryFixture()}
	svc, err := NewCategoryService(CategoryServiceDeps{Categories: repo})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}
	category, err := svc.DefaultCategory(context.Background())
	if err != nil {
		t.Fatalf("DefaultCategory: %v", err)
	}
	if category.ID != "toys" {
		t.Fatalf("expected highest ranked toys got %s", category.ID)
	}

	empty, err := NewCategoryService(CategoryServiceDeps{Categories: &stubCategoryRepository{}})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}
	if _, err := empty.DefaultCategory(context.Background()); !errors.Is(err, ErrCategoryCatalogEmpty) {
		t.Fatalf("expected ErrCategoryCatalogEmpty got %v", err)
	}
}

func TestNewCategoryServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewCategoryService(CategoryServiceDeps{}); !errors.Is(err, ErrCategoryRepositoryMissing) {
		t.Fatalf("expected ErrCategoryRepositoryMissing got %v", err)
	}
}
