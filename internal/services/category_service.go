package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

const defaultCategoryCacheTTL = 5 * time.Minute

var (
	// ErrCategoryRepositoryMissing indicates the repository dependency is absent.
	ErrCategoryRepositoryMissing = errors.New("category service: repository is not configured")
	// ErrCategoryNotFound indicates the requested category does not exist.
	ErrCategoryNotFound = errors.New("category service: category not found")
	// ErrCategoryInvalidFilter indicates an unsupported listing filter.
	ErrCategoryInvalidFilter = errors.New("category service: invalid filter")
	// ErrCategoryCatalogEmpty indicates no category exists to select by default.
	ErrCategoryCatalogEmpty = errors.New("category service: no categories available")
)

// CategoryQuery narrows the category listing.
type CategoryQuery struct {
	Filter domain.CategoryFilter
	Search string
}

// CategoryServiceDeps bundles constructor inputs for the category service.
type CategoryServiceDeps struct {
	Categories repositories.CategoryRepository
	Cache      repositories.CategoryCache
	CacheTTL   time.Duration
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type categoryService struct {
	repo     repositories.CategoryRepository
	cache    repositories.CategoryCache
	cacheTTL time.Duration
	logger   func(context.Context, string, map[string]any)
}

var _ CategoryService = (*categoryService)(nil)

// NewCategoryService constructs the category service with the supplied dependencies.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, ErrCategoryRepositoryMissing
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCategoryCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &categoryService{
		repo:     deps.Categories,
		cache:    deps.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}, nil
}

func (s *categoryService) ListCategories(ctx context.Context, query CategoryQuery) ([]domain.Category, error) {
	filter, err := normalizeCategoryFilter(query.Filter)
	if err != nil {
		return nil, err
	}
	all, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(query.Search))
	out := make([]domain.Category, 0, len(all))
	for _, category := range all {
		switch filter {
		case domain.CategoryFilterNew:
			if !category.IsNew {
				continue
			}
		case domain.CategoryFilterTrending:
			if category.Rank <= domain.TrendingRankThreshold {
				continue
			}
		}
		if needle != "" && !strings.Contains(folder.String(category.Name), needle) {
			continue
		}
		out = append(out, category)
	}
	return out, nil
}

func (s *categoryService) GetCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, ErrCategoryRequired
	}
	if cached, ok := s.cachedCategories(ctx); ok {
		for _, category := range cached {
			if category.ID == categoryID {
				return category, nil
			}
		}
	}
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return domain.Category{}, mapCategoryRepositoryError(err)
	}
	return category, nil
}

func (s *categoryService) DefaultCategory(ctx context.Context) (domain.Category, error) {
	all, err := s.loadCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	if len(all) == 0 {
		return domain.Category{}, ErrCategoryCatalogEmpty
	}
	return all[0], nil
}

func (s *categoryService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateCategories(ctx)
}

// loadCategories returns every category ordered by rank, highest first.
func (s *categoryService) loadCategories(ctx context.Context) ([]domain.Category, error) {
	if cached, ok := s.cachedCategories(ctx); ok {
		return cached, nil
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, mapCategoryRepositoryError(err)
	}
	sortCategoriesByRank(categories)

	if s.cache != nil {
		if err := s.cache.SetCategories(ctx, categories, s.cacheTTL); err != nil {
			s.logger(ctx, "category.cache_store_failed", map[string]any{"error": err.Error()})
		}
	}
	return categories, nil
}

func (s *categoryService) cachedCategories(ctx context.Context) ([]domain.Category, bool) {
	if s.cache == nil {
		return nil, false
	}
	categories, ok, err := s.cache.GetCategories(ctx)
	if err != nil {
		s.logger(ctx, "category.cache_read_failed", map[string]any{"error": err.Error()})
		return nil, false
	}
	return categories, ok
}

func sortCategoriesByRank(categories []domain.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Rank > categories[j].Rank
	})
}

func normalizeCategoryFilter(filter domain.CategoryFilter) (domain.CategoryFilter, error) {
	switch domain.CategoryFilter(strings.ToLower(strings.TrimSpace(string(filter)))) {
	case "", domain.CategoryFilterAll:
		return domain.CategoryFilterAll, nil
	case domain.CategoryFilterNew:
		return domain.CategoryFilterNew, nil
	case domain.CategoryFilterTrending:
		return domain.CategoryFilterTrending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrCategoryInvalidFilter, filter)
	}
}

func mapCategoryRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrCategoryNotFound, err)
	}
	return err
}
