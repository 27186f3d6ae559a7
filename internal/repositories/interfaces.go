package repositories

import (
	"context"
	"time"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Items() ItemRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CategoryRepository reads the merchant's category documents.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, categoryID string) (domain.Category, error)
}

// ItemRepository reads the item documents stored beneath a category.
type ItemRepository interface {
	ListItems(ctx context.Context, categoryID string) ([]domain.RawItem, error)
}

// CategoryCache stores the category listing between reads.
type CategoryCache interface {
	GetCategories(ctx context.Context) ([]domain.Category, bool, error)
	SetCategories(ctx context.Context, categories []domain.Category, ttl time.Duration) error
	InvalidateCategories(ctx context.Context) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
