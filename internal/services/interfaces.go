package services

import (
	"context"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Category           = domain.Category
	RawItem            = domain.RawItem
	NormalizedItem     = domain.NormalizedItem
	DisplayItem        = domain.DisplayItem
	FilterState        = domain.FilterState
	PriceBounds        = domain.PriceBounds
	SystemHealthReport = domain.SystemHealthReport
)

// CategoryService lists the storefront's categories and resolves selections.
type CategoryService interface {
	ListCategories(ctx context.Context, query CategoryQuery) ([]Category, error)
	GetCategory(ctx context.Context, categoryID string) (Category, error)
	DefaultCategory(ctx context.Context) (Category, error)
	InvalidateCache(ctx context.Context) error
}

// SystemService exposes operational metadata for health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SessionActivityReporter summarises live viewer sessions.
type SessionActivityReporter interface {
	Activity() domain.SessionActivity
}
