package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/Prathaban-G/ecommerce/internal/platform/firestore"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

// Registry wires the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider   *pfirestore.Provider
	categories *CategoryRepository
	items      *ItemRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if health == nil {
		return nil, errors.New("repository registry: health repository is required")
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	items, err := NewItemRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, categories: categories, items: items, health: health}, nil
}

func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }

func (r *Registry) Items() repositories.ItemRepository { return r.items }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
