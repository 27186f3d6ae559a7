package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	pfirestore "github.com/Prathaban-G/ecommerce/internal/platform/firestore"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

// ItemsSubcollection holds the items of a category document.
const ItemsSubcollection = "items"

// ItemRepository reads the items stored under categories/{id}/items.
type ItemRepository struct {
	categories *pfirestore.Collection[domain.RawItem]
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository constructs a Firestore-backed item repository.
func NewItemRepository(provider *pfirestore.Provider) (*ItemRepository, error) {
	if provider == nil {
		return nil, errors.New("item repository: firestore provider is required")
	}
	decoder := func(_ context.Context, snap *firestore.DocumentSnapshot) (domain.RawItem, error) {
		return decodeItemFields(snap.Ref.ID, snap.Data()), nil
	}
	return &ItemRepository{
		categories: pfirestore.NewCollection[domain.RawItem](provider, CategoriesCollection, decoder),
	}, nil
}

// ListItems returns the raw items of categoryID in store iteration order.
// An unknown category yields an empty list.
func (r *ItemRepository) ListItems(ctx context.Context, categoryID string) ([]domain.RawItem, error) {
	if r == nil || r.categories == nil {
		return nil, errors.New("item repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" || strings.Contains(categoryID, "/") {
		return nil, errors.New("item repository: invalid category id")
	}
	docs, err := r.categories.Sub(categoryID, ItemsSubcollection).Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	items := make([]domain.RawItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data)
	}
	return items, nil
}
