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

// CategoriesCollection is the top-level collection holding category documents.
const CategoriesCollection = "categories"

// CategoryRepository reads category documents.
type CategoryRepository struct {
	base *pfirestore.Collection[domain.Category]
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository: firestore provider is required")
	}
	decoder := func(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Category, error) {
		return decodeCategoryFields(snap.Ref.ID, snap.Data()), nil
	}
	return &CategoryRepository{
		base: pfirestore.NewCollection[domain.Category](provider, CategoriesCollection, decoder),
	}, nil
}

// ListCategories returns every category in store iteration order.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Data)
	}
	return categories, nil
}

// GetCategory loads a single category by document id.
func (r *CategoryRepository) GetCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: id is required")
	}
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return doc.Data, nil
}
