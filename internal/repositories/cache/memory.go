package cache

import (
	"context"
	"sync"
	"time"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

// MemoryCategoryCache keeps the category listing in process memory.
type MemoryCategoryCache struct {
	clock func() time.Time

	mu        sync.RWMutex
	data      []domain.Category
	expiresAt time.Time
}

var _ repositories.CategoryCache = (*MemoryCategoryCache)(nil)

// NewMemoryCategoryCache returns an empty cache. A nil clock uses time.Now.
func NewMemoryCategoryCache(clock func() time.Time) *MemoryCategoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCategoryCache{clock: clock}
}

func (c *MemoryCategoryCache) GetCategories(context.Context) ([]domain.Category, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || !c.clock().Before(c.expiresAt) {
		return nil, false, nil
	}
	return cloneCategories(c.data), true, nil
}

func (c *MemoryCategoryCache) SetCategories(_ context.Context, categories []domain.Category, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = cloneCategories(categories)
	c.expiresAt = c.clock().Add(ttl)
	return nil
}

func (c *MemoryCategoryCache) InvalidateCategories(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.expiresAt = time.Time{}
	return nil
}

func cloneCategories(categories []domain.Category) []domain.Category {
	out := make([]domain.Category, len(categories))
	copy(out, categories)
	return out
}
