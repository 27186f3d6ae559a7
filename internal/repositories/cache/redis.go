package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

const defaultKeyPrefix = "storefront"

// RedisClient is the subset of the go-redis client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient parses a redis:// or rediss:// URL into a client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// RedisCategoryCache shares the category listing across service replicas.
type RedisCategoryCache struct {
	client RedisClient
	key    string
}

var _ repositories.CategoryCache = (*RedisCategoryCache)(nil)

type categoryRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	Rank     int    `json:"rank"`
	IsNew    bool   `json:"isNew,omitempty"`
}

// NewRedisCategoryCache stores entries under "<prefix>:categories".
func NewRedisCategoryCache(client RedisClient, prefix string) (*RedisCategoryCache, error) {
	if client == nil {
		return nil, errors.New("redis cache: client is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCategoryCache{client: client, key: prefix + ":categories"}, nil
}

func (c *RedisCategoryCache) GetCategories(ctx context.Context) ([]domain.Category, bool, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache: get %s: %w", c.key, err)
	}
	var records []categoryRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode %s: %w", c.key, err)
	}
	categories := make([]domain.Category, 0, len(records))
	for _, record := range records {
		categories = append(categories, domain.Category{
			ID:       record.ID,
			Name:     record.Name,
			ImageURL: record.ImageURL,
			Rank:     record.Rank,
			IsNew:    record.IsNew,
		})
	}
	return categories, true, nil
}

func (c *RedisCategoryCache) SetCategories(ctx context.Context, categories []domain.Category, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	records := make([]categoryRecord, 0, len(categories))
	for _, category := range categories {
		records = append(records, categoryRecord{
			ID:       category.ID,
			Name:     category.Name,
			ImageURL: category.ImageURL,
			Rank:     category.Rank,
			IsNew:    category.IsNew,
		})
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("redis cache: encode categories: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set %s: %w", c.key, err)
	}
	return nil
}

func (c *RedisCategoryCache) InvalidateCategories(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis cache: delete %s: %w", c.key, err)
	}
	return nil
}

// Ping reports whether the Redis server is reachable.
func (c *RedisCategoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
