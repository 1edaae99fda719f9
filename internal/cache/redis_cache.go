package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	client *redis.Client
	logger utils.Logger
}

func NewRedisCache(client *redis.Client, logger utils.Logger) CacheService {
	return &redisCache{client: client, logger: logger}
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// CachedExamRepository wraps an ExamRepository with a read-through spec
// cache. Put and MarkDeleted invalidate before writing through, so a
// concurrent reader can at worst repopulate with the fresh row.
type CachedExamRepository struct {
	inner  repositories.ExamRepository
	cache  CacheService
	ttl    time.Duration
	logger utils.Logger
}

func NewCachedExamRepository(inner repositories.ExamRepository, cache CacheService, ttl time.Duration, logger utils.Logger) *CachedExamRepository {
	return &CachedExamRepository{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func specCacheKey(examKey string) string {
	return "exam:spec:" + examKey
}

func (r *CachedExamRepository) GetSpec(ctx context.Context, examKey string) (*models.ExamSpec, error) {
	var spec models.ExamSpec
	err := r.cache.Get(ctx, specCacheKey(examKey), &spec)
	if err == nil {
		return &spec, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("exam spec cache read failed", "exam_key", examKey, "error", err)
	}

	loaded, err := r.inner.GetSpec(ctx, examKey)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, specCacheKey(examKey), loaded, r.ttl); err != nil {
		r.logger.Warn("exam spec cache write failed", "exam_key", examKey, "error", err)
	}
	return loaded, nil
}

func (r *CachedExamRepository) GetPublicSpec(ctx context.Context, examKey string) (*models.ExamSpec, error) {
	spec, err := r.GetSpec(ctx, examKey)
	if err != nil {
		return nil, err
	}
	return spec.Redacted(), nil
}

func (r *CachedExamRepository) Put(ctx context.Context, spec *models.ExamSpec) error {
	if err := r.cache.Delete(ctx, specCacheKey(spec.ExamKey)); err != nil {
		r.logger.Warn("exam spec cache invalidation failed", "exam_key", spec.ExamKey, "error", err)
	}
	return r.inner.Put(ctx, spec)
}

func (r *CachedExamRepository) MarkDeleted(ctx context.Context, examKey string) error {
	if err := r.cache.Delete(ctx, specCacheKey(examKey)); err != nil {
		r.logger.Warn("exam spec cache invalidation failed", "exam_key", examKey, "error", err)
	}
	return r.inner.MarkDeleted(ctx, examKey)
}
