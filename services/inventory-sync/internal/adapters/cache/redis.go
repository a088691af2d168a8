package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
	"github.com/go-redis/redis/v8"
)

// scanBatch сколько ключей удаляется за один DEL при очистке по шаблону
const scanBatch = 100

// RedisCache реализация CachePort поверх Redis.
// Все ключи получают общий префикс сервиса, чтобы не пересекаться с соседями по инстансу
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(ctx context.Context, host string, port int, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, prefix), nil
}

// NewRedisCacheFromClient оборачивает готовый клиент
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

var _ interfaces.CachePort = (*RedisCache)(nil)

func (r *RedisCache) buildKey(key string) string {
	if r.prefix != "" {
		return fmt.Sprintf("%s:%s", r.prefix, key)
	}
	return key
}

// Ping проверяет соединение
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
			return nil, errors.ErrCacheMiss
		}
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := r.client.Set(ctx, r.buildKey(key), value, expiration).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		return err
	}
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, r.buildKey(pattern), scanBatch).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("ошибка при удалении ключей кэша: %w", err)
			}
			keys = keys[:0]
		}
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("ошибка при удалении оставшихся ключей кэша: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("ошибка при сканировании ключей по шаблону: %w", err)
	}

	metrics.CacheOperations.WithLabelValues("delete_pattern", "ok").Inc()
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
