package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hotelier/internal/config"
	"hotelier/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a calendar range is not cached.
var ErrCacheMiss = errors.New("calendar cache miss")

// RedisCalendarCache caches availability calendars in Redis. Each room
// carries a version counter; invalidation bumps the counter so stale
// entries become unreachable and age out via TTL instead of being
// scanned for.
type RedisCalendarCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCalendarCache(client *redis.Client, ttl time.Duration) *RedisCalendarCache {
	return &RedisCalendarCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCalendarCache) roomVersion(ctx context.Context, roomID int64) (int64, error) {
	val, err := r.client.Get(ctx, fmt.Sprintf("calendar_ver:%d", roomID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get calendar version: %w", err)
	}
	return val, nil
}

func calendarKey(roomID, version int64, from, to time.Time) string {
	return fmt.Sprintf("calendar:%d:v%d:%s:%s",
		roomID, version, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (r *RedisCalendarCache) GetCalendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	version, err := r.roomVersion(ctx, roomID)
	if err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, calendarKey(roomID, version, from, to)).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar from redis: %w", err)
	}

	var days []models.DayAvailability
	if err := json.Unmarshal([]byte(val), &days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calendar: %w", err)
	}
	return days, nil
}

func (r *RedisCalendarCache) SetCalendar(ctx context.Context, roomID int64, from, to time.Time, days []models.DayAvailability) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	version, err := r.roomVersion(ctx, roomID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar: %w", err)
	}

	if err := r.client.Set(ctx, calendarKey(roomID, version, from, to), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set calendar in redis: %w", err)
	}
	return nil
}

func (r *RedisCalendarCache) InvalidateRoom(ctx context.Context, roomID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Incr(ctx, fmt.Sprintf("calendar_ver:%d", roomID)).Err(); err != nil {
		return fmt.Errorf("failed to bump calendar version: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
