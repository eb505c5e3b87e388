package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotelier/internal/models"
)

type memoryEntry struct {
	days      []models.DayAvailability
	expiresAt time.Time
}

// MemoryCalendarCache is the in-process fallback calendar cache.
type MemoryCalendarCache struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	versions map[int64]int64
	ttl      time.Duration
}

func NewMemoryCalendarCache(ttl time.Duration) *MemoryCalendarCache {
	return &MemoryCalendarCache{
		entries:  make(map[string]memoryEntry),
		versions: make(map[int64]int64),
		ttl:      ttl,
	}
}

func (r *MemoryCalendarCache) key(roomID int64, from, to time.Time) string {
	r.mu.RLock()
	version := r.versions[roomID]
	r.mu.RUnlock()
	return fmt.Sprintf("%d:v%d:%s:%s", roomID, version, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (r *MemoryCalendarCache) GetCalendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error) {
	key := r.key(roomID, from, to)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}

	out := make([]models.DayAvailability, len(entry.days))
	copy(out, entry.days)
	return out, nil
}

func (r *MemoryCalendarCache) SetCalendar(ctx context.Context, roomID int64, from, to time.Time, days []models.DayAvailability) error {
	stored := make([]models.DayAvailability, len(days))
	copy(stored, days)

	key := r.key(roomID, from, to)
	r.mu.Lock()
	r.entries[key] = memoryEntry{days: stored, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return nil
}

func (r *MemoryCalendarCache) InvalidateRoom(ctx context.Context, roomID int64) error {
	r.mu.Lock()
	r.versions[roomID]++
	r.mu.Unlock()
	return nil
}
