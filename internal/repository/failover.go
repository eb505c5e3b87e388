package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"hotelier/internal/domain"
	"hotelier/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCalendarCache serves from the primary (Redis) cache and drops
// to the in-memory fallback when the primary errors. It retries the
// primary a minute after the last failure.
type FailoverCalendarCache struct {
	primary   domain.CalendarCache
	fallback  domain.CalendarCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCalendarCache(primary, fallback domain.CalendarCache, logger *zerolog.Logger) *FailoverCalendarCache {
	return &FailoverCalendarCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCalendarCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary calendar cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverCalendarCache) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverCalendarCache) GetCalendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error) {
	if !r.isDown.Load() {
		days, err := r.primary.GetCalendar(ctx, roomID, from, to)
		if err == nil || errors.Is(err, ErrCacheMiss) {
			return days, err
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		days, err := r.primary.GetCalendar(ctx, roomID, from, to)
		if err == nil || errors.Is(err, ErrCacheMiss) {
			r.isDown.Store(false)
			return days, err
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetCalendar(ctx, roomID, from, to)
}

func (r *FailoverCalendarCache) SetCalendar(ctx context.Context, roomID int64, from, to time.Time, days []models.DayAvailability) error {
	if !r.isDown.Load() {
		err := r.primary.SetCalendar(ctx, roomID, from, to, days)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetCalendar(ctx, roomID, from, to, days)
}

func (r *FailoverCalendarCache) InvalidateRoom(ctx context.Context, roomID int64) error {
	// Invalidation goes to both sides: the fallback may hold entries
	// written while the primary was down.
	var primaryErr error
	if !r.isDown.Load() {
		if primaryErr = r.primary.InvalidateRoom(ctx, roomID); primaryErr != nil {
			r.markDown(primaryErr)
		}
	}

	if err := r.fallback.InvalidateRoom(ctx, roomID); err != nil {
		return err
	}
	return primaryErr
}
