package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SweepFunc runs one no-show sweep pass.
type SweepFunc func(ctx context.Context) error

// Sweeper runs the daily no-show sweep at a fixed local hour.
type Sweeper struct {
	sweep  SweepFunc
	hour   int
	logger *zerolog.Logger
}

func NewSweeper(sweep SweepFunc, hour int, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{sweep: sweep, hour: hour, logger: logger}
}

// Start blocks until ctx is done. The first run happens at the next
// occurrence of the configured hour, then every 24h.
func (s *Sweeper) Start(ctx context.Context) {
	wait := timeUntilNextHour(s.hour)
	s.logger.Info().Int("hour", s.hour).Dur("first_run_in", wait).Msg("no-show sweeper scheduled")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("no-show sweep failed")
			}
			timer.Reset(24 * time.Hour)
		}
	}
}

func timeUntilNextHour(hour int) time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
