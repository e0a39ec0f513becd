package scheduler

import (
	"context"
	"time"

	"distributor-backend/internal/assignment/usecase"

	"github.com/rs/zerolog"
)

// DrainScheduler periodically drains the deferred assignment queue. It
// replaces an external cron: one ticker, one drain call per tick.
type DrainScheduler struct {
	processor *usecase.PendingProcessor
	interval  time.Duration
	limit     int
	log       zerolog.Logger
	stopChan  chan struct{}
}

// NewDrainScheduler creates a new scheduler draining up to limit rows every
// interval.
func NewDrainScheduler(processor *usecase.PendingProcessor, interval time.Duration, limit int, log zerolog.Logger) *DrainScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if limit <= 0 {
		limit = usecase.ProcessLimitDefault
	}
	return &DrainScheduler{
		processor: processor,
		interval:  interval,
		limit:     limit,
		log:       log.With().Str("component", "drain_scheduler").Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *DrainScheduler) Start() {
	s.log.Info().Dur("interval", s.interval).Int("limit", s.limit).Msg("starting assignment drain scheduler")

	go func() {
		// Run immediately on start
		s.drain()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.drain()
			case <-s.stopChan:
				s.log.Info().Msg("drain scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *DrainScheduler) Stop() {
	close(s.stopChan)
}

func (s *DrainScheduler) drain() {
	examined, err := s.processor.ProcessDue(context.Background(), s.limit)
	if err != nil {
		s.log.Error().Err(err).Msg("drain run failed")
		return
	}
	if examined > 0 {
		s.log.Info().Int("examined", examined).Msg("drain run finished")
	}
}
