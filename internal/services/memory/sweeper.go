package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
)

// Sweeper runs the retention sweep on a cron schedule.
type Sweeper struct {
	service   Service
	retention time.Duration
	cron      *cron.Cron
}

// NewSweeper schedules Sweep on schedule (standard cron or descriptors such as "@daily").
func NewSweeper(service Service, schedule string, retention time.Duration) (*Sweeper, error) {
	if service == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}

	s := &Sweeper{
		service:   service,
		retention: retention,
		cron:      cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	log.Info().Dur("retention", s.retention).Msg("memory sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep and reports the number of deleted memories.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.service.Sweep(ctx, s.retention)
	if err != nil {
		log.Error().Err(err).Msg("memory sweep failed")
		return 0
	}
	metrics.MemorySwept.Add(float64(n))
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("swept inactive conversation memories")
	}
	return n
}
