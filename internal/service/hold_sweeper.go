package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	"github.com/jc96818/sayitschedule-sub004/pkg/jobs"
)

// HoldSweeper periodically enqueues cleanup jobs that delete expired hold
// rows. Liveness checks never depend on the sweeper; it only bounds table
// growth.
type HoldSweeper struct {
	holds  *HoldService
	queue  *jobs.Queue
	ticker *time.Ticker
	stop   chan struct{}
	logger *zap.Logger
	cfg    config.HoldsConfig
}

// NewHoldSweeper builds the sweeper and its worker queue.
func NewHoldSweeper(holds *HoldService, logger *zap.Logger, cfg config.HoldsConfig) *HoldSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 1
	}
	sweeper := &HoldSweeper{
		holds:  holds,
		stop:   make(chan struct{}),
		logger: logger,
		cfg:    cfg,
	}
	sweeper.queue = jobs.NewQueue("hold-sweep", sweeper.handle, jobs.QueueConfig{
		Workers: cfg.SweepWorkers,
		Logger:  logger,
	})
	return sweeper
}

// Start launches the queue workers and the enqueue ticker.
func (s *HoldSweeper) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.ticker = time.NewTicker(s.cfg.SweepInterval)
	go func() {
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case tick := <-s.ticker.C:
				job := jobs.Job{
					ID:   fmt.Sprintf("hold-sweep-%d", tick.UnixNano()),
					Type: "hold.sweep",
				}
				if err := s.queue.Enqueue(job); err != nil {
					s.logger.Warn("failed to enqueue hold sweep", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the ticker and drains the queue.
func (s *HoldSweeper) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stop)
	s.queue.Stop()
}

func (s *HoldSweeper) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.holds.CleanupExpiredHolds(ctx)
	return err
}
