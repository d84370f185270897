package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/jobs"
)

type licenseExpirer interface {
	ExpireDue(ctx context.Context, asOf time.Time) (int, error)
}

// ExpirySweeperConfig tunes the background expiry sweep.
type ExpirySweeperConfig struct {
	Interval   time.Duration
	Workers    int
	MaxRetries int
}

// ExpirySweeper periodically pushes license expiry sweeps onto a job queue.
// Sweeps are idempotent: a license already expired by a concurrent sweep is
// simply skipped.
type ExpirySweeper struct {
	licenses licenseExpirer
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewExpirySweeper constructs the sweeper and its queue.
func NewExpirySweeper(licenses licenseExpirer, logger *zap.Logger, cfg ExpirySweeperConfig) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &ExpirySweeper{
		licenses: licenses,
		interval: cfg.Interval,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("license-expiry", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers and the ticker that feeds them. An initial
// sweep runs immediately so a restart never leaves stale licenses waiting.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Start(ctx)
	s.enqueueSweep()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSweep()
			}
		}
	}()
	s.started = true
	s.logger.Info("license expiry sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and drains the queue workers.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.started = false
	s.mu.Unlock()

	<-done
	s.queue.Stop()
	s.logger.Info("license expiry sweeper stopped")
}

func (s *ExpirySweeper) enqueueSweep() {
	job := jobs.Job{ID: uuid.NewString(), Type: "expiry-sweep"}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue expiry sweep", zap.Error(err))
	}
}

func (s *ExpirySweeper) handle(ctx context.Context, job jobs.Job) error {
	expired, err := s.licenses.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger.Info("expired overdue licenses",
			zap.String("job_id", job.ID),
			zap.Int("count", expired))
	}
	return nil
}
