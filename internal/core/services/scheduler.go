package services

import (
	"context"
	"sync"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/ports/driving"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Default scheduler configuration values.
const (
	DefaultSchedulerInterval = 15 * time.Second
	DefaultSchedulerBatch    = 32
)

// SchedulerConfig holds configuration for the background worker loop.
type SchedulerConfig struct {
	// Interval is the pause between drain passes.
	Interval time.Duration

	// BatchSize is the maximum documents processed per pass.
	BatchSize int
}

// Scheduler periodically drains due pipeline entries: pending documents
// past their backoff and claims abandoned by crashed workers. Retry
// state itself lives in the index state store, so any number of
// scheduler processes may run concurrently.
type Scheduler struct {
	cfg     SchedulerConfig
	indexer driving.Indexer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler around the indexing pipeline.
func NewScheduler(cfg SchedulerConfig, indexer driving.Indexer) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSchedulerBatch
	}
	return &Scheduler{cfg: cfg, indexer: indexer}
}

// Start begins the drain loop. It blocks until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	logger.Info("Scheduler started, interval %s, batch %d", s.cfg.Interval, s.cfg.BatchSize)

	// Drain immediately on start, then on every tick.
	s.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current
// pass to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) drain(ctx context.Context) {
	processed, err := s.indexer.ProcessPending(ctx, s.cfg.BatchSize)
	if err != nil {
		logger.Warn("Drain pass failed: %v", err)
		return
	}
	if processed > 0 {
		logger.Info("Drain pass processed %d documents", processed)
	}
}
