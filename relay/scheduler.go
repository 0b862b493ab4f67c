package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

/* Scheduler sweeps the ledger for requests whose retry time has elapsed and
 * re-enters each one into the delivery state machine at origin resolution.
 * ClaimDue flips the state while selecting, so concurrent sweeps never pick
 * up the same request twice.
 */
type Scheduler struct {
	ledger    Ledger
	deliverer *Deliverer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewScheduler creates a scheduler sweeping at the given interval.
func NewScheduler(ledger Ledger, deliverer *Deliverer, interval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ledger:    ledger,
		deliverer: deliverer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("retry scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry scheduler shutting down")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep claims one batch of due requests and redelivers each concurrently.
// Exported so tests and operational tooling can trigger a sweep directly.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.ledger.ClaimDue(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("claiming due requests failed", slog.Any("error", err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug("retry sweep", slog.Int("claimed", len(due)))

	var wg sync.WaitGroup
	for _, req := range due {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			s.deliverer.Redeliver(ctx, req)
		}(req)
	}
	wg.Wait()
}
