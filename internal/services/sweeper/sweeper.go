// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sweeper periodically clears expired one-time secrets.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger removes expired secrets and reports how many accounts it touched.
type Purger interface {
	PurgeExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs a Purger on a cron schedule.
type Sweeper struct {
	purger  Purger
	cron    *cron.Cron
	now     func() time.Time
	timeout time.Duration
}

// New schedules purger according to schedule, a standard cron expression or a
// descriptor such as "@every 1h".
func New(purger Purger, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		purger:  purger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:     time.Now,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	slog.Debug("secret sweeper started")
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep runs one purge immediately.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeExpiredSecrets(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired secrets: %w", err)
	}
	return n, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("sweep_failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("sweep_done", "cleared", n)
	}
}
