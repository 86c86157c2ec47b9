package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_watcher/internal/domain"
)

// Watcher defines the operations the scheduler drives.
type Watcher interface {
	RunCycle(ctx context.Context) (*domain.CycleStats, error)
	Maintain(ctx context.Context) error
	SendHeartbeat(ctx context.Context) error
}

// Scheduler drives the watcher on three independent cadences. Poll cycles
// run one at a time; maintenance and heartbeat tick on their own
// goroutines so a long cycle never delays an eviction sweep.
type Scheduler struct {
	watcher             Watcher
	pollInterval        time.Duration
	maintenanceInterval time.Duration
	heartbeatInterval   time.Duration
	runTimeout          time.Duration
	logger              *slog.Logger
}

func NewScheduler(
	watcher Watcher,
	pollInterval, maintenanceInterval, heartbeatInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		watcher:             watcher,
		pollInterval:        pollInterval,
		maintenanceInterval: maintenanceInterval,
		heartbeatInterval:   heartbeatInterval,
		runTimeout:          5 * time.Minute,
		logger:              logger,
	}
}

// Start blocks until ctx is cancelled. The first poll cycle and heartbeat
// run immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"poll_interval", s.pollInterval,
		"maintenance_interval", s.maintenanceInterval,
		"heartbeat_interval", s.heartbeatInterval,
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runMaintenanceLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runHeartbeatLoop(ctx)
	}()

	s.runCycle(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.watcher.RunCycle(cycleCtx); err != nil {
		s.logger.Error("poll cycle failed", "error", err)
	}
}

func (s *Scheduler) runMaintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maintCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
			if err := s.watcher.Maintain(maintCtx); err != nil {
				s.logger.Error("maintenance failed", "error", err)
			}
			cancel()
		}
	}
}

func (s *Scheduler) runHeartbeatLoop(ctx context.Context) {
	hbCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	if err := s.watcher.SendHeartbeat(hbCtx); err != nil {
		s.logger.Error("heartbeat failed", "error", err)
	}
	cancel()

	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hbCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
			if err := s.watcher.SendHeartbeat(hbCtx); err != nil {
				s.logger.Error("heartbeat failed", "error", err)
			}
			cancel()
		}
	}
}
