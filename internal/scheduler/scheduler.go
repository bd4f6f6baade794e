// Package scheduler fires the recurring sync trigger. It is the only
// source of scheduled runs; stopping it prevents the next trigger but
// never interrupts a run already in flight.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	log *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// Start schedules job every intervalHours hours and starts the cron loop.
// Starting an already-running scheduler is an error.
func (s *Scheduler) Start(intervalHours int, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if intervalHours <= 0 {
		return fmt.Errorf("invalid sync interval: %d hours", intervalHours)
	}

	spec := fmt.Sprintf("@every %dh", intervalHours)
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("add sync job: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", zap.Int("interval_hours", intervalHours))
	return nil
}

// Stop cancels the pending trigger and returns immediately. A job
// already in flight keeps running to completion. It is a no-op if the
// scheduler is not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Remove(s.entry)
	s.cron.Stop()
	s.running = false
	s.log.Info("scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the time of the next scheduled trigger, or the zero
// time when the scheduler is stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}
