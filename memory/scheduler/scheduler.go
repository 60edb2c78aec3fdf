// Package scheduler drives background memory maintenance: periodic
// consolidation of pending turns and eviction of idle short-term
// buffers.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/companionkit/memcore/memory"
)

// Config holds the maintenance schedules.
type Config struct {
	// ConsolidateSpec is the cron expression (with seconds) for the
	// consolidation sweep.
	ConsolidateSpec string

	// EvictSpec is the cron expression for the idle-buffer sweep.
	EvictSpec string

	// MaxIdle is how long a user's buffer may sit untouched before the
	// eviction sweep reclaims it.
	MaxIdle time.Duration

	// CycleTimeout bounds one consolidation sweep across all users.
	CycleTimeout time.Duration
}

// DefaultConfig consolidates every five minutes and evicts buffers
// idle for over a day, hourly.
var DefaultConfig = &Config{
	ConsolidateSpec: "0 */5 * * * *",
	EvictSpec:       "0 0 * * * *",
	MaxIdle:         24 * time.Hour,
	CycleTimeout:    2 * time.Minute,
}

// Scheduler runs the memory system's periodic maintenance.
type Scheduler struct {
	system *memory.System
	config *Config

	mu      sync.Mutex
	cron    *rcron.Cron
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler over the given system. A nil config uses
// DefaultConfig.
func New(system *memory.System, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig
	}
	return &Scheduler{system: system, config: config}
}

// Start registers the jobs and begins ticking. Calling Start twice
// without Stop is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cron = rcron.New(rcron.WithSeconds())

	if _, err := s.cron.AddFunc(s.config.ConsolidateSpec, func() {
		s.RunPending(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("register consolidation job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.config.EvictSpec, func() {
		if evicted := s.system.EvictIdleBuffers(s.config.MaxIdle); evicted > 0 {
			log.Printf("[SCHEDULER] evicted %d idle buffers", evicted)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("register eviction job: %w", err)
	}

	s.cron.Start()
	s.started = true
	log.Printf("[SCHEDULER] started (consolidate %q, evict %q)", s.config.ConsolidateSpec, s.config.EvictSpec)
	return nil
}

// RunPending consolidates every user with buffered turns awaiting
// promotion. Failures are per-user and non-fatal; the affected turns
// stay pending for the next sweep.
func (s *Scheduler) RunPending(ctx context.Context) {
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}

	for _, userID := range s.system.UsersWithPending() {
		if ctx.Err() != nil {
			return
		}
		if err := s.system.Consolidate(ctx, userID); err != nil {
			log.Printf("[SCHEDULER] consolidation for %s: %v", userID, err)
		}
	}
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.cancel()
	s.started = false
	log.Printf("[SCHEDULER] stopped")
}
