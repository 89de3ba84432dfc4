// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl runs the background sweep that evicts idle conversation
// threads from the liveness store.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// TTL Sweeper Implementation
// =============================================================================

// DefaultSweepInterval is how often a sweep cycle runs.
const DefaultSweepInterval = 600 * time.Second

// Evictor is the slice of the conversation store the sweeper needs.
type Evictor interface {
	EvictExpired(ctx context.Context, now time.Time) int
}

// Sweeper periodically evicts expired threads.
//
// # Description
//
// Manages the lifecycle of a background goroutine that runs eviction
// cycles at a fixed interval. Uses the ticker + done channel pattern for
// graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe. A mutex protects state
// transitions.
type Sweeper struct {
	store    Evictor
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper over the given store.
//
// # Inputs
//
//   - store: Eviction target. Must not be nil.
//   - interval: Cycle period. Non-positive means DefaultSweepInterval.
//
// # Outputs
//
//   - *Sweeper: Ready to Start().
func NewSweeper(store Evictor, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Description
//
// Starts a goroutine that runs eviction at the configured interval until
// Stop() is called or the context is cancelled. Only one loop may run at
// a time.
//
// # Outputs
//
//   - error: Non-nil if the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // reset for restart after Stop
	s.mu.Unlock()

	slog.Info("conversation TTL sweeper starting", "interval", s.interval.String())
	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	slog.Info("conversation TTL sweeper stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one eviction cycle immediately and returns the number
// of threads evicted. Does not affect the scheduled cycle timing.
func (s *Sweeper) RunNow(ctx context.Context) int {
	return s.store.EvictExpired(ctx, s.now())
}

// runLoop is the sweep goroutine.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("conversation TTL sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("conversation TTL sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			evicted := s.store.EvictExpired(ctx, s.now())
			if evicted > 0 {
				slog.Info("conversation TTL sweep completed", "evicted", evicted)
			} else {
				slog.Debug("conversation TTL sweep completed (no expired threads)")
			}
		}
	}
}
