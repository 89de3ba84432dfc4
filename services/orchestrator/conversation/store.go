// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Liveness Store
// =============================================================================

const (
	// DefaultTTL is how long an idle thread stays alive.
	DefaultTTL = 3600 * time.Second

	// DefaultMaxThreads caps the number of live threads. New threads
	// beyond the cap evict the least recently active one.
	DefaultMaxThreads = 200
)

// StoreConfig holds liveness store settings.
type StoreConfig struct {
	// TTL is the idle lifetime of a thread. Zero means DefaultTTL.
	TTL time.Duration

	// MaxThreads caps live threads. Zero means DefaultMaxThreads.
	MaxThreads int
}

// Store is the in-memory liveness index over conversation threads.
//
// # Description
//
// Tracks the last activity timestamp of each thread. Touch registers
// activity and enforces the capacity cap; EvictExpired removes threads
// idle past the TTL. Removing a thread from the index also deletes its
// checkpoint, so a dead thread's history cannot be resurrected by a
// later request reusing the same ID.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex guards the
// index; checkpoint deletes run outside the hot read path but inside the
// write lock so that eviction and re-registration cannot interleave.
type Store struct {
	mu          sync.RWMutex
	lastActive  map[string]time.Time
	ttl         time.Duration
	maxThreads  int
	checkpoints Checkpointer

	// onDeleteFailure is invoked once per failed checkpoint delete.
	// Used to feed the sweep failure metric. May be nil.
	onDeleteFailure func()

	// onEvict is invoked once per evicted thread with the reason
	// ("ttl" or "capacity"). May be nil.
	onEvict func(reason string)
}

// NewStore creates a liveness store bound to a checkpointer.
func NewStore(checkpoints Checkpointer, cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	return &Store{
		lastActive:  make(map[string]time.Time),
		ttl:         ttl,
		maxThreads:  maxThreads,
		checkpoints: checkpoints,
	}
}

// SetDeleteFailureHook registers a callback fired on each failed
// checkpoint delete. Call before the store is shared across goroutines.
func (s *Store) SetDeleteFailureHook(hook func()) {
	s.onDeleteFailure = hook
}

// SetEvictHook registers a callback fired on each eviction with the
// reason. Call before the store is shared across goroutines.
func (s *Store) SetEvictHook(hook func(reason string)) {
	s.onEvict = hook
}

// Touch registers activity on a thread at the given instant.
//
// # Description
//
// Updates the thread's last activity timestamp, creating the entry if
// needed. When a new thread would push the index past its capacity, the
// thread with the oldest last activity is evicted first; ties break
// toward the lexicographically smallest thread ID so eviction is
// deterministic.
//
// # Inputs
//
//   - ctx: Passed through to checkpoint deletion on eviction.
//   - threadID: Thread to touch.
//   - now: The activity instant. Injected for testability.
func (s *Store) Touch(ctx context.Context, threadID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lastActive[threadID]; !exists && len(s.lastActive) >= s.maxThreads {
		s.evictOldestLocked(ctx)
	}
	s.lastActive[threadID] = now
}

// LastActive reports a thread's last activity timestamp.
//
// # Outputs
//
//   - time.Time: The last Touch instant. Zero when absent.
//   - bool: False when the thread is not in the index.
func (s *Store) LastActive(threadID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastActive[threadID]
	return t, ok
}

// Len reports the number of live threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lastActive)
}

// EvictExpired removes every thread idle for longer than the TTL.
//
// # Description
//
// A thread whose last activity is strictly before now minus the TTL is
// expired; a thread at exactly TTL idleness survives this sweep. Each expired thread is removed from the index and its
// checkpoint deleted. A failed checkpoint delete is logged and counted
// but never blocks the liveness removal, so the index cannot wedge on a
// misbehaving store.
//
// # Inputs
//
//   - ctx: Passed through to checkpoint deletion.
//   - now: The sweep instant. Injected for testability.
//
// # Outputs
//
//   - int: Number of threads evicted.
func (s *Store) EvictExpired(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, last := range s.lastActive {
		if !last.Before(cutoff) {
			continue
		}
		s.removeLocked(ctx, id)
		if s.onEvict != nil {
			s.onEvict("ttl")
		}
		evicted++
	}
	return evicted
}

// Remove deletes a single thread and its checkpoint.
func (s *Store) Remove(ctx context.Context, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastActive[threadID]; ok {
		s.removeLocked(ctx, threadID)
	}
}

// evictOldestLocked evicts the least recently active thread. Caller
// holds the write lock.
func (s *Store) evictOldestLocked(ctx context.Context) {
	var victim string
	var oldest time.Time
	first := true
	for id, last := range s.lastActive {
		if first || last.Before(oldest) || (last.Equal(oldest) && id < victim) {
			victim, oldest, first = id, last, false
		}
	}
	if victim == "" && first {
		return
	}
	slog.Info("evicting least recently active thread",
		"thread_id", victim, "last_active", oldest)
	s.removeLocked(ctx, victim)
	if s.onEvict != nil {
		s.onEvict("capacity")
	}
}

// removeLocked drops the liveness entry and deletes the checkpoint.
// Caller holds the write lock.
func (s *Store) removeLocked(ctx context.Context, threadID string) {
	delete(s.lastActive, threadID)
	if err := s.checkpoints.Delete(ctx, threadID); err != nil {
		slog.Warn("failed to delete thread checkpoint",
			"thread_id", threadID, "error", err)
		if s.onDeleteFailure != nil {
			s.onDeleteFailure()
		}
	}
}
