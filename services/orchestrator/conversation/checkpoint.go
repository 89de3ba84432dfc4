// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation manages per-thread conversation state: a
// checkpoint store holding serialized message history, and a liveness
// index that tracks activity timestamps and drives TTL and capacity
// eviction.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// =============================================================================
// Checkpointer Interface
// =============================================================================

// Checkpointer persists opaque conversation checkpoints keyed by thread ID.
//
// # Description
//
// The agent stores serialized message history here between turns. The
// liveness index deletes checkpoints when a thread expires or is evicted.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Checkpointer interface {
	// Save stores the checkpoint blob for a thread, replacing any
	// previous checkpoint.
	Save(ctx context.Context, threadID string, blob []byte) error

	// Load retrieves a thread's checkpoint. The second return value is
	// false when no checkpoint exists; that is not an error.
	Load(ctx context.Context, threadID string) ([]byte, bool, error)

	// Delete removes a thread's checkpoint. Deleting a missing
	// checkpoint is a no-op.
	Delete(ctx context.Context, threadID string) error

	// Close releases underlying resources.
	Close() error
}

// =============================================================================
// BadgerDB Checkpointer
// =============================================================================

// checkpointKeyPrefix namespaces checkpoint keys inside the shared DB.
const checkpointKeyPrefix = "chat:checkpoint:"

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerCheckpointer stores checkpoints in an embedded BadgerDB.
//
// # Description
//
// Conversation checkpoints are small JSON blobs with short lifetimes, so
// the store runs BadgerDB in memory by default. Low-latency access
// (~100µs) keeps checkpoint loads off the request's critical path.
type BadgerCheckpointer struct {
	db *badger.DB
}

// NewBadgerCheckpointer opens an in-memory BadgerDB checkpoint store.
//
// # Outputs
//
//   - *BadgerCheckpointer: Ready for use. Caller must Close() on shutdown.
//   - error: Non-nil if the database cannot be opened.
func NewBadgerCheckpointer() (*BadgerCheckpointer, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: slog.Default()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return &BadgerCheckpointer{db: db}, nil
}

// NewBadgerCheckpointerAt opens a disk-backed checkpoint store at path.
// Checkpoints then survive restarts at the cost of disk I/O.
func NewBadgerCheckpointerAt(path string) (*BadgerCheckpointer, error) {
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: slog.Default()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store at %s: %w", path, err)
	}
	return &BadgerCheckpointer{db: db}, nil
}

func checkpointKey(threadID string) []byte {
	return []byte(checkpointKeyPrefix + threadID)
}

// Save stores the checkpoint blob for a thread.
func (c *BadgerCheckpointer) Save(_ context.Context, threadID string, blob []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(threadID), blob)
	})
	if err != nil {
		return fmt.Errorf("checkpoint save for thread %q: %w", threadID, err)
	}
	return nil
}

// Load retrieves a thread's checkpoint, reporting absence without error.
func (c *BadgerCheckpointer) Load(_ context.Context, threadID string) ([]byte, bool, error) {
	var blob []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(threadID))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint load for thread %q: %w", threadID, err)
	}
	return blob, true, nil
}

// Delete removes a thread's checkpoint.
func (c *BadgerCheckpointer) Delete(_ context.Context, threadID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey(threadID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("checkpoint delete for thread %q: %w", threadID, err)
	}
	return nil
}

// Close shuts down the underlying database.
func (c *BadgerCheckpointer) Close() error {
	return c.db.Close()
}

var _ Checkpointer = (*BadgerCheckpointer)(nil)
