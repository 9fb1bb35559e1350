// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/metrics"
)

// BadgerStore implements Store using BadgerDB for durable local storage.
// Suitable for production use with persistence across restarts.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// BadgerOptions configures the on-disk store.
type BadgerOptions struct {
	// Dir is the database directory. Empty means in-memory (tests only).
	Dir string

	// SyncWrites forces fsync on every write. Slower but safest for a
	// profile store mutated on every feedback event.
	SyncWrites bool
}

// NewBadgerStore opens a BadgerDB-backed store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBadgerStore(opts BadgerOptions, logger zerolog.Logger) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	bopts = bopts.WithSyncWrites(opts.SyncWrites)
	bopts = bopts.WithLogger(nil) // badger's own logger is too chatty; we log errors ourselves
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.StoreOperations.WithLabelValues("get", "error").Inc()
		}
		return nil, err
	}

	metrics.StoreOperations.WithLabelValues("get", "ok").Inc()
	return value, nil
}

// Set stores value under key.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("set", "error").Inc()
		return err
	}

	metrics.StoreOperations.WithLabelValues("set", "ok").Inc()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.StoreOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC runs badger value-log garbage collection until there is nothing
// left to collect. Intended to be called periodically by a supervised
// background service.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// GCInterval is the default interval between value-log GC passes.
const GCInterval = 10 * time.Minute
