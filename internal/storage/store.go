// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is the asynchronous key-value contract the engine persists through.
// Values are opaque byte slices; the engine owns the encoding.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// Key namespaces. One record per user per namespace.
const (
	ProfilePrefix   = "profile:"
	SnapshotPrefix  = "snapshots:"
	MigrationPrefix = "migration:"
)

// ProfileKey returns the storage key for a user's profile record.
func ProfileKey(userID string) string { return ProfilePrefix + userID }

// SnapshotKey returns the storage key for a user's snapshot ring.
func SnapshotKey(userID string) string { return SnapshotPrefix + userID }

// MigrationKey returns the storage key for a user's migration backup.
func MigrationKey(userID string) string { return MigrationPrefix + userID }
