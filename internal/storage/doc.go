// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

// Package storage provides the key-value durability layer for the
// personalization engine.
//
// The engine persists one record per user and namespace:
//
//	profile:<userID>    current dream profile
//	snapshots:<userID>  rolling recovery snapshots (bounded ring)
//	migration:<userID>  pre-migration backup for rollback
//
// Two implementations are provided: BadgerStore for durable on-disk storage
// and MemoryStore for tests. Both are safe for concurrent use; serialization
// of read-modify-write cycles per user is the responsibility of the caller
// (see the dream package's per-user queue).
package storage
