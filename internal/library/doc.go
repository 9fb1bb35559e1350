// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

// Package library serves media metadata, watch history and explicit
// feedback from a local JSON library file. It backs the engine's
// MediaLookup, FeedbackStore and history collaborators in the default
// single-user deployment, where the library file is maintained by an
// external export tool.
package library
