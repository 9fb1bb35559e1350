// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import "time"

// nowFunc is indirected so tests can pin the clock for the recency nudge.
//
//nolint:gochecknoglobals // test seam
var nowFunc = time.Now
