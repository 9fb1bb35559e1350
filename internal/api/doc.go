// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

/*
Package api provides the HTTP surface of the personalization engine.

Routes are built with the Chi router. All business endpoints live under
/api/v1 and share a middleware stack of request IDs, panic recovery,
optional CORS, per-IP rate limiting and Prometheus request metrics:

	POST   /api/v1/recommendations    score a candidate list, ranked
	POST   /api/v1/feedback           apply one feedback event
	GET    /api/v1/profile            fetch the stored profile
	DELETE /api/v1/profile            delete the profile and its state
	GET    /api/v1/profile/insights   human-readable profile digest
	POST   /api/v1/profile/bootstrap  rebuild from history and feedback
	POST   /api/v1/profile/reset      replace with cold-start defaults
	POST   /api/v1/profile/revert     restore pre-migration backup
	GET    /api/v1/status             engine operational summary

Operational endpoints sit at the root: /healthz (liveness), /readyz
(readiness, checks storage) and /metrics (Prometheus).

The engine serves a single local user by default; every endpoint accepts
an optional ?user= query parameter for multi-profile setups.

Responses use a uniform envelope with status, data, optional error and a
server timestamp. Request bodies are validated with go-playground/validator
before reaching the engine.
*/
package api
