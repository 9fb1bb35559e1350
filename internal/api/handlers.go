// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ayasato/oneiro/internal/config"
	"github.com/ayasato/oneiro/internal/dream"
	"github.com/ayasato/oneiro/internal/logging"
	"github.com/ayasato/oneiro/internal/validation"
)

// Service is the engine surface the API depends on.
type Service interface {
	Recommend(ctx context.Context, userID string, candidates []dream.Candidate, topK int) ([]dream.ScoredCandidate, error)
	ProcessFeedback(ctx context.Context, userID string, event dream.FeedbackEvent) (*dream.Profile, error)
	Bootstrap(ctx context.Context, userID string) (*dream.Profile, error)
	Reset(ctx context.Context, userID string) (*dream.Profile, error)
	Delete(ctx context.Context, userID string) error
	Revert(ctx context.Context, userID string) (*dream.Profile, error)
	Profile(ctx context.Context, userID string) (*dream.Profile, error)
	Insights(ctx context.Context, userID string) (dream.ProfileInsights, error)
	Status(ctx context.Context, userID string) (dream.EngineStatus, error)
}

// Handler implements the HTTP handlers.
type Handler struct {
	cfg     *config.Config
	service Service
}

// NewHandler creates handlers over the given service.
func NewHandler(cfg *config.Config, service Service) *Handler {
	return &Handler{cfg: cfg, service: service}
}

// maxBodyBytes caps request bodies; candidate lists are the largest input.
const maxBodyBytes = 4 << 20

// apiResponse is the uniform response envelope.
type apiResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Error     *apiError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// userID resolves the target user: query parameter ?user= if present,
// otherwise the configured single-user default.
func (h *Handler) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user"); u != "" {
		return u
	}
	return h.cfg.UserID
}

// RecommendationsRequest is the scoring request body.
type RecommendationsRequest struct {
	Candidates []dream.Candidate `json:"candidates" validate:"required,min=1,max=2000"`
	TopK       int               `json:"top_k" validate:"min=0,max=500"`
}

// Recommendations scores the posted candidates and returns them ranked.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if !h.decode(w, r, &req) {
		return
	}

	scored, err := h.service.Recommend(r.Context(), h.userID(r), req.Candidates, req.TopK)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RECOMMEND_FAILED", "scoring failed", err)
		return
	}

	respondJSON(w, http.StatusOK, scored)
}

// FeedbackRequest is the feedback submission body.
type FeedbackRequest struct {
	MediaID int      `json:"media_id" validate:"required,min=1"`
	Type    string   `json:"type" validate:"omitempty,oneof=like dislike"`
	Reasons []string `json:"reasons" validate:"max=10"`

	// Prediction optionally carries the score the client displayed. When
	// absent the engine falls back to its own recommendation-time cache.
	Prediction *dream.Prediction `json:"prediction,omitempty"`

	// Snapshot optionally carries the media attributes the feedback was
	// given against, enabling rule effects without a metadata lookup.
	Snapshot *dream.MediaSnapshot `json:"snapshot,omitempty"`
}

// Feedback applies one feedback event to the profile.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	reasons := make([]dream.Reason, 0, len(req.Reasons))
	for _, raw := range req.Reasons {
		reason := dream.Reason(raw)
		if !dream.KnownReason(reason) {
			respondError(w, http.StatusBadRequest, "UNKNOWN_REASON", "unknown feedback reason: "+raw, nil)
			return
		}
		reasons = append(reasons, reason)
	}

	event := dream.FeedbackEvent{
		MediaID:    req.MediaID,
		Type:       dream.FeedbackType(req.Type),
		Reasons:    reasons,
		Timestamp:  time.Now(),
		Prediction: req.Prediction,
		Media:      req.Snapshot,
	}

	profile, err := h.service.ProcessFeedback(r.Context(), h.userID(r), event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "FEEDBACK_FAILED", "feedback processing failed", err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// Profile returns the stored profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Profile(r.Context(), h.userID(r))
	if err != nil {
		if errors.Is(err, dream.ErrNoProfile) {
			respondError(w, http.StatusNotFound, "NO_PROFILE", "no profile exists for this user", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_FAILED", "profile load failed", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Insights returns the display digest of the profile.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	ins, err := h.service.Insights(r.Context(), h.userID(r))
	if err != nil {
		if errors.Is(err, dream.ErrNoProfile) {
			respondError(w, http.StatusNotFound, "NO_PROFILE", "no profile exists for this user", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INSIGHTS_FAILED", "insights build failed", err)
		return
	}

	respondJSON(w, http.StatusOK, ins)
}

// Bootstrap rebuilds the profile from watch history and feedback.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Bootstrap(r.Context(), h.userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BOOTSTRAP_FAILED", "profile bootstrap failed", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Reset replaces the profile with cold-start defaults.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Reset(r.Context(), h.userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RESET_FAILED", "profile reset failed", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Revert restores the pre-migration backup profile.
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Revert(r.Context(), h.userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "REVERT_FAILED", "profile revert failed", err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "NO_BACKUP", "no pre-migration backup exists for this user", nil)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// DeleteProfile removes the profile and all its stored state.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), h.userID(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "DELETE_FAILED", "profile delete failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Status reports the engine's operational summary.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), h.userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STATUS_FAILED", "status failed", err)
		return
	}

	respondJSON(w, http.StatusOK, st)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness to serve traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Status(r.Context(), h.cfg.UserID); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "storage unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decode reads, parses and validates a JSON request body. Writes the error
// response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", err)
		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}

	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&apiResponse{
		Status:    "ok",
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		logging.Error().Err(err).Msg("marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("write response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("api error")
	}

	w.Header().Set("Content-Type", "application/json")
	body, marshalErr := json.Marshal(&apiResponse{
		Status:    "error",
		Error:     &apiError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, writeErr := w.Write(body); writeErr != nil {
		logging.Error().Err(writeErr).Msg("write error response")
	}
}
