package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/tendergate/tendergate/internal/errors"
	"github.com/tendergate/tendergate/internal/metrics"
	"github.com/tendergate/tendergate/internal/ratelimit"
)

// AdminHandler exposes the manual governance surface: force-blocking an
// identity, resetting counters, and inspecting limiter state. All endpoints
// require the configured bearer token.
type AdminHandler struct {
	engine *ratelimit.Engine
	token  string
}

// NewAdminHandler creates an admin handler bound to the given engine.
func NewAdminHandler(engine *ratelimit.Engine, token string) *AdminHandler {
	return &AdminHandler{engine: engine, token: token}
}

// BlockRequest is the body for POST /admin/block.
type BlockRequest struct {
	Identity string `json:"identity"`
	Duration string `json:"duration"`
	Reason   string `json:"reason"`
}

// BlockResponse reports the applied block.
type BlockResponse struct {
	Identity       string    `json:"identity"`
	BlockedUntil   time.Time `json:"blocked_until"`
	ViolationCount int       `json:"violation_count"`
}

// ResetRequest is the body for POST /admin/reset. Key resets one counter
// (identity:category); Identity resets the identity's block entry.
type ResetRequest struct {
	Key      string `json:"key,omitempty"`
	Identity string `json:"identity,omitempty"`
}

// ResetResponse reports whether anything was removed.
type ResetResponse struct {
	Reset bool `json:"reset"`
}

// StatusResponse describes one limiter entry for GET /admin/status.
type StatusResponse struct {
	Key            string     `json:"key"`
	Found          bool       `json:"found"`
	Count          int        `json:"count,omitempty"`
	WindowResetAt  *time.Time `json:"window_reset_at,omitempty"`
	ViolationCount int        `json:"violation_count,omitempty"`
	PenaltyUntil   *time.Time `json:"penalty_until,omitempty"`
}

// BlockHandler applies an administrative block to an identity.
func (h *AdminHandler) BlockHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("Invalid JSON request body"))
		return
	}

	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("identity is required"))
		return
	}

	duration, err := time.ParseDuration(strings.TrimSpace(req.Duration))
	if err != nil || duration <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("duration must be a positive Go duration (e.g. \"1h\")"))
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual block"
	}

	entry := h.engine.BlockIdentity(identity, duration, reason)
	metrics.RecordBlock("admin")

	resp := BlockResponse{
		Identity:       identity,
		ViolationCount: entry.ViolationCount,
	}
	if entry.PenaltyUntil != nil {
		resp.BlockedUntil = *entry.PenaltyUntil
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResetHandler clears one counter key or an identity's block entry.
func (h *AdminHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("Invalid JSON request body"))
		return
	}

	key := strings.TrimSpace(req.Key)
	identity := strings.TrimSpace(req.Identity)

	var reset bool
	switch {
	case key != "":
		reset = h.engine.Store.Reset(key)
	case identity != "":
		reset = h.engine.Store.ResetIdentity(identity)
	default:
		respondWithError(w, r, apperrors.NewInvalidInputError("key or identity is required"))
		return
	}

	writeJSON(w, http.StatusOK, ResetResponse{Reset: reset})
}

// StatusHandler reports the limiter entry for ?key=identity:category.
func (h *AdminHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("key query parameter is required"))
		return
	}

	entry, found := h.engine.Store.Status(key)
	resp := StatusResponse{Key: key, Found: found}
	if found {
		resp.Count = entry.Count
		resp.ViolationCount = entry.ViolationCount
		resp.PenaltyUntil = entry.PenaltyUntil
		if !entry.WindowResetAt.IsZero() {
			resetAt := entry.WindowResetAt
			resp.WindowResetAt = &resetAt
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// authorize enforces the bearer token. Writes the error response itself and
// returns false when the request must not proceed.
func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		respondWithError(w, r, apperrors.NewUnauthorizedError("Missing bearer token"))
		return false
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.token)) != 1 {
		respondWithError(w, r, apperrors.NewForbiddenError("Invalid admin token"))
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
