package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendergate/tendergate/internal/ratelimit"
)

const testAdminToken = "secret-token"

func newTestAdminHandler() *AdminHandler {
	engine := &ratelimit.Engine{Store: ratelimit.NewStore(), Policy: ratelimit.NewPolicy(nil)}
	return NewAdminHandler(engine, testAdminToken)
}

func adminRequest(method, target, token, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAdminAuthorization(t *testing.T) {
	h := newTestAdminHandler()

	rec := httptest.NewRecorder()
	h.BlockHandler(rec, adminRequest(http.MethodPost, "/admin/block", "", `{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	rec = httptest.NewRecorder()
	h.BlockHandler(rec, adminRequest(http.MethodPost, "/admin/block", "wrong-token", `{}`))
	assert.Equal(t, http.StatusForbidden, rec.Code, "invalid token")
}

func TestAdminBlockHandler(t *testing.T) {
	h := newTestAdminHandler()

	body := `{"identity":"203.0.113.7","duration":"1h","reason":"scraper"}`
	rec := httptest.NewRecorder()
	h.BlockHandler(rec, adminRequest(http.MethodPost, "/admin/block", testAdminToken, body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "203.0.113.7", resp.Identity)
	assert.Equal(t, ratelimit.BlockedViolationFloor, resp.ViolationCount)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.BlockedUntil, time.Minute)

	// The block entry is visible to the limiter.
	req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	d := h.engine.Decide(req)
	assert.False(t, d.Allowed)
	assert.True(t, d.Penalized)
}

func TestAdminBlockHandlerValidation(t *testing.T) {
	h := newTestAdminHandler()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing identity", `{"duration":"1h"}`},
		{"missing duration", `{"identity":"203.0.113.7"}`},
		{"negative duration", `{"identity":"203.0.113.7","duration":"-5m"}`},
		{"non-duration", `{"identity":"203.0.113.7","duration":"soon"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.BlockHandler(rec, adminRequest(http.MethodPost, "/admin/block", testAdminToken, tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAdminResetHandler(t *testing.T) {
	h := newTestAdminHandler()
	h.engine.BlockIdentity("203.0.113.7", time.Hour, "test")
	h.engine.Drain()

	rec := httptest.NewRecorder()
	h.ResetHandler(rec, adminRequest(http.MethodPost, "/admin/reset", testAdminToken, `{"identity":"203.0.113.7"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Reset)

	// Second reset finds nothing.
	rec = httptest.NewRecorder()
	h.ResetHandler(rec, adminRequest(http.MethodPost, "/admin/reset", testAdminToken, `{"identity":"203.0.113.7"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Reset)

	rec = httptest.NewRecorder()
	h.ResetHandler(rec, adminRequest(http.MethodPost, "/admin/reset", testAdminToken, `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStatusHandler(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	h.engine.Decide(req)

	rec := httptest.NewRecorder()
	h.StatusHandler(rec, adminRequest(http.MethodGet, "/admin/status?key=203.0.113.7:default", testAdminToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, 1, resp.Count)
	require.NotNil(t, resp.WindowResetAt)

	rec = httptest.NewRecorder()
	h.StatusHandler(rec, adminRequest(http.MethodGet, "/admin/status?key=198.51.100.1:default", testAdminToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Found)

	rec = httptest.NewRecorder()
	h.StatusHandler(rec, adminRequest(http.MethodGet, "/admin/status", testAdminToken, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
