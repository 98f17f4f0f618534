package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleRejectsOverBurst(t *testing.T) {
	// 1 token/s with burst 2: the first two requests in the same instant
	// pass, the third is shed.
	handler := Throttle(1, 2)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenders", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenders", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(HeaderRetryAfter))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TOO_MANY_REQUESTS", body.Error.Code)
}

func TestThrottleDisabledWhenRPSZero(t *testing.T) {
	handler := Throttle(0, 0)(okHandler())

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenders", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestThrottleDefaultsBurstFromRPS(t *testing.T) {
	// burst < 1 falls back to int(rps).
	handler := Throttle(3, 0)(okHandler())

	allowed := 0
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenders", nil))
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.GreaterOrEqual(t, allowed, 3)
	assert.Less(t, allowed, 10)
}
