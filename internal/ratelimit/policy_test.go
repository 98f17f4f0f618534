package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyResolveCategories(t *testing.T) {
	p := NewPolicy(nil)

	cases := []struct {
		name          string
		path          string
		method        string
		authenticated bool
		wantLabel     string
		wantMax       int
	}{
		{"login", "/api/auth/login", http.MethodPost, false, CategoryAuth, 10},
		{"login authenticated stays flat", "/api/auth/login", http.MethodPost, true, CategoryAuth, 10},
		{"token refresh", "/api/token/refresh", http.MethodPost, true, CategoryAuth, 10},
		{"award", "/api/tenders/42/award", http.MethodPost, true, CategorySensitive, 10},
		{"invoice approval", "/api/invoices/7/approve", http.MethodPost, true, CategorySensitive, 10},
		{"upload anonymous", "/api/uploads", http.MethodPost, false, CategoryUpload, 20},
		{"upload authenticated", "/api/uploads", http.MethodPost, true, CategoryUpload, 40},
		{"attachments", "/api/tenders/42/attachments", http.MethodPost, false, CategoryUpload, 20},
		{"mutation anonymous", "/api/tenders", http.MethodPost, false, CategoryMutation, 30},
		{"mutation authenticated", "/api/tenders", http.MethodPost, true, CategoryMutation, 150},
		{"delete is a mutation", "/api/tenders/42", http.MethodDelete, false, CategoryMutation, 30},
		{"read anonymous", "/api/tenders", http.MethodGet, false, CategoryDefault, 60},
		{"read authenticated", "/api/tenders", http.MethodGet, true, CategoryDefault, 120},
		{"non-api post", "/webhooks/ping", http.MethodPost, false, CategoryDefault, 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := p.Resolve(tc.path, tc.method, tc.authenticated)
			assert.Equal(t, tc.wantLabel, cfg.Label)
			assert.Equal(t, tc.wantMax, cfg.MaxRequests)
		})
	}
}

func TestPolicyOverrides(t *testing.T) {
	p := NewPolicy(map[string]Config{
		CategoryAuth: {Window: 5 * time.Minute, MaxRequests: 3},
		"bogus":      {Window: time.Minute, MaxRequests: 1},
	})

	cfg := p.Resolve("/login", http.MethodPost, false)
	assert.Equal(t, 5*time.Minute, cfg.Window)
	assert.Equal(t, 3, cfg.MaxRequests)
	assert.NotEmpty(t, cfg.Message, "override keeps the preset message")

	// Unknown preset names are ignored, other categories untouched.
	cfg = p.Resolve("/api/tenders", http.MethodGet, false)
	assert.Equal(t, 60, cfg.MaxRequests)
}

func TestPolicyNilReceiverFallsBack(t *testing.T) {
	var p *Policy
	cfg := p.preset(CategoryDefault)
	assert.Equal(t, 60, cfg.MaxRequests)
}
