package ratelimit

import (
	"strings"
	"time"
)

// Endpoint categories. The category becomes part of the counter key, so a
// caller's budget on one category never affects another.
const (
	CategoryAuth      = "auth"
	CategoryMutation  = "mutation"
	CategoryUpload    = "upload"
	CategorySensitive = "sensitive"
	CategoryDefault   = "default"
)

// DefaultPresets provides the anonymous-caller limits per category.
// Authenticated callers get a scaled quota, applied by Policy.Resolve.
var DefaultPresets = map[string]Config{
	CategoryAuth: {
		Window:      15 * time.Minute,
		MaxRequests: 10,
		Label:       CategoryAuth,
		Message:     "too many authentication attempts, please try again later",
	},
	CategoryMutation: {
		Window:      time.Minute,
		MaxRequests: 30,
		Label:       CategoryMutation,
		Message:     "too many requests, please slow down",
	},
	CategoryUpload: {
		Window:      time.Hour,
		MaxRequests: 20,
		Label:       CategoryUpload,
		Message:     "upload limit reached, please try again later",
	},
	CategorySensitive: {
		Window:      time.Hour,
		MaxRequests: 10,
		Label:       CategorySensitive,
		Message:     "limit reached for sensitive operations",
	},
	CategoryDefault: {
		Window:      time.Minute,
		MaxRequests: 60,
		Label:       CategoryDefault,
		Message:     "too many requests, please slow down",
	},
}

// Policy maps a request's path, method, and authentication state to a Config.
// Resolution is a pure function over fixed rules and is re-evaluated on every
// request, since it depends only on request attributes and not caller history.
type Policy struct {
	Presets map[string]Config
}

// NewPolicy returns a policy backed by the default presets, with per-category
// overrides applied on top.
func NewPolicy(overrides map[string]Config) *Policy {
	presets := make(map[string]Config, len(DefaultPresets))
	for name, preset := range DefaultPresets {
		presets[name] = preset
	}

	for name, override := range overrides {
		base, ok := presets[name]
		if !ok {
			continue
		}
		if override.Window > 0 {
			base.Window = override.Window
		}
		if override.MaxRequests > 0 {
			base.MaxRequests = override.MaxRequests
		}
		if strings.TrimSpace(override.Message) != "" {
			base.Message = override.Message
		}
		presets[name] = base
	}

	return &Policy{Presets: presets}
}

// Resolve returns the limit config for a request. Authentication scaling:
// auth and sensitive categories are flat, mutations get 5x, everything else
// gets 2x for authenticated callers.
func (p *Policy) Resolve(path string, method string, authenticated bool) Config {
	switch {
	case isAuthPath(path):
		return p.preset(CategoryAuth)
	case isSensitivePath(path):
		return p.preset(CategorySensitive)
	case isUploadPath(path):
		return p.scaled(CategoryUpload, authenticated, 2)
	case isMutatingMethod(method) && strings.HasPrefix(path, "/api/"):
		return p.scaled(CategoryMutation, authenticated, 5)
	default:
		return p.scaled(CategoryDefault, authenticated, 2)
	}
}

func (p *Policy) preset(name string) Config {
	if p != nil && p.Presets != nil {
		if cfg, ok := p.Presets[name]; ok {
			return cfg
		}
	}
	if cfg, ok := DefaultPresets[name]; ok {
		return cfg
	}
	return Config{Window: time.Minute, MaxRequests: 60, Label: CategoryDefault}
}

func (p *Policy) scaled(name string, authenticated bool, factor int) Config {
	cfg := p.preset(name)
	if authenticated && factor > 1 {
		cfg.MaxRequests *= factor
	}
	return cfg
}

func isMutatingMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

func isAuthPath(path string) bool {
	if strings.HasPrefix(path, "/api/auth/") || path == "/api/auth" {
		return true
	}
	switch path {
	case "/login", "/logout", "/api/login", "/api/logout", "/api/token/refresh":
		return true
	}
	return false
}

func isUploadPath(path string) bool {
	return strings.HasPrefix(path, "/api/uploads") ||
		strings.Contains(path, "/attachments")
}

// isSensitivePath matches operations that change the outcome of a tender:
// awarding and invoice approval. These stay on a flat, low quota regardless
// of authentication state.
func isSensitivePath(path string) bool {
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	return strings.HasSuffix(path, "/award") || strings.HasSuffix(path, "/approve")
}
