// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides Gin middleware for the orchestrator:
// per-client rate limiting and CORS.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/observability"
)

// =============================================================================
// Sliding-Window Rate Limiter
// =============================================================================

const (
	// DefaultMaxRequests is the number of requests allowed per window.
	DefaultMaxRequests = 10

	// DefaultWindow is the sliding window length.
	DefaultWindow = 60 * time.Second

	// DefaultMaxIdentities caps the number of tracked client identities
	// so the limiter's memory cannot grow without bound.
	DefaultMaxIdentities = 10000
)

// LimiterConfig holds rate limiter settings.
type LimiterConfig struct {
	// MaxRequests per window. Zero means DefaultMaxRequests.
	MaxRequests int

	// Window length. Zero means DefaultWindow.
	Window time.Duration

	// MaxIdentities caps tracked identities. Zero means
	// DefaultMaxIdentities.
	MaxIdentities int
}

// Limiter is a per-identity sliding-window rate limiter.
//
// # Description
//
// Tracks request timestamps per client identity. On each admission
// check, timestamps older than the window are pruned first, then the
// request is admitted only if fewer than MaxRequests remain. Admitted
// requests record their timestamp; rejected requests do not, so a
// hammering client is not penalized beyond the window.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex guards the
// table; admission is O(window size) per identity.
type Limiter struct {
	mu            sync.Mutex
	requests      map[string][]time.Time
	maxRequests   int
	window        time.Duration
	maxIdentities int
}

// NewLimiter creates a sliding-window limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	maxIdentities := cfg.MaxIdentities
	if maxIdentities <= 0 {
		maxIdentities = DefaultMaxIdentities
	}
	return &Limiter{
		requests:      make(map[string][]time.Time),
		maxRequests:   maxRequests,
		window:        window,
		maxIdentities: maxIdentities,
	}
}

// Admit decides whether a request from identity at instant now may
// proceed, recording it if so.
//
// # Inputs
//
//   - identity: Client identity (normally the remote IP).
//   - now: The request instant. Injected for testability.
//
// # Outputs
//
//   - bool: True if the request is admitted.
func (l *Limiter) Admit(identity string, now time.Time) bool {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Prune before checking so a full window from a minute ago cannot
	// block a fresh request.
	stamps := l.requests[identity]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) == 0 {
		delete(l.requests, identity)
	} else {
		l.requests[identity] = kept
	}

	if len(kept) >= l.maxRequests {
		return false
	}

	if _, tracked := l.requests[identity]; !tracked && len(l.requests) >= l.maxIdentities {
		// Table full of active identities. Drop every fully idle entry
		// before giving up; refusing new identities outright would let
		// stale entries deny service indefinitely.
		for id, ts := range l.requests {
			if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
				delete(l.requests, id)
			}
		}
		if len(l.requests) >= l.maxIdentities {
			slog.Warn("rate limiter identity table full, rejecting new identity",
				"identities", len(l.requests))
			return false
		}
	}

	l.requests[identity] = append(kept, now)
	return true
}

// Window reports the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// MaxRequests reports the configured per-window request cap.
func (l *Limiter) MaxRequests() int { return l.maxRequests }

// =============================================================================
// Gin Middleware
// =============================================================================

// RateLimit returns Gin middleware enforcing the limiter on each
// request.
//
// # Description
//
// Identifies clients by ClientIP (honoring trusted proxy headers per
// Gin's configuration). Rejected requests receive 429 with a JSON
// detail body and the handler chain is aborted.
func RateLimit(limiter *Limiter) gin.HandlerFunc {
	detail := fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %d seconds.",
		limiter.MaxRequests(), int(limiter.Window().Seconds()))

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if !limiter.Admit(identity, time.Now()) {
			slog.Warn("request rate limited", "client_ip", identity, "path", c.Request.URL.Path)
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordRejection()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				datatypes.ErrorResponse{Detail: detail})
			return
		}
		c.Next()
	}
}
