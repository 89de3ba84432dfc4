// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// CORS Middleware
// =============================================================================

// CORSConfig holds cross-origin settings for the browser frontend.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API. The
	// wildcard "*" allows any origin (credentials are then disabled by
	// the browser regardless of AllowCredentials).
	AllowedOrigins []string

	// AllowCredentials permits cookies and authorization headers.
	AllowCredentials bool
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
	}
}

// CORS returns Gin middleware applying the cross-origin policy.
//
// # Description
//
// Echoes the request origin when it is allowed, answers preflight
// OPTIONS requests with 204, and otherwise passes through. Streaming
// responses need no special handling here; the headers are set before
// the handler starts writing.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			header := c.Writer.Header()
			if allowAll {
				header.Set("Access-Control-Allow-Origin", "*")
			} else {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Vary", "Origin")
			}
			if cfg.AllowCredentials && !allowAll {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
