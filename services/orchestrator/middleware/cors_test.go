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
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter(cfg CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(cfg))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func doCORSRequest(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestCORS_DefaultAllowsAnyOrigin tests the wildcard default: any caller
// gets the wildcard allow header and no credentials header.
func TestCORS_DefaultAllowsAnyOrigin(t *testing.T) {
	router := newCORSRouter(DefaultCORSConfig())

	rec := doCORSRequest(router, http.MethodGet, "https://anywhere.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard policy must not advertise credentials")
	}
}

// TestCORS_ExplicitOriginsAreEchoed tests the narrowed policy.
func TestCORS_ExplicitOriginsAreEchoed(t *testing.T) {
	router := newCORSRouter(CORSConfig{
		AllowedOrigins:   []string{"https://app.example"},
		AllowCredentials: true,
	})

	rec := doCORSRequest(router, http.MethodGet, "https://app.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q, want the echoed origin", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("explicit origin policy should allow credentials")
	}

	rec = doCORSRequest(router, http.MethodGet, "https://evil.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

// TestCORS_PreflightShortCircuits tests the OPTIONS path.
func TestCORS_PreflightShortCircuits(t *testing.T) {
	router := newCORSRouter(DefaultCORSConfig())

	rec := doCORSRequest(router, http.MethodOptions, "https://anywhere.example")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 && rec.Body.String() == "pong" {
		t.Error("preflight must not reach the handler")
	}
}
