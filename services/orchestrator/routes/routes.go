// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/middleware"
)

// SetupRoutes wires the orchestrator's endpoints onto the router.
//
// # Description
//
// The chat endpoint lives under /api and is the only rate-limited
// surface. Health and metrics stay outside the group so probes and
// scrapers are never throttled.
func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler, limiter *middleware.Limiter) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", middleware.RateLimit(limiter))
	{
		api.POST("/chat", chat.HandleChatStream)
	}
}
