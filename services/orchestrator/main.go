// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianTicker/services/agent"
	"github.com/AleutianAI/AleutianTicker/services/llm"
	"github.com/AleutianAI/AleutianTicker/services/marketdata"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/config"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/ttl"
	"github.com/AleutianAI/AleutianTicker/services/tools"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("ticker-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := os.Getenv("AT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Init the tracer (optional; skipped without a collector) ---
	if cfg.Tracing.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.Tracing.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTLP endpoint not set, tracing disabled")
	}

	metrics := observability.InitMetrics()

	checkpoints, err := conversation.NewBadgerCheckpointer()
	if err != nil {
		log.Fatalf("Failed to open the checkpoint store: %v", err)
	}
	defer checkpoints.Close()

	store := conversation.NewStore(checkpoints, conversation.StoreConfig{
		TTL:        cfg.Conversation.TTL,
		MaxThreads: cfg.Conversation.MaxThreads,
	})
	store.SetDeleteFailureHook(metrics.RecordSweepFailure)
	store.SetEvictHook(metrics.RecordEviction)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := ttl.NewSweeper(store, cfg.Conversation.SweepInterval)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("Failed to start the TTL sweeper: %v", err)
	}
	defer sweeper.Stop()

	log.Println("Configuring the LLM Client")
	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	provider := marketdata.NewYahooProvider(nil)
	registry := tools.NewRegistry(provider)

	var agentOpts []agent.Option
	if cfg.Model.SystemPrompt != "" {
		agentOpts = append(agentOpts, agent.WithSystemPrompt(cfg.Model.SystemPrompt))
	}
	runner := agent.New(llmClient, registry, checkpoints, agentOpts...)

	limiter := middleware.NewLimiter(middleware.LimiterConfig{
		MaxRequests:   cfg.RateLimit.MaxRequests,
		Window:        cfg.RateLimit.Window,
		MaxIdentities: cfg.RateLimit.MaxIdentities,
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("ticker-orchestrator"))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))

	chatHandler := handlers.NewChatHandler(runner, store)
	routes.SetupRoutes(router, chatHandler, limiter)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("Starting the orchestrator server", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("Shutting down the orchestrator server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	slog.Info("Orchestrator stopped cleanly")
}
