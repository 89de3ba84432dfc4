// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads orchestrator configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all orchestrator configuration.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	CORS struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	} `yaml:"cors"`
	RateLimit struct {
		MaxRequests   int           `yaml:"max_requests"`
		Window        time.Duration `yaml:"window"`
		MaxIdentities int           `yaml:"max_identities"`
	} `yaml:"rate_limit"`
	Conversation struct {
		TTL           time.Duration `yaml:"ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		MaxThreads    int           `yaml:"max_threads"`
	} `yaml:"conversation"`
	Model struct {
		SystemPrompt string `yaml:"system_prompt"`
	} `yaml:"model"`
	Tracing struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"tracing"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
//
// # Description
//
// The file is optional; a missing file yields a default configuration.
// Environment variables take precedence over file values:
//
//	AT_HOST, AT_PORT        server bind address
//	AT_ALLOWED_ORIGINS      comma-separated CORS origins
//	AT_SYSTEM_PROMPT        system directive override
//	OTEL_EXPORTER_OTLP_ENDPOINT  trace export target
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("AT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AT_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("AT_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitAndTrim(v)
		cfg.CORS.AllowCredentials = true
	}
	if v := os.Getenv("AT_SYSTEM_PROMPT"); v != "" {
		cfg.Model.SystemPrompt = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}

	// Defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8888
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Any origin may call the API unless a deployment narrows it.
		// Browsers ignore credentials under the wildcard anyway.
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 10
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 60 * time.Second
	}
	if cfg.Conversation.TTL == 0 {
		cfg.Conversation.TTL = 3600 * time.Second
	}
	if cfg.Conversation.SweepInterval == 0 {
		cfg.Conversation.SweepInterval = 600 * time.Second
	}
	if cfg.Conversation.MaxThreads == 0 {
		cfg.Conversation.MaxThreads = 200
	}

	return cfg, nil
}

// Addr returns the server bind address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if c.Conversation.TTL <= 0 {
		return fmt.Errorf("conversation.ttl must be positive")
	}
	if c.Conversation.MaxThreads < 1 {
		return fmt.Errorf("conversation.max_threads must be positive")
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
