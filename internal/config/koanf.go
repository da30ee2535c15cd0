// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulseboard/config.yaml",
	"/etc/pulseboard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/pulseboard.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			Enabled:             true,
			EmbeddedServer:      true,
			URL:                 "nats://127.0.0.1:4222",
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20, // 256MB
			MaxStore:            2 << 30,   // 2GB
			StreamRetentionDays: 7,
			DurableName:         "metric-collector",
			ReconnectWait:       2 * time.Second,
			CloseTimeout:        10 * time.Second,
		},
		Dashboard: DashboardConfig{
			LaunchDate:       "2025-10-01",
			RecentEventLimit: 50,
			UptimeInterval:   time.Hour,
		},
		Tracking: TrackingConfig{
			Enabled:         true,
			EventsPerMinute: 60,
			Burst:           20,
		},
		WAL: WALConfig{
			Enabled:       true,
			Dir:           "/data/wal",
			FlushInterval: 15 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "",
			AdminPassword:   "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// SERVER_PORT -> server.port, DASHBOARD_LAUNCH_DATE -> dashboard.launch_date
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// CORS origins arrive as a comma-separated string from env.
	if origins := k.String("security.cors_origins"); origins != "" && strings.Contains(origins, ",") {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("security.cors_origins", parts); err != nil {
			return nil, fmt.Errorf("split cors_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// configSections maps environment variable prefixes to koanf sections.
var configSections = []string{
	"SERVER", "DATABASE", "NATS", "DASHBOARD", "TRACKING", "WAL", "SECURITY", "LOGGING",
}

// envTransformFunc maps environment variable names to koanf paths. Variables
// outside the known sections are ignored so unrelated process environment
// never leaks into the config tree.
func envTransformFunc(s string) string {
	for _, section := range configSections {
		prefix := section + "_"
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return strings.ToLower(section) + "." + strings.ToLower(s[len(prefix):])
		}
	}
	return ""
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
