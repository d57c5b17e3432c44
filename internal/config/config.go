// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package config loads s16d's daemon-level configuration (repository
// directory, readiness socket path, log level), hot-reloading it on
// fsnotify write events to its config file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is s16d's top-level daemon configuration.
type Config struct {
	// RepositoryDir is the directory fsrepo watches for service
	// declarations.
	RepositoryDir string `yaml:"repository_dir"`
	// NotifySocketPath is where the readiness socket is bound.
	NotifySocketPath string `yaml:"notify_socket_path"`
	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration s16d runs with absent a config file.
func Default() Config {
	return Config{
		RepositoryDir:    "/etc/s16d/services",
		NotifySocketPath: "/run/s16d/notify.sock",
		LogLevel:         "info",
	}
}

// Load reads path, overlaying it onto Default(); a missing file is not an
// error, matching the pack's "no config.yaml found, using defaults"
// convention.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
