// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lf-edge/s16d/internal/adminapi"
	"github.com/lf-edge/s16d/internal/adminapi/server"
	"github.com/lf-edge/s16d/internal/config"
	"github.com/lf-edge/s16d/internal/manager"
	"github.com/lf-edge/s16d/internal/proctrack/unixtracker"
	"github.com/lf-edge/s16d/internal/readiness/unixsocket"
	"github.com/lf-edge/s16d/internal/repository/fsrepo"
	"github.com/lf-edge/s16d/internal/slog"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("s16d: load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := slog.New(level)

	repo, err := fsrepo.New(cfg.RepositoryDir, log)
	if err != nil {
		return fmt.Errorf("s16d: open repository %s: %w", cfg.RepositoryDir, err)
	}
	if err := repo.Watch(); err != nil {
		return fmt.Errorf("s16d: watch repository %s: %w", cfg.RepositoryDir, err)
	}
	defer repo.Close()

	// unixtracker needs a Sink, but the only Sink (the Manager) needs a
	// Tracker to be constructed first; wire the real sink in once both
	// exist (mirrors Manager.SetReadiness's two-phase construction below).
	tracker := unixtracker.New(nil, log)
	tracker.NotifySocketPath = cfg.NotifySocketPath

	mgr, err := manager.New(manager.Config{
		Repository: repo,
		Tracker:    tracker,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("s16d: construct manager: %w", err)
	}
	tracker.SetSink(mgr)

	readySocket, err := unixsocket.New(cfg.NotifySocketPath, mgr.ResolvePID, log)
	if err != nil {
		return fmt.Errorf("s16d: bind readiness socket %s: %w", cfg.NotifySocketPath, err)
	}
	defer readySocket.Close()
	mgr.SetReadiness(readySocket)

	if err := mgr.Build(); err != nil {
		return fmt.Errorf("s16d: build dependency graph: %w", err)
	}

	adminSrv := server.New(mgr, log)
	go func() {
		if err := adminSrv.Serve(adminapi.DefaultSocketPath); err != nil {
			log.Errorf("s16d: admin API stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.Start()
	log.Noticef("s16d: started, repository=%s", cfg.RepositoryDir)

	runErr := mgr.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminSrv.Close(shutdownCtx); err != nil {
		log.Warnf("s16d: admin API shutdown: %v", err)
	}

	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("s16d: event loop: %w", runErr)
	}
	return nil
}
