// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package slog wraps logrus behind a small leveled facade
// (Noticef/Warnf/Errorf/Tracef/Fatalf) plus structured fields, so callers
// never import logrus directly.
package slog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the facade libs/unit, libs/restarter, and internal/manager code
// against, rather than logrus.Entry directly.
type Logger interface {
	Noticef(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Tracef(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to stderr at level, formatted the way a
// long-running daemon wants: full timestamps, no color autodetection
// surprises when stderr isn't a tty.
func New(level logrus.Level) Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logger{entry: logrus.NewEntry(base)}
}

// Noticef logs at Info level; s16d has no distinct "notice" level in
// logrus, so it's folded into Info the way the rest of the pack does.
func (l *logger) Noticef(format string, args ...interface{}) { l.entry.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})   { l.entry.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{})  { l.entry.Errorf(format, args...) }
func (l *logger) Tracef(format string, args ...interface{})  { l.entry.Tracef(format, args...) }
func (l *logger) Fatalf(format string, args ...interface{})  { l.entry.Fatalf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}
