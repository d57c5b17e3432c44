// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/lf-edge/s16d/internal/slog"
)

// Watcher reloads a config file on fsnotify write events.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	log     slog.Logger
	Changes chan Config
}

// WatchFile starts watching path's parent directory (editors typically
// replace a file via rename-into-place, which a direct file watch can
// miss) and reloads on a Write or Create event naming path.
func WatchFile(path string, log slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.New(4)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{path: path, fsw: fsw, log: log, Changes: make(chan Config, 1)}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.Changes)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warnf("config: reload %s failed, keeping previous: %v", w.path, err)
				continue
			}
			w.Changes <- cfg
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnf("config: watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
