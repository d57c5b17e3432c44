// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/lf-edge/s16d/internal/adminapi/client"
)

// notFoundError wraps an admin API 404, letting Execute map it to
// ExitCodeNotFound.
type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return fmt.Sprintf("no such unit %q", e.path) }

// unreachableError wraps a failure to dial the admin socket at all,
// letting Execute map it to ExitCodeUnreachable.
type unreachableError struct{ cause error }

func (e *unreachableError) Error() string { return fmt.Sprintf("s16d unreachable: %v", e.cause) }
func (e *unreachableError) Unwrap() error { return e.cause }

func newClient() *client.Client {
	return client.New(socketPath)
}

// classify turns a client-layer error into notFoundError/unreachableError
// when the underlying cause matches, so every command can just return
// client errors straight through and let Execute pick the exit code.
func classify(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return &unreachableError{cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &unreachableError{cause: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
		return &unreachableError{cause: err}
	}
	if strings.Contains(err.Error(), "no such unit") {
		return &notFoundError{path: path}
	}
	return err
}
