// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package unixsocket is the real readiness.Socket: a SOCK_DGRAM unix socket
// with SO_PASSCRED enabled, so every datagram's sender pid can be read back
// out of its ancillary data the way systemd's sd_notify listener does.
// golang.org/x/sys/unix is used directly because net.UnixConn exposes no
// way to read SCM_CREDENTIALS ancillary data (see DESIGN.md).
package unixsocket

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lf-edge/s16d/internal/slog"
	"github.com/lf-edge/s16d/libs/depgraph"
)

// PIDResolver maps a reporting process's pid to the unit path it belongs
// to. internal/manager supplies this from the proctrack/unit bookkeeping
// it already maintains.
type PIDResolver func(pid int) (depgraph.Path, bool)

// Socket is the production readiness.Socket.
type Socket struct {
	path     string
	fd       int
	resolve  PIDResolver
	log      slog.Logger
	notifies chan depgraph.Path
	done     chan struct{}
}

// New binds a SOCK_DGRAM unix socket at path (removing any stale socket
// file first) and starts the receive loop.
func New(path string, resolve PIDResolver, log slog.Logger) (*Socket, error) {
	if log == nil {
		log = slog.New(4)
	}
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("unixsocket: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PASSCRED, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("unixsocket: SO_PASSCRED: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("unixsocket: bind %s: %w", path, err)
	}

	s := &Socket{
		path:     path,
		fd:       fd,
		resolve:  resolve,
		log:      log,
		notifies: make(chan depgraph.Path, 16),
		done:     make(chan struct{}),
	}
	go s.recvLoop()
	return s, nil
}

func (s *Socket) recvLoop() {
	defer close(s.notifies)
	buf := make([]byte, 512)
	oob := make([]byte, unix.CmsgSpace(unix.SizeofUcred))
	for {
		n, oobn, _, _, err := unix.Recvmsg(s.fd, buf, oob, 0)
		select {
		case <-s.done:
			return
		default:
		}
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				return
			}
			s.log.Warnf("unixsocket: recvmsg: %v", err)
			continue
		}
		if !isReadyMessage(buf[:n]) {
			continue
		}
		pid, ok := peerPID(oob[:oobn])
		if !ok {
			s.log.Warnf("unixsocket: READY message with no peer credentials, dropping")
			continue
		}
		path, ok := s.resolve(pid)
		if !ok {
			s.log.Warnf("unixsocket: READY from unrecognized pid %d, dropping", pid)
			continue
		}
		s.notifies <- path
	}
}

func isReadyMessage(b []byte) bool {
	const ready = "READY=1"
	if len(b) < len(ready) {
		return false
	}
	return string(b[:len(ready)]) == ready
}

func peerPID(oob []byte) (int, bool) {
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, false
	}
	for _, c := range cmsgs {
		if c.Header.Level != unix.SOL_SOCKET || c.Header.Type != unix.SCM_CREDENTIALS {
			continue
		}
		ucred, err := unix.ParseUnixCredentials(&c)
		if err != nil {
			return 0, false
		}
		return int(ucred.Pid), true
	}
	return 0, false
}

// Notifications implements readiness.Socket.
func (s *Socket) Notifications() <-chan depgraph.Path { return s.notifies }

// SocketPath implements readiness.Socket.
func (s *Socket) SocketPath() string { return s.path }

// Close implements readiness.Socket.
func (s *Socket) Close() error {
	close(s.done)
	err := unix.Close(s.fd)
	_ = os.Remove(s.path)
	return err
}
