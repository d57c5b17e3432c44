// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/lf-edge/s16d/internal/adminapi/client"
)

// newUnixTestServer binds handler to a temp unix socket and returns its
// path, the way cmd/s16d binds the real admin API.
func newUnixTestServer(t *testing.T, handler http.Handler) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "admin.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &httptest.Server{Listener: ln, Config: &http.Server{Handler: handler}}
	srv.Start()
	t.Cleanup(srv.Close)
	return path
}

func TestClientEnableRoundTrips(t *testing.T) {
	g := NewGomegaWithT(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/units/web/i0/enable", func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.Method).To(Equal(http.MethodPost))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"accepted":true,"path":"web:i0"}`))
	})

	sockPath := newUnixTestServer(t, mux)
	c := client.New(sockPath)

	resp, err := c.Enable(context.Background(), "web:i0")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(resp.Accepted).To(BeTrue())
	g.Expect(resp.Path).To(Equal("web:i0"))
}

func TestClientStatusNotFoundSurfacesServerError(t *testing.T) {
	g := NewGomegaWithT(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/units/web/i0", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such unit \"web:i0\""}`))
	})

	sockPath := newUnixTestServer(t, mux)
	c := client.New(sockPath)

	_, err := c.Status(context.Background(), "web:i0")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("no such unit"))
}

func TestClientListAndGraphDOT(t *testing.T) {
	g := NewGomegaWithT(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/units", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"vertex":{"path":"web:i0","variant":"Instance","state":"Online"}}]`))
	})
	mux.HandleFunc("/v1/graph", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("digraph G {}\n"))
	})

	sockPath := newUnixTestServer(t, mux)
	c := client.New(sockPath)

	list, err := c.List(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(list).To(HaveLen(1))
	g.Expect(list[0].Vertex.Path).To(Equal("web:i0"))

	dot, err := c.GraphDOT(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dot).To(ContainSubstring("digraph G"))
}
