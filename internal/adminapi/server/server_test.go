// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/lf-edge/s16d/internal/adminapi/server"
	"github.com/lf-edge/s16d/internal/facade"
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/restarter"
)

var webPath = depgraph.Path{Service: "web", Instance: "i0"}

type stubManager struct {
	graph    *depgraph.Graph
	requests []stubRequest
}

type stubRequest struct {
	sub    restarter.SubType
	path   depgraph.Path
	reason depgraph.RestartOn
}

func (m *stubManager) RequestAdmin(sub restarter.SubType, path depgraph.Path, reason depgraph.RestartOn) {
	m.requests = append(m.requests, stubRequest{sub: sub, path: path, reason: reason})
}

func (m *stubManager) Facade() *facade.Facade {
	return facade.New(m.graph, nil)
}

func newStubManager() *stubManager {
	g := depgraph.NewGraph()
	b := depgraph.NewBuilder(g)
	b.InstallService(depgraph.ServiceDecl{
		Path:      depgraph.Path{Service: "web"},
		Instances: []depgraph.InstanceDecl{{Path: webPath}},
	})
	return &stubManager{graph: g}
}

func TestServerQueuesAdminDisable(t *testing.T) {
	g := NewGomegaWithT(t)

	mgr := newStubManager()
	s := server.New(mgr, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/units/web/i0/disable", "application/json", nil)
	g.Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	g.Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	g.Expect(mgr.requests).To(HaveLen(1))
	g.Expect(mgr.requests[0].sub).To(Equal(restarter.ADisable))
	g.Expect(mgr.requests[0].path).To(Equal(webPath))
}

func TestServerUnitStatusNotFound(t *testing.T) {
	g := NewGomegaWithT(t)

	mgr := newStubManager()
	s := server.New(mgr, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/units/nonexistent/i0")
	g.Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	g.Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
}

func TestServerUnitStatusFound(t *testing.T) {
	g := NewGomegaWithT(t)

	mgr := newStubManager()
	s := server.New(mgr, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/units/web/i0")
	g.Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
}

func TestServerGraphDOT(t *testing.T) {
	g := NewGomegaWithT(t)

	mgr := newStubManager()
	s := server.New(mgr, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/graph")
	g.Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
	g.Expect(resp.Header.Get("Content-Type")).To(Equal("text/vnd.graphviz"))
}
