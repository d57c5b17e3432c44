// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package server hosts the admin API (internal/adminapi) inside cmd/s16d:
// a chi router bound to a unix socket, routing admin verbs onto
// Manager.RequestAdmin and introspection reads onto Manager.Facade.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lf-edge/s16d/internal/adminapi"
	"github.com/lf-edge/s16d/internal/facade"
	"github.com/lf-edge/s16d/internal/slog"
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/restarter"
)

// Manager is the subset of *manager.Manager the admin API drives:
// queueing admin requests and reading the read-only facade. Declared here,
// rather than importing internal/manager's concrete type, so server can be
// unit-tested against a stub.
type Manager interface {
	RequestAdmin(sub restarter.SubType, path depgraph.Path, reason depgraph.RestartOn)
	Facade() *facade.Facade
}

// Server binds the admin API to a unix socket and serves it until Close.
type Server struct {
	log slog.Logger
	ln  net.Listener
	srv *http.Server
}

// New builds the chi router for mgr. Call Serve to start accepting
// connections.
func New(mgr Manager, log slog.Logger) *Server {
	if log == nil {
		log = slog.New(4)
	}
	r := chi.NewRouter()
	h := &handler{mgr: mgr, log: log}

	r.Route("/v1/units/{service}/{instance}", func(r chi.Router) {
		r.Post("/disable", h.adminVerb(restarter.ADisable))
		r.Post("/enable", h.adminVerb(restarter.AEnable))
		r.Post("/refresh", h.adminVerb(restarter.ARefresh))
		r.Get("/", h.unitStatus)
	})
	r.Get("/v1/units", h.listUnits)
	r.Get("/v1/graph", h.dotGraph)

	return &Server{log: log, srv: &http.Server{Handler: r}}
}

// Handler returns the underlying http.Handler, letting tests drive the
// router directly via httptest without binding a real socket.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve removes any stale socket file at path, binds a unix listener there,
// and serves the admin API on it until Close is called. Blocks until the
// listener is closed.
func (s *Server) Serve(path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Noticef("adminapi: serving on %s", path)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type handler struct {
	mgr Manager
	log slog.Logger
}

func (h *handler) pathParam(r *http.Request) (depgraph.Path, bool) {
	service := chi.URLParam(r, "service")
	instance := chi.URLParam(r, "instance")
	if service == "" {
		return depgraph.Path{}, false
	}
	if instance == adminapi.NoInstance {
		instance = ""
	}
	return depgraph.Path{Service: service, Instance: instance}, true
}

// adminVerb queues sub against the path named in the URL and replies 202.
// The note queue is asynchronous: this never blocks on the dependency
// graph actually reacting to the request.
func (h *handler) adminVerb(sub restarter.SubType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := h.pathParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "missing unit path")
			return
		}
		var req adminapi.AdminRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
				return
			}
		}
		h.mgr.RequestAdmin(sub, path, req.Reason)
		writeJSON(w, http.StatusAccepted, adminapi.AdminResponse{Accepted: true, Path: path.String()})
	}
}

func (h *handler) unitStatus(w http.ResponseWriter, r *http.Request) {
	path, ok := h.pathParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing unit path")
		return
	}
	f := h.mgr.Facade()
	vs, ok := f.Vertex(path)
	if !ok {
		writeError(w, http.StatusNotFound, "no such unit "+path.String())
		return
	}
	us, _ := f.Unit(path)
	writeJSON(w, http.StatusOK, statusView(vs, us))
}

func (h *handler) listUnits(w http.ResponseWriter, r *http.Request) {
	f := h.mgr.Facade()
	byPath := make(map[string]facade.UnitSnapshot, len(f.Units()))
	for _, us := range f.Units() {
		byPath[us.Path.String()] = us
	}
	views := make([]adminapi.StatusView, 0, len(f.Vertices()))
	for _, vs := range f.Vertices() {
		views = append(views, statusView(vs, byPath[vs.Path.String()]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) dotGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.mgr.Facade().DotGraph()))
}

func statusView(vs facade.VertexSnapshot, us facade.UnitSnapshot) adminapi.StatusView {
	history := make([]string, 0, len(us.History))
	for _, e := range us.History {
		result := "ok"
		if e.Abnormal {
			result = "abnormal"
		}
		history = append(history, e.Method.String()+" pid="+strconv.Itoa(e.PID)+" "+result)
	}
	return adminapi.StatusView{
		Vertex: adminapi.VertexView{
			Path:      vs.Path.String(),
			Variant:   vs.Variant.String(),
			State:     vs.State.String(),
			IsEnabled: vs.IsEnabled,
			IsSetup:   vs.IsSetup,
			ToOffline: vs.ToOffline,
			ToDisable: vs.ToDisable,
		},
		Unit: adminapi.UnitView{
			Path:    us.Path.String(),
			Type:    us.Type.String(),
			State:   us.State.String(),
			Target:  us.Target.String(),
			FailCnt: us.FailCnt,
			History: history,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, adminapi.ErrorResponse{Error: msg})
}
