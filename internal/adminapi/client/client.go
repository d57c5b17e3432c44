// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package client is cmd/s16adm's transport to a running s16d's admin API:
// an http.Client dialing the daemon's unix socket instead of a TCP address.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lf-edge/s16d/internal/adminapi"
	"github.com/lf-edge/s16d/libs/depgraph"
)

// Client talks to one daemon's admin API over its unix socket.
type Client struct {
	http *http.Client
}

// New returns a Client dialing the unix socket at socketPath for every
// request, regardless of the URL host (the URL is a fixed placeholder,
// baseURL, and the connection only ever goes to socketPath).
func New(socketPath string) *Client {
	dialer := &net.Dialer{}
	return &Client{
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

const baseURL = "http://s16d"

// Disable queues an A_DISABLE admin request for path.
func (c *Client) Disable(ctx context.Context, path string) (adminapi.AdminResponse, error) {
	return c.postVerb(ctx, path, "disable")
}

// Enable queues an A_ENABLE admin request for path.
func (c *Client) Enable(ctx context.Context, path string) (adminapi.AdminResponse, error) {
	return c.postVerb(ctx, path, "enable")
}

// Refresh queues an A_REFRESH admin request for path.
func (c *Client) Refresh(ctx context.Context, path string) (adminapi.AdminResponse, error) {
	return c.postVerb(ctx, path, "refresh")
}

func (c *Client) postVerb(ctx context.Context, path, verb string) (adminapi.AdminResponse, error) {
	service, instance := splitPath(path)
	url := fmt.Sprintf("%s/v1/units/%s/%s/%s", baseURL, service, instance, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return adminapi.AdminResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out adminapi.AdminResponse
	if err := c.do(req, &out); err != nil {
		return adminapi.AdminResponse{}, err
	}
	return out, nil
}

// Status fetches a single unit's combined vertex/machine view.
func (c *Client) Status(ctx context.Context, path string) (adminapi.StatusView, error) {
	service, instance := splitPath(path)
	url := fmt.Sprintf("%s/v1/units/%s/%s", baseURL, service, instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return adminapi.StatusView{}, err
	}
	var out adminapi.StatusView
	if err := c.do(req, &out); err != nil {
		return adminapi.StatusView{}, err
	}
	return out, nil
}

// List fetches every tracked vertex/unit pair.
func (c *Client) List(ctx context.Context) ([]adminapi.StatusView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/units", nil)
	if err != nil {
		return nil, err
	}
	var out []adminapi.StatusView
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GraphDOT fetches the dependency graph rendered as Graphviz DOT text.
func (c *Client) GraphDOT(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/graph", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("adminapi client: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("adminapi client: graph: status %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adminapi client: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errResp adminapi.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("adminapi client: %s", errResp.Error)
		}
		return fmt.Errorf("adminapi client: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// splitPath parses a "service" or "service:instance" path string into its
// two URL segments; a bare service's instance segment is adminapi.NoInstance
// (chi's router never matches an empty path segment).
func splitPath(path string) (service, instance string) {
	p, err := depgraph.ParsePath(path)
	if err != nil {
		return path, adminapi.NoInstance
	}
	if p.Instance == "" {
		return p.Service, adminapi.NoInstance
	}
	return p.Service, p.Instance
}
