// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package fetch is the network side of the cache manager.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/staranto/shellcache/internal/store"
)

// Request describes one outgoing fetch.
type Request struct {
	URL    string
	Header http.Header
	// Reload bypasses intermediate HTTP caches and forces revalidation at
	// the origin.
	Reload bool
}

// Fetcher performs network fetches. A transport failure is an error; any
// HTTP status, including 4xx/5xx, is a Response.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*store.Response, error)
}

// HTTP is a Fetcher over an *http.Client.
type HTTP struct {
	Client *http.Client
	// UserAgent is sent when the request does not carry one.
	UserAgent string
}

// NewHTTP returns an HTTP fetcher on a pooled cleanhttp client.
func NewHTTP() *HTTP {
	return &HTTP{Client: cleanhttp.DefaultPooledClient(), UserAgent: "shellcache"}
}

// Fetch implements Fetcher. Only GET is issued.
func (h *HTTP) Fetch(ctx context.Context, r Request) (*store.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if r.Reload {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}

	client := h.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	log.Debugf("fetched %s: %d (%d bytes)", r.URL, resp.StatusCode, body.Len())

	return &store.Response{
		URL:    r.URL,
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body.Bytes(),
	}, nil
}
