// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/store"
)

// MessagePath is where control messages are posted.
const MessagePath = "/__shellcache/message"

const maxMessageSize = 4 << 10

// Hop-by-hop and length headers are never copied from a cached response.
var skipHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

// Server fronts an origin. GETs for manifest resources are answered by the
// active manager, control messages go to the registry, and everything else
// is proxied to the origin.
type Server struct {
	reg   *Registry
	proxy *httputil.ReverseProxy
}

// NewServer returns a Server for origin. A nil transport uses a pooled
// cleanhttp transport.
func NewServer(reg *Registry, origin string, transport http.RoundTripper) (*Server, error) {
	o, err := manifest.NormalizeOrigin(origin)
	if err != nil {
		return nil, err
	}
	target, err := url.Parse(o)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithError(err).Warnf("failed to proxy %s", r.URL)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}
	return &Server{reg: reg, proxy: proxy}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == MessagePath {
		s.message(w, r)
		return
	}

	if m := s.reg.Active(); m != nil {
		resp, handled, err := m.Handle(r.Context(), r)
		if handled {
			if err != nil {
				log.WithError(err).Warnf("failed to serve %s", r.URL)
				http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
				return
			}
			writeResponse(w, resp)
			return
		}
	}
	s.proxy.ServeHTTP(w, r)
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read message: %v", err), http.StatusBadRequest)
		return
	}
	msg := strings.TrimSpace(string(body))
	log.WithField("message", msg).Debug("received control message")

	// The work a message starts outlives the request that carried it.
	if err := s.reg.Post(context.WithoutCancel(r.Context()), msg); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoManager) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeResponse(w http.ResponseWriter, resp *store.Response) {
	for k, vs := range resp.Header {
		if skipHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}
