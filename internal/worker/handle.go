// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/shellcache/internal/fetch"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/reconcile"
	"github.com/staranto/shellcache/internal/store"
)

// Headers never forwarded on a fetch made on a client's behalf.
var dropHeaders = []string{
	"Accept-Encoding", "Connection", "Keep-Alive", "Proxy-Connection",
	"Range", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Handle intercepts a client request. The bool result is false when the
// request is not for a manifest resource, in which case the caller should
// let it go to the network untouched. The entry document is served
// online-first, everything else cache-first.
func (m *Manager) Handle(ctx context.Context, req *http.Request) (*store.Response, bool, error) {
	if req.Method != http.MethodGet {
		return nil, false, nil
	}

	url := m.absoluteURL(req)
	key := manifest.RequestKey(m.origin, url)
	if !m.manifest.Has(key) {
		return nil, false, nil
	}

	fr := fetch.Request{URL: withoutFragment(url), Header: req.Header.Clone()}
	for _, h := range dropHeaders {
		fr.Header.Del(h)
	}

	if key == manifest.RootKey {
		resp, err := m.onlineFirst(ctx, fr)
		return resp, true, err
	}
	resp, err := m.cacheFirst(ctx, fr)
	return resp, true, err
}

// absoluteURL resolves req against the origin. An empty path becomes "/" so
// the bare origin shares the entry document's cache entry.
func (m *Manager) absoluteURL(req *http.Request) string {
	if req.URL.IsAbs() {
		u := *req.URL
		if u.Path == "" && u.Opaque == "" {
			u.Path, u.RawPath = "/", ""
		}
		return u.String()
	}
	u := m.origin + req.URL.RequestURI()
	if req.URL.Fragment != "" {
		u += "#" + req.URL.EscapedFragment()
	}
	return u
}

// Fragments never reach the network or the cache.
func withoutFragment(url string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		return url[:i]
	}
	return url
}

// cacheFirst answers from the content partition and only goes to the
// network on a miss. Ok responses are stored on the way back.
func (m *Manager) cacheFirst(ctx context.Context, fr fetch.Request) (*store.Response, error) {
	content, err := m.storage.Open(ctx, m.names.Content)
	if err != nil {
		return nil, err
	}

	cached, err := content.Match(ctx, fr.URL)
	if err == nil {
		log.Debugf("cache hit: %s", fr.URL)
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	resp, err := m.fetcher.Fetch(ctx, fr)
	if err != nil {
		return nil, err
	}
	if resp.OK() {
		m.store(ctx, content, fr.URL, resp)
	}
	return resp, nil
}

// onlineFirst prefers the network and falls back to the content partition
// when the network fails. Whatever the network answers is stored, error
// statuses included. With nothing cached the network error is returned.
func (m *Manager) onlineFirst(ctx context.Context, fr fetch.Request) (*store.Response, error) {
	resp, ferr := m.fetcher.Fetch(ctx, fr)
	if ferr == nil {
		if content, err := m.storage.Open(ctx, m.names.Content); err == nil {
			m.store(ctx, content, fr.URL, resp)
		} else {
			log.WithError(err).Warn("failed to open content partition")
		}
		return resp, nil
	}

	log.WithError(ferr).Debugf("network failed for %s, trying cache", fr.URL)
	content, err := m.storage.Open(ctx, m.names.Content)
	if err != nil {
		return nil, ferr
	}
	cached, err := content.Match(ctx, fr.URL)
	if err != nil {
		return nil, ferr
	}
	return cached, nil
}

func (m *Manager) store(ctx context.Context, p store.Partition, url string, resp *store.Response) {
	c := resp.Clone()
	c.StoredAt = m.clock.Now()
	if err := p.Put(ctx, url, c); err != nil {
		log.WithError(err).Warnf("failed to write %s to cache", url)
	}
}

// Message handles a control message. Unknown messages are ignored.
func (m *Manager) Message(ctx context.Context, msg string) error {
	switch msg {
	case MsgSkipWaiting:
		m.host.SkipWaiting()
		return nil
	case MsgDownloadOffline:
		_, err := m.DownloadOffline(ctx)
		return err
	default:
		log.Debugf("ignoring message %q", msg)
		return nil
	}
}

// DownloadOffline fetches every manifest resource the content partition does
// not hold yet and stores them all, or none if any fetch fails. It returns
// the number of resources added.
func (m *Manager) DownloadOffline(ctx context.Context) (int, error) {
	content, err := m.storage.Open(ctx, m.names.Content)
	if err != nil {
		return 0, err
	}
	byKey, err := m.contentKeys(ctx, content)
	if err != nil {
		return 0, err
	}
	have := make([]string, 0, len(byKey))
	for k := range byKey {
		have = append(have, k)
	}

	missing := reconcile.Missing(m.manifest, have)
	if len(missing) == 0 {
		return 0, nil
	}
	urls := m.resolve(missing)
	responses, err := m.fetchAll(ctx, urls, false)
	if err != nil {
		return 0, err
	}
	for i, u := range urls {
		if err := content.Put(ctx, u, responses[i]); err != nil {
			return i, err
		}
	}
	log.WithField("resources", len(urls)).Info("downloaded offline resources")
	return len(urls), nil
}
