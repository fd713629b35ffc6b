// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staranto/shellcache/internal/fetch"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/store"
	"github.com/staranto/shellcache/internal/store/memory"
	"github.com/staranto/shellcache/internal/worker"
)

// fakeOrigin serves fixed bodies by path and counts hits.
type fakeOrigin struct {
	mu     sync.Mutex
	files  map[string]string
	status map[string]int
	hits   map[string]int
	srv    *httptest.Server
}

func newFakeOrigin(t *testing.T, files map[string]string) *fakeOrigin {
	t.Helper()
	o := &fakeOrigin{files: files, status: map[string]int{}, hits: map[string]int{}}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.hits[r.URL.Path]++
		if s, ok := o.status[r.URL.Path]; ok {
			w.WriteHeader(s)
			return
		}
		body, ok := o.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Origin", "yes")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *fakeOrigin) set(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = body
}

func (o *fakeOrigin) fail(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[path] = status
}

func (o *fakeOrigin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func siteFiles() map[string]string {
	return map[string]string{
		"/":              "<html>v1</html>",
		"/index.html":    "<html>v1</html>",
		"/main.dart.js":  "main-v1",
		"/logo.png":      "png",
		"/api/data.json": `{"ok":true}`,
	}
}

func siteBundle(t *testing.T, mainHash string) *manifest.Bundle {
	t.Helper()
	b := &manifest.Bundle{
		Version: mainHash,
		Resources: manifest.FromMap(map[string]string{
			"/":            "h0",
			"index.html":   "h0",
			"main.dart.js": mainHash,
			"logo.png":     "h2",
		}),
		Core: []string{"main.dart.js", "index.html"},
	}
	require.NoError(t, b.Validate())
	return b
}

func options(o *fakeOrigin, s store.Storage, b *manifest.Bundle) worker.Options {
	return worker.Options{
		Origin:  o.srv.URL,
		Bundle:  b,
		Storage: s,
		Fetcher: fetch.NewHTTP(),
	}
}

// parkWaiting installs a manager and leaves it waiting, as if it had never
// asked to skip waiting.
func parkWaiting(t *testing.T, r *Registry, opts worker.Options) *worker.Manager {
	t.Helper()
	b := &binding{r: r}
	opts.Host = b
	m, err := worker.New(opts)
	require.NoError(t, err)
	b.m = m
	require.NoError(t, m.Install(context.Background()))

	r.mu.Lock()
	b.skip = false
	r.waiting = b
	r.mu.Unlock()
	return m
}

func newStorage() *memory.Storage {
	return memory.New()
}

// gatedStorage holds the first Open of one partition after arm until
// release is closed.
type gatedStorage struct {
	store.Storage
	name    string
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStorage(s store.Storage, name string) *gatedStorage {
	return &gatedStorage{
		Storage: s,
		name:    name,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStorage) arm() { g.armed.Store(true) }

func (g *gatedStorage) Open(ctx context.Context, name string) (store.Partition, error) {
	if name == g.name && g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.Storage.Open(ctx, name)
}
