// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/staranto/shellcache/internal/fetch"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/store"
	"github.com/staranto/shellcache/internal/store/memory"
)

const testOrigin = "https://toolkit.example.com"

var errOffline = errors.New("network is unreachable")

// fakeNet is a scripted network. Unknown URLs answer 404.
type fakeNet struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	offline bool
	calls   map[string]int
	reloads map[string]int
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		bodies:  map[string]string{},
		status:  map[string]int{},
		calls:   map[string]int{},
		reloads: map[string]int{},
	}
}

// serve sets the body returned for a manifest key.
func (f *fakeNet) serve(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[manifest.ResolveURL(testOrigin, key)] = body
}

func (f *fakeNet) fail(key string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[manifest.ResolveURL(testOrigin, key)] = status
}

func (f *fakeNet) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeNet) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[manifest.ResolveURL(testOrigin, key)]
}

func (f *fakeNet) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeNet) Fetch(_ context.Context, r fetch.Request) (*store.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	f.calls[r.URL]++
	if r.Reload {
		f.reloads[r.URL]++
	}
	if s, ok := f.status[r.URL]; ok {
		return &store.Response{URL: r.URL, Status: s, Body: []byte("error")}, nil
	}
	b, ok := f.bodies[r.URL]
	if !ok {
		return &store.Response{URL: r.URL, Status: 404}, nil
	}
	return &store.Response{URL: r.URL, Status: 200, Body: []byte(b)}, nil
}

type recordingHost struct {
	mu     sync.Mutex
	skips  int
	claims int
}

func (h *recordingHost) SkipWaiting() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.skips++
}

func (h *recordingHost) ClaimClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.claims++
}

func bundle(t *testing.T, resources map[string]string, core ...string) *manifest.Bundle {
	t.Helper()
	b := &manifest.Bundle{Resources: manifest.FromMap(resources), Core: core}
	require.NoError(t, b.Validate())
	return b
}

type fixture struct {
	storage *memory.Storage
	net     *fakeNet
	host    *recordingHost
	clock   *testclock.Clock
}

func newFixture() *fixture {
	return &fixture{
		storage: memory.New(),
		net:     newFakeNet(),
		host:    &recordingHost{},
		clock:   testclock.NewClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
}

func (f *fixture) manager(t *testing.T, b *manifest.Bundle) *Manager {
	t.Helper()
	return f.managerOn(t, b, f.storage)
}

func (f *fixture) managerOn(t *testing.T, b *manifest.Bundle, s store.Storage) *Manager {
	t.Helper()
	m, err := New(Options{
		Origin:  testOrigin,
		Bundle:  b,
		Storage: s,
		Fetcher: f.net,
		Host:    f.host,
		Clock:   f.clock,
	})
	require.NoError(t, err)
	return m
}

// deploy runs install then activate, as the host would.
func (f *fixture) deploy(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Install(context.Background()))
	m.Activate(context.Background())
	degraded, err := m.Degraded()
	require.NoError(t, err)
	require.False(t, degraded)
}

func (f *fixture) partition(t *testing.T, name string) store.Partition {
	t.Helper()
	p, err := f.storage.Open(context.Background(), name)
	require.NoError(t, err)
	return p
}

// contentBodies maps manifest key -> cached body for the content partition.
func (f *fixture) contentBodies(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()
	p := f.partition(t, DefaultNames().Content)
	urls, err := p.Keys(ctx)
	require.NoError(t, err)
	out := map[string]string{}
	for _, u := range urls {
		r, err := p.Match(ctx, u)
		require.NoError(t, err)
		out[manifest.ContentKey(testOrigin, u)] = string(r.Body)
	}
	return out
}

// failingStorage wraps a Storage so that Put into one partition fails.
type failingStorage struct {
	store.Storage
	failOn string
}

func (s *failingStorage) Open(ctx context.Context, name string) (store.Partition, error) {
	p, err := s.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if name == s.failOn {
		return failingPartition{p}, nil
	}
	return p, nil
}

type failingPartition struct {
	store.Partition
}

func (failingPartition) Put(context.Context, string, *store.Response) error {
	return errors.New("disk full")
}
