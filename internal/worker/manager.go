// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/apex/log"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/shellcache/internal/fetch"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/reconcile"
	"github.com/staranto/shellcache/internal/store"
)

// ManifestEntryKey is the single key used in the manifest partition.
const ManifestEntryKey = "manifest"

// Control messages accepted by Message.
const (
	MsgSkipWaiting     = "skipWaiting"
	MsgDownloadOffline = "downloadOffline"
)

const defaultConcurrency = 8

// Options configure a Manager. Origin, Bundle, Storage and Fetcher are
// required.
type Options struct {
	Origin  string
	Bundle  *manifest.Bundle
	Storage store.Storage
	Fetcher fetch.Fetcher
	// Names defaults to DefaultNames().
	Names Names
	// Host defaults to one that does nothing.
	Host Host
	// Clock stamps stored responses. Defaults to the wall clock.
	Clock clock.Clock
	// Concurrency bounds parallel fetches during install and offline
	// download.
	Concurrency int
}

// Manager keeps the content partition in line with one deployment's
// manifest and answers fetches from it.
type Manager struct {
	origin      string
	manifest    *manifest.Manifest
	core        []string
	version     string
	storage     store.Storage
	fetcher     fetch.Fetcher
	names       Names
	host        Host
	clock       clock.Clock
	concurrency int

	mu       sync.Mutex
	state    State
	degraded bool
	lastErr  error
}

// New validates opts and returns an Uninstalled Manager.
func New(opts Options) (*Manager, error) {
	origin, err := manifest.NormalizeOrigin(opts.Origin)
	if err != nil {
		return nil, err
	}
	if opts.Bundle == nil {
		return nil, errors.New("bundle is required")
	}
	if err := opts.Bundle.Validate(); err != nil {
		return nil, err
	}
	if opts.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	m := &Manager{
		origin:      origin,
		manifest:    opts.Bundle.Resources,
		core:        append([]string(nil), opts.Bundle.Core...),
		version:     opts.Bundle.Version,
		storage:     opts.Storage,
		fetcher:     opts.Fetcher,
		names:       opts.Names,
		host:        opts.Host,
		clock:       opts.Clock,
		concurrency: opts.Concurrency,
	}
	if m.names == (Names{}) {
		m.names = DefaultNames()
	}
	if m.host == nil {
		m.host = nopHost{}
	}
	if m.clock == nil {
		m.clock = clock.WallClock
	}
	if m.concurrency <= 0 {
		m.concurrency = defaultConcurrency
	}
	return m, nil
}

// Origin returns the normalised origin.
func (m *Manager) Origin() string { return m.origin }

// Manifest returns the current resource manifest.
func (m *Manager) Manifest() *manifest.Manifest { return m.manifest }

// Core returns the core resource keys.
func (m *Manager) Core() []string { return append([]string(nil), m.core...) }

// Version returns the bundle version, which may be empty.
func (m *Manager) Version() string { return m.version }

// Names returns the partition names in use.
func (m *Manager) Names() Names { return m.names }

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Degraded reports whether the last activation failed and the caches were
// wiped. The returned error is what went wrong.
func (m *Manager) Degraded() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded, m.lastErr
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Debugf("cache manager %s -> %s", m.state, s)
	m.state = s
}

// Install stages the core resources in the temp partition. Every core
// resource is fetched bypassing HTTP caches, and nothing is written unless
// all of them come back ok.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(Installing)
	m.host.SkipWaiting()

	if err := m.install(ctx); err != nil {
		m.setState(Uninstalled)
		return fmt.Errorf("failed to install: %w", err)
	}
	m.setState(Installed)
	return nil
}

func (m *Manager) install(ctx context.Context) error {
	temp, err := m.storage.Open(ctx, m.names.Temp)
	if err != nil {
		return err
	}
	urls := m.resolve(m.core)
	responses, err := m.fetchAll(ctx, urls, true)
	if err != nil {
		return err
	}
	for i, u := range urls {
		if err := temp.Put(ctx, u, responses[i]); err != nil {
			return err
		}
	}
	log.WithField("resources", len(urls)).Info("staged core resources")
	return nil
}

// Activate reconciles the content partition with the current manifest and
// promotes the staged core resources. Activate does not fail: on any error
// the three partitions are deleted, the manager is marked degraded and left
// Active with empty caches.
func (m *Manager) Activate(ctx context.Context) {
	m.setState(Activating)

	err := m.activate(ctx)

	m.mu.Lock()
	m.degraded = err != nil
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("failed to upgrade cache manager")
		for _, name := range m.names.All() {
			if _, derr := m.storage.Delete(ctx, name); derr != nil {
				log.WithError(derr).Warnf("failed to delete partition %s", name)
			}
		}
	}
	m.setState(Active)
}

func (m *Manager) activate(ctx context.Context) error {
	content, err := m.storage.Open(ctx, m.names.Content)
	if err != nil {
		return err
	}
	temp, err := m.storage.Open(ctx, m.names.Temp)
	if err != nil {
		return err
	}
	manifestPart, err := m.storage.Open(ctx, m.names.Manifest)
	if err != nil {
		return err
	}

	prev, err := loadPrevious(ctx, manifestPart)
	if err != nil {
		return err
	}
	byKey, err := m.contentKeys(ctx, content)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}

	plan := reconcile.Reconcile(prev, m.manifest, keys)
	if plan.Purge {
		if _, err := m.storage.Delete(ctx, m.names.Content); err != nil {
			return err
		}
		if content, err = m.storage.Open(ctx, m.names.Content); err != nil {
			return err
		}
	} else {
		for _, k := range plan.ToDelete {
			for _, u := range byKey[k] {
				if _, err := content.Delete(ctx, u); err != nil {
					return err
				}
			}
		}
	}
	log.WithField("purge", plan.Purge).
		WithField("evicted", len(plan.ToDelete)).
		WithField("kept", len(plan.ToKeep)).
		Info("reconciled content partition")

	if err := copyPartition(ctx, temp, content); err != nil {
		return err
	}
	if _, err := m.storage.Delete(ctx, m.names.Temp); err != nil {
		return err
	}
	if err := m.persistManifest(ctx, manifestPart); err != nil {
		return err
	}

	m.host.ClaimClients()
	return nil
}

// contentKeys groups the cached URLs of a partition by manifest key.
func (m *Manager) contentKeys(ctx context.Context, p store.Partition) (map[string][]string, error) {
	urls, err := p.Keys(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string][]string, len(urls))
	for _, u := range urls {
		k := manifest.ContentKey(m.origin, u)
		byKey[k] = append(byKey[k], u)
	}
	return byKey, nil
}

func (m *Manager) persistManifest(ctx context.Context, p store.Partition) error {
	data, err := m.manifest.MarshalJSON()
	if err != nil {
		return err
	}
	stale, err := p.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range stale {
		if k == ManifestEntryKey {
			continue
		}
		if _, err := p.Delete(ctx, k); err != nil {
			return err
		}
	}
	return p.Put(ctx, ManifestEntryKey, &store.Response{
		URL:      ManifestEntryKey,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     data,
		StoredAt: m.clock.Now(),
	})
}

// LoadPrevious reads the persisted manifest from the manifest partition.
func (m *Manager) LoadPrevious(ctx context.Context) (manifest.Previous, error) {
	has, err := m.storage.Has(ctx, m.names.Manifest)
	if err != nil || !has {
		return manifest.Absent{}, err
	}
	p, err := m.storage.Open(ctx, m.names.Manifest)
	if err != nil {
		return nil, err
	}
	return loadPrevious(ctx, p)
}

func loadPrevious(ctx context.Context, p store.Partition) (manifest.Previous, error) {
	r, err := p.Match(ctx, ManifestEntryKey)
	if errors.Is(err, store.ErrNotFound) {
		return manifest.Absent{}, nil
	}
	if err != nil {
		return nil, err
	}
	prev, err := manifest.Parse(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode persisted manifest: %w", err)
	}
	return manifest.Present{Manifest: prev}, nil
}

// Plan computes what the next activation would evict without touching any
// partition. Staged core resources are not considered.
func (m *Manager) Plan(ctx context.Context) (reconcile.Plan, manifest.Previous, error) {
	prev, err := m.LoadPrevious(ctx)
	if err != nil {
		return reconcile.Plan{}, nil, err
	}
	var keys []string
	has, err := m.storage.Has(ctx, m.names.Content)
	if err != nil {
		return reconcile.Plan{}, nil, err
	}
	if has {
		content, err := m.storage.Open(ctx, m.names.Content)
		if err != nil {
			return reconcile.Plan{}, nil, err
		}
		byKey, err := m.contentKeys(ctx, content)
		if err != nil {
			return reconcile.Plan{}, nil, err
		}
		for k := range byKey {
			keys = append(keys, k)
		}
	}
	return reconcile.Reconcile(prev, m.manifest, keys), prev, nil
}

func copyPartition(ctx context.Context, from, to store.Partition) error {
	urls, err := from.Keys(ctx)
	if err != nil {
		return err
	}
	for _, u := range urls {
		r, err := from.Match(ctx, u)
		if err != nil {
			return err
		}
		if err := to.Put(ctx, u, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) resolve(keys []string) []string {
	urls := make([]string, len(keys))
	for i, k := range keys {
		urls[i] = manifest.ResolveURL(m.origin, k)
	}
	return urls
}

// fetchAll fetches every url, returning responses in the same order. It fails
// on the first transport error or non-ok status.
func (m *Manager) fetchAll(ctx context.Context, urls []string, reload bool) ([]*store.Response, error) {
	out := make([]*store.Response, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			resp, err := m.fetcher.Fetch(gctx, fetch.Request{URL: u, Reload: reload})
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", u, err)
			}
			if !resp.OK() {
				return fmt.Errorf("failed to fetch %s: status %d", u, resp.Status)
			}
			resp.StoredAt = m.clock.Now()
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
