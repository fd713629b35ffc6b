// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process store.Storage. Nothing survives the
// process, so it suits tests and a throwaway `serve`.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/staranto/shellcache/internal/store"
)

// Storage holds partitions in maps guarded by a single mutex.
type Storage struct {
	mu         sync.RWMutex
	partitions map[string]*Partition
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{partitions: map[string]*Partition{}}
}

// Open implements store.Storage.
func (s *Storage) Open(_ context.Context, name string) (store.Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[name]
	if !ok {
		p = &Partition{name: name, entries: map[string]*store.Response{}}
		s.partitions[name] = p
	}
	return p, nil
}

// Delete implements store.Storage. Handles to a deleted partition keep
// working but are detached; a later Open returns a fresh partition.
func (s *Storage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.partitions[name]
	delete(s.partitions, name)
	return ok, nil
}

// Has implements store.Storage.
func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.partitions[name]
	return ok, nil
}

// Names implements store.Storage.
func (s *Storage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.partitions))
	for n := range s.partitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Partition is a map of URL -> Response. Stored values are cloned on the way
// in and out.
type Partition struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*store.Response
}

// Name implements store.Partition.
func (p *Partition) Name() string { return p.name }

// Match implements store.Partition.
func (p *Partition) Match(_ context.Context, url string) (*store.Response, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.entries[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

// Put implements store.Partition.
func (p *Partition) Put(_ context.Context, url string, resp *store.Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[url] = resp.Clone()
	return nil
}

// Delete implements store.Partition.
func (p *Partition) Delete(_ context.Context, url string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[url]
	delete(p.entries, url)
	return ok, nil
}

// Keys implements store.Partition.
func (p *Partition) Keys(_ context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
