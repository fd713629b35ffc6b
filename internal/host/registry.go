// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/shellcache/internal/worker"
)

// ErrNoManager is returned by Post when nothing is registered.
var ErrNoManager = errors.New("no cache manager registered")

// Registry tracks the active manager and at most one waiting manager, the
// way a browser tracks service worker versions for one scope.
type Registry struct {
	// lifecycle serialises install, activation and message delivery.
	lifecycle sync.Mutex

	mu      sync.Mutex
	active  *binding
	waiting *binding
	claims  int
}

// binding is the worker.Host handed to one manager.
type binding struct {
	r    *Registry
	m    *worker.Manager
	skip bool
}

func (b *binding) SkipWaiting() {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	b.skip = true
}

// ClaimClients publishes b as the active manager. Until then the previous
// version keeps serving.
func (b *binding) ClaimClients() {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	b.r.active = b
	b.r.claims++
	log.WithField("version", b.m.Version()).Info("cache manager claimed clients")
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register builds a manager from opts and installs it. A manager that asked
// to skip waiting, or the first one registered, is activated at once; any
// other waits for SkipWaiting or Release. A manager whose install fails is
// discarded and the error returned.
func (r *Registry) Register(ctx context.Context, opts worker.Options) (*worker.Manager, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	b := &binding{r: r}
	opts.Host = b
	m, err := worker.New(opts)
	if err != nil {
		return nil, err
	}
	b.m = m

	if err := m.Install(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.waiting != nil {
		log.WithField("version", r.waiting.m.Version()).Info("replacing waiting cache manager")
	}
	r.waiting = b
	r.mu.Unlock()

	r.settle(ctx)
	return m, nil
}

// settle activates the waiting manager when it may take over. The current
// active manager keeps intercepting until the new one has activated.
func (r *Registry) settle(ctx context.Context) {
	r.mu.Lock()
	w := r.waiting
	if w == nil || (!w.skip && r.active != nil) {
		r.mu.Unlock()
		return
	}
	r.waiting = nil
	r.mu.Unlock()

	w.m.Activate(ctx)
	if degraded, err := w.m.Degraded(); degraded {
		log.WithError(err).Warn("cache manager activated without caches")
	}

	// A degraded activation never claims clients, but still takes over.
	r.mu.Lock()
	r.active = w
	r.mu.Unlock()
}

// Release tells the registry the active manager's clients are gone, so a
// waiting manager can take over.
func (r *Registry) Release(ctx context.Context) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.waiting != nil {
		r.waiting.skip = true
	}
	r.mu.Unlock()
	r.settle(ctx)
}

// Post delivers a control message to the waiting manager if there is one,
// else to the active one.
func (r *Registry) Post(ctx context.Context, msg string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	target := r.waiting
	if target == nil {
		target = r.active
	}
	r.mu.Unlock()
	if target == nil {
		return ErrNoManager
	}

	err := target.m.Message(ctx, msg)
	r.settle(ctx)
	return err
}

// Active returns the manager controlling clients, or nil.
func (r *Registry) Active() *worker.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.m
}

// Waiting returns the installed manager waiting to activate, or nil.
func (r *Registry) Waiting() *worker.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		return nil
	}
	return r.waiting.m
}

// Claims counts successful client claims.
func (r *Registry) Claims() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claims
}
