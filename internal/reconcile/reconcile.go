// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package reconcile decides which cached resources survive a manifest
// upgrade. It does no I/O.
package reconcile

import (
	"sort"

	"github.com/staranto/shellcache/internal/manifest"
)

// Plan is the outcome of comparing the persisted manifest, the current
// manifest and the keys present in the content partition.
type Plan struct {
	// Purge is set when there was no persisted manifest. The whole content
	// partition is discarded and rebuilt.
	Purge bool `json:"purge"`
	// ToDelete lists content keys to evict.
	ToDelete []string `json:"delete"`
	// ToKeep lists content keys that are still valid.
	ToKeep []string `json:"keep"`
}

// Reconcile computes the eviction plan for contentKeys. With no persisted
// manifest everything goes. Otherwise a key is evicted when the current
// manifest no longer lists it, or when its fingerprint differs from the one
// persisted.
func Reconcile(prev manifest.Previous, curr *manifest.Manifest, contentKeys []string) Plan {
	keys := unique(contentKeys)

	p, ok := prev.(manifest.Present)
	if !ok || p.Manifest == nil {
		return Plan{Purge: true, ToDelete: keys, ToKeep: []string{}}
	}

	plan := Plan{ToDelete: []string{}, ToKeep: []string{}}
	for _, k := range keys {
		now, inCurr := curr.Fingerprint(k)
		was, inPrev := p.Manifest.Fingerprint(k)
		if !inCurr || !inPrev || now != was {
			plan.ToDelete = append(plan.ToDelete, k)
			continue
		}
		plan.ToKeep = append(plan.ToKeep, k)
	}
	return plan
}

// Missing returns the manifest keys absent from contentKeys, in manifest
// order.
func Missing(curr *manifest.Manifest, contentKeys []string) []string {
	have := make(map[string]bool, len(contentKeys))
	for _, k := range contentKeys {
		have[k] = true
	}
	missing := []string{}
	for _, k := range curr.Keys() {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

func unique(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
