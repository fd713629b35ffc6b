// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/store"
)

func TestNew_Validation(t *testing.T) {
	f := newFixture()
	b := bundle(t, map[string]string{"a.js": "h1"}, "a.js")

	tests := []struct {
		name string
		opts Options
	}{
		{"bad origin", Options{Origin: "nope", Bundle: b, Storage: f.storage, Fetcher: f.net}},
		{"no bundle", Options{Origin: testOrigin, Storage: f.storage, Fetcher: f.net}},
		{"no storage", Options{Origin: testOrigin, Bundle: b, Fetcher: f.net}},
		{"no fetcher", Options{Origin: testOrigin, Bundle: b, Storage: f.storage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.Error(t, err)
		})
	}

	m, err := New(Options{Origin: testOrigin + "/", Bundle: b, Storage: f.storage, Fetcher: f.net})
	require.NoError(t, err)
	assert.Equal(t, testOrigin, m.Origin())
	assert.Equal(t, DefaultNames(), m.Names())
	assert.Equal(t, Uninstalled, m.State())
}

func TestInstall_StagesCoreWithReload(t *testing.T) {
	f := newFixture()
	f.net.serve("main.dart.js", "main")
	f.net.serve("index.html", "<html>")

	m := f.manager(t, bundle(t, map[string]string{
		"main.dart.js": "h1", "index.html": "h2", "/": "h2", "big.wasm": "h3",
	}, "main.dart.js", "index.html"))

	require.NoError(t, m.Install(context.Background()))
	assert.Equal(t, Installed, m.State())
	assert.Equal(t, 1, f.host.skips, "install forces skip waiting")

	temp := f.partition(t, DefaultNames().Temp)
	keys, _ := temp.Keys(context.Background())
	assert.Equal(t, []string{testOrigin + "/index.html", testOrigin + "/main.dart.js"}, keys)

	r, err := temp.Match(context.Background(), testOrigin+"/main.dart.js")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), r.StoredAt)

	assert.Equal(t, 1, f.net.reloads[testOrigin+"/main.dart.js"])
	assert.Equal(t, 0, f.net.count("big.wasm"))
}

func TestInstall_FailureStagesNothing(t *testing.T) {
	f := newFixture()
	f.net.serve("main.dart.js", "main")
	f.net.fail("index.html", 500)

	m := f.manager(t, bundle(t, map[string]string{"main.dart.js": "h1", "index.html": "h2"},
		"main.dart.js", "index.html"))

	err := m.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, Uninstalled, m.State())

	keys, _ := f.partition(t, DefaultNames().Temp).Keys(context.Background())
	assert.Empty(t, keys)
}

func TestInstall_NetworkError(t *testing.T) {
	f := newFixture()
	f.net.setOffline(true)
	m := f.manager(t, bundle(t, map[string]string{"a.js": "h1"}, "a.js"))
	assert.ErrorIs(t, m.Install(context.Background()), errOffline)
}

func TestActivate_FirstInstallPurgesContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("a.js", "a")

	// Leftovers from some earlier, unrecorded deployment.
	content := f.partition(t, DefaultNames().Content)
	require.NoError(t, content.Put(ctx, testOrigin+"/a.js", &store.Response{Status: 200, Body: []byte("stale")}))
	require.NoError(t, content.Put(ctx, testOrigin+"/b.js", &store.Response{Status: 200, Body: []byte("b")}))

	m := f.manager(t, bundle(t, map[string]string{"a.js": "h1", "b.js": "h2"}, "a.js"))
	f.deploy(t, m)

	assert.Equal(t, map[string]string{"a.js": "a"}, f.contentBodies(t))
	assert.Equal(t, Active, m.State())
	assert.Equal(t, 1, f.host.claims)

	has, _ := f.storage.Has(ctx, DefaultNames().Temp)
	assert.False(t, has, "temp partition is removed")

	prev, err := m.LoadPrevious(ctx)
	require.NoError(t, err)
	p, ok := prev.(manifest.Present)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"a.js": "h1", "b.js": "h2"}, p.Manifest.Map())

	keys, _ := f.partition(t, DefaultNames().Manifest).Keys(ctx)
	assert.Equal(t, []string{ManifestEntryKey}, keys)
}

func TestActivate_UpgradeScenario(t *testing.T) {
	f := newFixture()
	f.net.serve("a.js", "a-v1")
	f.net.serve("b.js", "b-v1")

	v1 := f.manager(t, bundle(t, map[string]string{"a.js": "h1", "b.js": "h2"}, "a.js", "b.js"))
	f.deploy(t, v1)
	require.Equal(t, map[string]string{"a.js": "a-v1", "b.js": "b-v1"}, f.contentBodies(t))

	f.net.serve("a.js", "a-v2-should-not-be-fetched")
	f.net.serve("b.js", "b-v2")
	f.net.serve("c.js", "c-v2")

	v2 := f.manager(t, bundle(t, map[string]string{"a.js": "h1", "b.js": "h3", "c.js": "h4"}, "b.js", "c.js"))
	f.deploy(t, v2)

	assert.Equal(t, map[string]string{
		"a.js": "a-v1",
		"b.js": "b-v2",
		"c.js": "c-v2",
	}, f.contentBodies(t))
	assert.Equal(t, 1, f.net.count("a.js"), "unchanged resource is never re-fetched")
	assert.Equal(t, 2, f.net.count("b.js"))
	assert.Equal(t, 1, f.net.count("c.js"))
}

func TestActivate_DropsRemovedAndChangedNonCore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("index.html", "i1")
	f.net.serve("big.wasm", "w1")
	f.net.serve("gone.png", "g1")

	v1 := f.manager(t, bundle(t, map[string]string{"index.html": "h1", "big.wasm": "w1", "gone.png": "g1"}, "index.html"))
	f.deploy(t, v1)
	_, err := v1.DownloadOffline(ctx)
	require.NoError(t, err)

	v2 := f.manager(t, bundle(t, map[string]string{"index.html": "h1", "big.wasm": "w2"}, "index.html"))
	f.deploy(t, v2)

	assert.Equal(t, map[string]string{"index.html": "i1"}, f.contentBodies(t))
}

func TestActivate_CoreAlwaysOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("a.js", "fresh")

	b := bundle(t, map[string]string{"a.js": "h1"}, "a.js")
	f.deploy(t, f.manager(t, b))

	// Same fingerprint, but the cached copy was tampered with.
	content := f.partition(t, DefaultNames().Content)
	require.NoError(t, content.Put(ctx, testOrigin+"/a.js", &store.Response{Status: 200, Body: []byte("tampered")}))

	f.deploy(t, f.manager(t, b))
	assert.Equal(t, map[string]string{"a.js": "fresh"}, f.contentBodies(t))
}

func TestActivate_IdempotentReactivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	res := map[string]string{"index.html": "h1", "/": "h1", "a.js": "h2", "b.js": "h3"}
	for k := range res {
		f.net.serve(k, "body-"+k)
	}
	b := bundle(t, res, "index.html")

	m := f.manager(t, b)
	f.deploy(t, m)
	_, err := m.DownloadOffline(ctx)
	require.NoError(t, err)
	before := f.contentBodies(t)
	fetches := f.net.total()

	f.deploy(t, f.manager(t, b))

	assert.Equal(t, before, f.contentBodies(t))
	assert.Equal(t, fetches+len(b.Core), f.net.total(), "only core resources are fetched again")
}

func TestActivate_FailureWipesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("a.js", "a")

	// A healthy first deployment so all three partitions exist.
	f.deploy(t, f.manager(t, bundle(t, map[string]string{"a.js": "h1"}, "a.js")))

	broken := &failingStorage{Storage: f.storage, failOn: DefaultNames().Manifest}
	m := f.managerOn(t, bundle(t, map[string]string{"a.js": "h2"}, "a.js"), broken)
	require.NoError(t, m.Install(ctx))

	claims := f.host.claims
	m.Activate(ctx)

	degraded, err := m.Degraded()
	assert.True(t, degraded)
	assert.Error(t, err)
	assert.Equal(t, Active, m.State(), "manager stays in control")
	assert.Equal(t, claims, f.host.claims)

	for _, name := range DefaultNames().All() {
		has, herr := f.storage.Has(ctx, name)
		require.NoError(t, herr)
		assert.False(t, has, "partition %s should be gone", name)
	}
}

func TestActivate_CorruptManifestWipesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("a.js", "a")

	mp := f.partition(t, DefaultNames().Manifest)
	require.NoError(t, mp.Put(ctx, ManifestEntryKey, &store.Response{Status: 200, Body: []byte("not json")}))

	m := f.manager(t, bundle(t, map[string]string{"a.js": "h1"}, "a.js"))
	require.NoError(t, m.Install(ctx))
	m.Activate(ctx)

	degraded, _ := m.Degraded()
	assert.True(t, degraded)
	names, _ := f.storage.Names(ctx)
	assert.Empty(t, names)
}

func TestPlan_DryRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.net.serve("a.js", "a")
	f.net.serve("b.js", "b")

	v1 := f.manager(t, bundle(t, map[string]string{"a.js": "h1", "b.js": "h2"}, "a.js", "b.js"))

	plan, prev, err := v1.Plan(ctx)
	require.NoError(t, err)
	assert.IsType(t, manifest.Absent{}, prev)
	assert.True(t, plan.Purge)

	f.deploy(t, v1)

	v2 := f.manager(t, bundle(t, map[string]string{"a.js": "h1", "b.js": "h9"}, "a.js"))
	plan, prev, err = v2.Plan(ctx)
	require.NoError(t, err)
	assert.IsType(t, manifest.Present{}, prev)
	assert.False(t, plan.Purge)
	assert.Equal(t, []string{"b.js"}, plan.ToDelete)
	assert.Equal(t, []string{"a.js"}, plan.ToKeep)

	// Nothing was touched.
	assert.Equal(t, map[string]string{"a.js": "a", "b.js": "b"}, f.contentBodies(t))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "installed", Installed.String())
	assert.Equal(t, "unknown", State(42).String())
}
