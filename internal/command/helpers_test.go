// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/manifest"
)

var siteTree = map[string]string{
	"index.html":   "<html>v1</html>",
	"main.dart.js": "main-v1",
	"logo.png":     "png",
}

// origin serves a site tree and counts hits per path.
type origin struct {
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
	srv   *httptest.Server
}

func newOrigin(t *testing.T, tree map[string]string) *origin {
	t.Helper()
	o := &origin{files: map[string]string{}, hits: map[string]int{}}
	for k, v := range tree {
		o.files["/"+k] = v
	}
	o.files["/"] = tree["index.html"]
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.hits[r.URL.Path]++
		body, ok := o.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// writeBundle builds a bundle from tree and saves it under dir.
func writeBundle(t *testing.T, dir, version string, tree map[string]string) string {
	t.Helper()
	dist := filepath.Join(dir, "dist-"+version)
	require.NoError(t, os.MkdirAll(dist, 0o755))
	for name, body := range tree {
		require.NoError(t, os.WriteFile(filepath.Join(dist, name), []byte(body), 0o600))
	}
	b, err := manifest.Build(dist, []string{"main.dart.js", "index.html"})
	require.NoError(t, err)
	b.Version = version

	path := filepath.Join(dir, "bundle-"+version+".json")
	require.NoError(t, b.Save(path))
	return path
}

// isolate keeps the user's environment and config file out of a test.
func isolate(t *testing.T) {
	t.Helper()
	for _, e := range []string{
		"SHELLCACHE_ORIGIN", "SHELLCACHE_BUNDLE", "SHELLCACHE_STORE",
		"SHELLCACHE_BUCKET", "SHELLCACHE_S3_ENDPOINT", "SHELLCACHE_SERVER",
		"SHELLCACHE_LISTEN", "SHELLCACHE_CACHE_DIR", config.EnvPath,
	} {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("APPDATA", home)
}

// run executes the app and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"shellcache"}, args...)
	app, err := InitApp(context.Background(), full, &out)
	require.NoError(t, err)
	err = app.Run(context.Background(), full)
	return out.String(), err
}
