// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Fetch(t *testing.T) {
	var gotCacheControl, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl = r.Header.Get("Cache-Control")
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = w.Write([]byte("main()"))
	}))
	defer srv.Close()

	f := NewHTTP()

	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/main.dart.js", Reload: true})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.True(t, resp.OK())
	assert.Equal(t, "main()", string(resp.Body))
	assert.Equal(t, "text/javascript", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", gotCacheControl)
	assert.Equal(t, "shellcache", gotUA)

	resp, err = f.Fetch(context.Background(), Request{URL: srv.URL + "/missing"})
	require.NoError(t, err, "non-ok status is a response, not an error")
	assert.Equal(t, 404, resp.Status)
	assert.False(t, resp.OK())
	assert.Equal(t, "", gotCacheControl)
}

func TestHTTP_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP().Fetch(context.Background(), Request{URL: url + "/"})
	assert.Error(t, err)
}
