// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotFound is returned by Partition.Match when no entry exists for a URL.
var ErrNotFound = errors.New("cache entry not found")

// Response is a cached response as stored in a partition. It is keyed by the
// full request URL it was fetched for.
type Response struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy so the caller and the cache never share a body
// or header map.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Partition is a named, independently addressable store of URL -> Response.
// Operations on a single key are atomic.
type Partition interface {
	Name() string
	// Match returns the entry for url or ErrNotFound.
	Match(ctx context.Context, url string) (*Response, error)
	Put(ctx context.Context, url string, resp *Response) error
	// Delete removes the entry for url and reports whether it existed.
	Delete(ctx context.Context, url string) (bool, error)
	// Keys returns the URLs of every entry, sorted.
	Keys(ctx context.Context) ([]string, error)
}

// Storage opens and destroys partitions by name.
type Storage interface {
	// Open returns the named partition, creating it if it does not exist.
	Open(ctx context.Context, name string) (Partition, error)
	// Delete destroys the named partition and everything in it. It reports
	// whether the partition existed.
	Delete(ctx context.Context, name string) (bool, error)
	Has(ctx context.Context, name string) (bool, error)
	Names(ctx context.Context) ([]string, error)
}
