// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/shellcache/internal/store"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. explicit, if non-empty
//  2. SHELLCACHE_CACHE_DIR, if set and non-empty
//  3. os.UserCacheDir()/shellcache
//
// Returns ("", false) if a base cannot be resolved.
func Dir(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if c, ok := os.LookupEnv("SHELLCACHE_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "shellcache"), true
	}
	return "", false
}

// Storage keeps each partition in its own directory beneath base. Each entry
// is a JSON file named by the MD5 of its URL.
type Storage struct {
	base string
}

// New returns a Storage rooted at base, creating it if needed.
func New(base string) (*Storage, error) {
	if base == "" {
		return nil, errors.New("cache directory is not set")
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return &Storage{base: base}, nil
}

// Base returns the root directory.
func (s *Storage) Base() string { return s.base }

func (s *Storage) partitionDir(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid partition name %q", name)
	}
	return filepath.Join(s.base, name), nil
}

// Open implements store.Storage.
func (s *Storage) Open(_ context.Context, name string) (store.Partition, error) {
	dir, err := s.partitionDir(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create partition %s: %w", name, err)
	}
	return &Partition{name: name, dir: dir}, nil
}

// Delete implements store.Storage.
func (s *Storage) Delete(_ context.Context, name string) (bool, error) {
	dir, err := s.partitionDir(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return true, fmt.Errorf("failed to delete partition %s: %w", name, err)
	}
	log.Debugf("removed partition %s", dir)
	return true, nil
}

// Has implements store.Storage.
func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	dir, err := s.partitionDir(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Names implements store.Storage.
func (s *Storage) Names(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Partition is one directory of entry files.
type Partition struct {
	name string
	dir  string
}

// Name implements store.Partition.
func (p *Partition) Name() string { return p.name }

func (p *Partition) entryPath(url string) string {
	return filepath.Join(p.dir, encodeKey(url))
}

// Match implements store.Partition.
func (p *Partition) Match(_ context.Context, url string) (*store.Response, error) {
	b, err := os.ReadFile(p.entryPath(url))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	var resp store.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		log.WithError(err).Warnf("dropping corrupt cache entry for %s", url)
		p.discard(p.entryPath(url))
		return nil, store.ErrNotFound
	}
	return &resp, nil
}

// discard removes an entry file that can no longer be decoded.
func (p *Partition) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warnf("failed to remove corrupt cache file %s", filepath.Base(path))
	}
}

// Put implements store.Partition. The entry is written to a temp file and
// renamed into place so readers never see a partial entry. Put does not
// recreate a partition that has been deleted.
func (p *Partition) Put(_ context.Context, url string, resp *store.Response) error {
	stored := resp.Clone()
	stored.URL = url
	b, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(p.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := tmp.Chmod(os.FileMode(0o600)); err != nil { //nolint:mnd
		_ = tmp.Close()
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.entryPath(url)); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Delete implements store.Partition.
func (p *Partition) Delete(_ context.Context, url string) (bool, error) {
	err := os.Remove(p.entryPath(url))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return true, nil
}

// Keys implements store.Partition. The URL lives inside each entry, so every
// file is read.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list partition %s: %w", p.name, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(p.dir, e.Name()))
		if err != nil {
			log.WithError(err).Warnf("skipping unreadable cache file %s", e.Name())
			continue
		}
		var head struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(b, &head); err != nil || head.URL == "" {
			log.Warnf("dropping corrupt cache file %s", e.Name())
			p.discard(filepath.Join(p.dir, e.Name()))
			continue
		}
		keys = append(keys, head.URL)
	}
	sort.Strings(keys)
	return keys, nil
}

// encodeKey hashes k with MD5 and returns the hex string.
func encodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
