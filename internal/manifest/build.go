// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

// IndexDocument is the file that also answers for RootKey.
const IndexDocument = "index.html"

// Build walks a built web app under dir and fingerprints every file with
// MD5. Dot files and anything matched by skip are left out. If the tree has
// an index.html, RootKey is added with the same fingerprint.
func Build(dir string, core []string, skip ...string) (*Bundle, error) {
	root := os.DirFS(dir)
	m := &Manifest{fingerprints: map[string]string{}}

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		for _, pattern := range skip {
			if ok, _ := filepath.Match(pattern, path); ok {
				log.Debugf("skipping %s (matches %s)", path, pattern)
				return nil
			}
		}

		fp, err := fingerprint(root, path)
		if err != nil {
			return err
		}
		m.keys = append(m.keys, path)
		m.fingerprints[path] = fp
		if path == IndexDocument {
			m.keys = append(m.keys, RootKey)
			m.fingerprints[RootKey] = fp
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", dir, err)
	}

	b := &Bundle{Resources: m, Core: core}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func fingerprint(root fs.FS, path string) (string, error) {
	f, err := root.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
