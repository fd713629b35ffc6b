// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
)

// Bundle is everything one deployment declares: its resources and the core
// (app shell) subset fetched at install.
type Bundle struct {
	Version   string    `json:"version,omitempty"`
	Resources *Manifest `json:"resources"`
	Core      []string  `json:"core"`
}

// ParseBundle decodes and validates a bundle document.
func ParseBundle(data []byte) (*Bundle, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("bundle is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	res := doc.Get("resources")
	if !res.Exists() {
		return nil, errors.New("bundle has no resources")
	}
	resources, err := fromResult(res)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}

	b := &Bundle{
		Version:   doc.Get("version").String(),
		Resources: resources,
	}
	core := doc.Get("core")
	if core.Exists() && !core.IsArray() {
		return nil, errors.New("bundle core must be an array")
	}
	for _, c := range core.Array() {
		b.Core = append(b.Core, c.String())
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every core key is a declared resource.
func (b *Bundle) Validate() error {
	if b.Resources == nil {
		return errors.New("bundle has no resources")
	}
	seen := map[string]bool{}
	for _, c := range b.Core {
		if !b.Resources.Has(c) {
			return fmt.Errorf("core resource %q is not in the manifest", c)
		}
		if seen[c] {
			return fmt.Errorf("core resource %q listed twice", c)
		}
		seen[c] = true
	}
	return nil
}

// LoadBundle reads a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	b, err := ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded bundle %s: %d resources, %d core", path, b.Resources.Len(), len(b.Core))
	return b, nil
}

// Marshal renders the bundle as indented JSON.
func (b *Bundle) Marshal() ([]byte, error) {
	core := b.Core
	if core == nil {
		core = []string{}
	}
	out := struct {
		Version   string    `json:"version,omitempty"`
		Resources *Manifest `json:"resources"`
		Core      []string  `json:"core"`
	}{b.Version, b.Resources, core}
	return json.MarshalIndent(out, "", "  ")
}

// Save writes the bundle to path.
func (b *Bundle) Save(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}
