// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// RootKey is the manifest key of the entry document.
const RootKey = "/"

// Manifest maps origin-relative resource paths to content fingerprints. It
// keeps declaration order so bulk operations run in a stable order. A
// Manifest is never modified after construction.
type Manifest struct {
	keys         []string
	fingerprints map[string]string
}

// FromMap builds a Manifest from m, ordering keys lexically.
func FromMap(m map[string]string) *Manifest {
	keys := make([]string, 0, len(m))
	fps := make(map[string]string, len(m))
	for k, v := range m {
		keys = append(keys, k)
		fps[k] = v
	}
	sort.Strings(keys)
	return &Manifest{keys: keys, fingerprints: fps}
}

// Parse decodes a flat JSON object of path -> fingerprint, keeping the order
// the keys appear in. A repeated key keeps its first position and its last
// value.
func Parse(data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("manifest is not valid JSON")
	}
	return fromResult(gjson.ParseBytes(data))
}

func fromResult(r gjson.Result) (*Manifest, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("manifest must be a JSON object, got %s", r.Type)
	}

	m := &Manifest{fingerprints: map[string]string{}}
	var err error
	r.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.String {
			err = fmt.Errorf("fingerprint for %q is not a string", k.String())
			return false
		}
		key := k.String()
		if key == "" {
			err = errors.New("manifest contains an empty key")
			return false
		}
		if _, dup := m.fingerprints[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.fingerprints[key] = v.String()
		return true
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Keys returns the resource paths in declaration order.
func (m *Manifest) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of resources.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Fingerprint returns the fingerprint recorded for key.
func (m *Manifest) Fingerprint(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	fp, ok := m.fingerprints[key]
	return fp, ok
}

// Has reports whether key is a declared resource.
func (m *Manifest) Has(key string) bool {
	_, ok := m.Fingerprint(key)
	return ok
}

// Map returns a copy of the path -> fingerprint mapping.
func (m *Manifest) Map() map[string]string {
	out := make(map[string]string, m.Len())
	for _, k := range m.Keys() {
		out[k] = m.fingerprints[k]
	}
	return out
}

// MarshalJSON writes the flat object in declaration order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.fingerprints[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Previous is the result of loading the persisted manifest: either Absent or
// Present.
type Previous interface {
	previous()
}

// Absent means no manifest was persisted, or it could not be found.
type Absent struct{}

// Present carries the persisted manifest.
type Present struct {
	Manifest *Manifest
}

func (Absent) previous()  {}
func (Present) previous() {}
