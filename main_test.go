// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/shellcache/internal/config"
)

const setsYAML = `
status:
  defaults:
    - --output json
  wide:
    - --output text
    - --sort -size
manifest:
  defaults:
    - --core index.html
`

func TestMangleArguments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(setsYAML), 0o600))
	_, err := config.Load(path)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "defaults applied",
			args: []string{"shellcache", "status", "--origin", "https://a.test"},
			want: []string{"shellcache", "status", "--output", "json", "--origin", "https://a.test"},
		},
		{
			name: "named set replaces defaults",
			args: []string{"shellcache", "status", "@wide", "-p", "x"},
			want: []string{"shellcache", "status", "--output", "text", "--sort", "-size", "-p", "x"},
		},
		{
			name: "unknown set adds nothing",
			args: []string{"shellcache", "status", "@nope"},
			want: []string{"shellcache", "status"},
		},
		{
			name: "no sets for command",
			args: []string{"shellcache", "install", "-b", "b.json"},
			want: []string{"shellcache", "install", "-b", "b.json"},
		},
		{
			name: "help wins",
			args: []string{"shellcache", "status", "@wide", "-h"},
			want: []string{"shellcache", "status", "--help"},
		},
		{
			name: "subcommand stays first",
			args: []string{"shellcache", "manifest", "build", "dist"},
			want: []string{"shellcache", "manifest", "build", "--core", "index.html", "dist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mangleArguments(tt.args))
		})
	}
}

func TestRealMain_Version(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	assert.Equal(t, 0, realMain([]string{"shellcache", "--version"}))
}
