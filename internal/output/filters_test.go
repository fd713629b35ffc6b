// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
	}{
		{name: "empty spec", spec: ""},
		{
			name: "exact match",
			spec: "key=main.dart.js",
			want: []Filter{{Key: "key", Operand: "=", Target: "main.dart.js"}},
		},
		{
			name: "negated prefix",
			spec: "key!^icons/",
			want: []Filter{{Key: "key", Operand: "^", Target: "icons/", Negate: true}},
		},
		{
			name: "regex",
			spec: "url/\\.png$",
			want: []Filter{{Key: "url", Operand: "/", Target: "\\.png$"}},
		},
		{
			name: "multiple filters",
			spec: "status=200,size>1000",
			want: []Filter{
				{Key: "status", Operand: "=", Target: "200"},
				{Key: "size", Operand: ">", Target: "1000"},
			},
		},
		{
			name:      "custom delimiter",
			spec:      "key@,|status=200",
			delimiter: "|",
			want: []Filter{
				{Key: "key", Operand: "@", Target: ","},
				{Key: "status", Operand: "=", Target: "200"},
			},
		},
		{name: "no operator", spec: "justakey"},
		{name: "no key", spec: "=value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delimiter != "" {
				t.Setenv(EnvFilterDelim, tt.delimiter)
			}
			got := BuildFilters(tt.spec)
			assert.Len(t, got, len(tt.want))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFilterDataset(t *testing.T) {
	rows := []map[string]interface{}{
		{"key": "main.dart.js", "status": 200, "size": 2048, "core": true, "tags": []string{"core", "js"}},
		{"key": "icons/icon-192.png", "status": 200, "size": 512, "core": false, "tags": []string{"img"}},
		{"key": "broken.js", "status": 503, "size": 0, "core": false, "tags": []string{"js"}},
	}

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"no filter", "", []string{"main.dart.js", "icons/icon-192.png", "broken.js"}},
		{"string equality", "key=broken.js", []string{"broken.js"}},
		{"case-insensitive", "key~MAIN.DART.JS", []string{"main.dart.js"}},
		{"prefix", "key^icons/", []string{"icons/icon-192.png"}},
		{"negated contains", "key!@.js", []string{"icons/icon-192.png"}},
		{"regex", "key/\\.js$", []string{"main.dart.js", "broken.js"}},
		{"numeric equality", "status=503", []string{"broken.js"}},
		{"numeric greater", "size>600", []string{"main.dart.js"}},
		{"numeric not less", "size!<512", []string{"main.dart.js", "icons/icon-192.png"}},
		{"bool", "core=false", []string{"icons/icon-192.png", "broken.js"}},
		{"list membership", "tags@js", []string{"main.dart.js", "broken.js"}},
		{"negated list membership", "tags!@js", []string{"icons/icon-192.png"}},
		{"combined", "tags@js,status=200", []string{"main.dart.js"}},
		{"unknown key is ignored", "nope=1", []string{"main.dart.js", "icons/icon-192.png", "broken.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range FilterDataset(rows, tt.spec) {
				got = append(got, r["key"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckStringOperand(t *testing.T) {
	assert.True(t, checkStringOperand("b", Filter{Operand: ">", Target: "a"}))
	assert.False(t, checkStringOperand("b", Filter{Operand: "<", Target: "a"}))
	assert.False(t, checkStringOperand("x", Filter{Operand: "/", Target: "("}))
	assert.False(t, checkStringOperand("x", Filter{Operand: "?", Target: "x"}))
}
