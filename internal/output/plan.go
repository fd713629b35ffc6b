// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
	"gopkg.in/yaml.v2"
)

// PlanReport is what the next activation would do to the content partition.
type PlanReport struct {
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Previous string   `json:"previous" yaml:"previous"`
	Purge    bool     `json:"purge" yaml:"purge"`
	Evict    []string `json:"evict" yaml:"evict"`
	Keep     []string `json:"keep" yaml:"keep"`
	Stage    []string `json:"stage" yaml:"stage"`
	// Missing are manifest keys that will not be cached after activation.
	Missing []string `json:"missing" yaml:"missing"`
	// Diff is the text manifest diff. Only text output shows it.
	Diff string `json:"-" yaml:"-"`
}

// WritePlan renders a PlanReport.
func WritePlan(w io.Writer, p PlanReport, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case FormatYAML:
		out, err := yaml.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	}

	version := p.Version
	if version == "" {
		version = "-"
	}
	summary := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col > 0 {
				return lipgloss.NewStyle().PaddingLeft(1)
			}
			return lipgloss.NewStyle()
		}).
		Rows(
			[]string{"version", version},
			[]string{"previous", p.Previous},
			[]string{"purge", fmt.Sprintf("%t", p.Purge)},
			[]string{"evict", fmt.Sprintf("%d", len(p.Evict))},
			[]string{"keep", fmt.Sprintf("%d", len(p.Keep))},
			[]string{"stage", fmt.Sprintf("%d", len(p.Stage))},
			[]string{"missing", fmt.Sprintf("%d", len(p.Missing))},
		)
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}

	sections := []struct {
		name string
		keys []string
	}{
		{"evict", p.Evict},
		{"stage", p.Stage},
	}
	for _, s := range sections {
		if len(s.keys) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s:\n  %s\n", s.name, strings.Join(s.keys, "\n  ")); err != nil {
			return err
		}
	}

	if p.Diff != "" {
		if _, err := fmt.Fprintf(w, "\nmanifest:\n%s", p.Diff); err != nil {
			return err
		}
	}
	return nil
}

// ManifestDiff returns an ascii diff between two JSON manifests, or "" when
// they are equal. A nil prev diffs against an empty manifest.
func ManifestDiff(prev, curr []byte, color bool) (string, error) {
	if prev == nil {
		prev = []byte("{}")
	}
	d, err := gojsondiff.New().Compare(prev, curr)
	if err != nil {
		return "", fmt.Errorf("failed to diff manifests: %w", err)
	}
	if !d.Modified() {
		return "", nil
	}

	var left map[string]interface{}
	if err := json.Unmarshal(prev, &left); err != nil {
		return "", fmt.Errorf("failed to decode manifest: %w", err)
	}
	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: false,
		Coloring:       color,
	})
	return f.Format(d)
}
