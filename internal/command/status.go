// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/meta"
	"github.com/staranto/shellcache/internal/output"
	"github.com/staranto/shellcache/internal/store"
	"github.com/staranto/shellcache/internal/worker"
)

// statusColumns are the attributes shown in text output.
var statusColumns = []output.Column{
	{Key: "partition"},
	{Key: "key"},
	{Key: "status"},
	{Key: "size", Text: output.Bytes},
	{Key: "stored_at", Title: "age", Text: output.Age},
	{Key: "listed"},
}

// StatusCommandAction lists partition entries.
func StatusCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "status"

	if cmd.String("store") == StoreS3 && cmd.String("bucket") == "" {
		return errors.New("--bucket is required with --store=s3")
	}

	origin := ""
	if o := cmd.String("origin"); o != "" {
		var err error
		if origin, err = manifest.NormalizeOrigin(o); err != nil {
			return err
		}
	}

	s, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	names := partitionNames(cmd)

	rows, err := StatusRows(ctx, s, names, origin, cmd.StringSlice("partition"))
	if err != nil {
		return err
	}
	return output.SliceDiceSpit(m.Out(), rows, statusColumns, OutputOptions(cmd))
}

// StatusRows builds one row per cached entry. With an origin, keys are shown
// as manifest keys and "listed" says whether the persisted manifest names
// them. only restricts the partitions listed.
func StatusRows(ctx context.Context, s store.Storage, names worker.Names, origin string, only []string) ([]map[string]interface{}, error) {
	all, err := s.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var persisted *manifest.Manifest
	if slices.Contains(all, names.Manifest) {
		p, err := s.Open(ctx, names.Manifest)
		if err != nil {
			return nil, err
		}
		if r, err := p.Match(ctx, worker.ManifestEntryKey); err == nil {
			if persisted, err = manifest.Parse(r.Body); err != nil {
				log.WithError(err).Warn("persisted manifest is unreadable")
			}
		}
	}

	var rows []map[string]interface{}
	for _, name := range all {
		if len(only) > 0 && !slices.Contains(only, name) {
			continue
		}
		p, err := s.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		urls, err := p.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", name, err)
		}
		for _, u := range urls {
			r, err := p.Match(ctx, u)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}

			key := u
			if origin != "" && name != names.Manifest {
				key = manifest.ContentKey(origin, u)
			}
			rows = append(rows, map[string]interface{}{
				"partition":    name,
				"key":          key,
				"url":          u,
				"status":       r.Status,
				"size":         len(r.Body),
				"stored_at":    r.StoredAt,
				"content_type": r.Header.Get("Content-Type"),
				"listed":       name != names.Manifest && persisted.Has(key),
			})
		}
	}
	return rows, nil
}

// StatusCommandBuilder constructs the cli.Command for "status".
func StatusCommandBuilder(meta meta.Meta) *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:    "partition",
			Aliases: []string{"p"},
			Usage:   "only list these partitions",
		},
	}, NewStoreFlags("status", meta.Config.Source)...)

	return &cli.Command{
		Name:      "status",
		Usage:     "list cache partitions and their entries",
		UsageText: "shellcache status [--origin URL] [--partition NAME] [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  append(flags, NewGlobalFlags("status", meta.Config.Source)...),
		Action: StatusCommandAction,
	}
}
