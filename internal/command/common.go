// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/aws"
	"github.com/staranto/shellcache/internal/fetch"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/meta"
	"github.com/staranto/shellcache/internal/output"
	"github.com/staranto/shellcache/internal/store"
	"github.com/staranto/shellcache/internal/store/disk"
	"github.com/staranto/shellcache/internal/store/memory"
	s3store "github.com/staranto/shellcache/internal/store/s3"
	"github.com/staranto/shellcache/internal/worker"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// OpenStorage builds the partition store selected by --store.
func OpenStorage(ctx context.Context, cmd *cli.Command) (store.Storage, error) {
	switch kind := cmd.String("store"); kind {
	case StoreMemory:
		log.Warn("memory store selected: nothing outlives this command")
		return memory.New(), nil
	case StoreDisk:
		dir, ok := disk.Dir(cmd.String("cache-dir"))
		if !ok {
			return nil, fmt.Errorf("failed to resolve a cache directory, set --cache-dir")
		}
		log.Debugf("disk store at %s", dir)
		return disk.New(dir)
	case StoreS3:
		cfg, err := aws.LoadAWSConfig(ctx,
			aws.WithProfile(cmd.String("profile")),
			aws.WithRegion(cmd.String("region")))
		if err != nil {
			return nil, err
		}
		client := aws.NewS3(cfg, aws.WithS3Endpoint(cmd.String("endpoint")))
		log.Debugf("s3 store at s3://%s/%s", cmd.String("bucket"), cmd.String("prefix"))
		return s3store.New(client, cmd.String("bucket"), cmd.String("prefix"))
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

// LoadBundle reads the bundle named by --bundle.
func LoadBundle(cmd *cli.Command) (*manifest.Bundle, error) {
	b, err := manifest.LoadBundle(cmd.String("bundle"))
	if err != nil {
		return nil, err
	}
	log.WithField("version", b.Version).
		WithField("resources", b.Resources.Len()).
		WithField("core", len(b.Core)).
		Debug("loaded bundle")
	return b, nil
}

// ManagerOptions assembles worker options from the store flags.
func ManagerOptions(ctx context.Context, cmd *cli.Command) (worker.Options, error) {
	if err := StoreFlagsValidator(ctx, cmd); err != nil {
		return worker.Options{}, err
	}
	b, err := LoadBundle(cmd)
	if err != nil {
		return worker.Options{}, err
	}
	s, err := OpenStorage(ctx, cmd)
	if err != nil {
		return worker.Options{}, err
	}
	return worker.Options{
		Origin:      cmd.String("origin"),
		Bundle:      b,
		Storage:     s,
		Fetcher:     fetch.NewHTTP(),
		Names:       partitionNames(cmd),
		Concurrency: cmd.Int("concurrency"),
	}, nil
}

// NewManager builds a manager from the store flags.
func NewManager(ctx context.Context, cmd *cli.Command) (*worker.Manager, error) {
	opts, err := ManagerOptions(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return worker.New(opts)
}

// OutputOptions reads the output flags.
func OutputOptions(cmd *cli.Command) output.Options {
	color := cmd.Bool("color")
	if !cmd.IsSet("color") {
		color = output.ColorDefault(os.Stdout)
	}
	return output.Options{
		Format: cmd.String("output"),
		Color:  color,
		Titles: cmd.Bool("titles"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
	}
}
