// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/meta"
)

// ManifestBuildCommandAction fingerprints a build directory into a bundle.
func ManifestBuildCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "manifest"

	dir := cmd.Args().First()
	if dir == "" {
		return errors.New("a build directory is required")
	}

	b, err := manifest.Build(dir, cmd.StringSlice("core"), cmd.StringSlice("skip")...)
	if err != nil {
		return err
	}
	b.Version = cmd.String("label")

	if out := cmd.String("out"); out != "" {
		if err := b.Save(out); err != nil {
			return err
		}
		_, err = fmt.Fprintf(m.Out(), "wrote %d resources (%d core) to %s\n",
			b.Resources.Len(), len(b.Core), out)
		return err
	}

	data, err := b.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(m.Out(), string(data))
	return err
}

// ManifestCommandBuilder constructs the cli.Command for "manifest" and its
// subcommands.
func ManifestCommandBuilder(meta meta.Meta) *cli.Command {
	build := &cli.Command{
		Name:      "build",
		Usage:     "fingerprint a build directory into a bundle",
		UsageText: "shellcache manifest build DIR [--core KEY]... [--skip GLOB]... [--out FILE] [--label TEXT]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "core",
				Usage:   "resource key to fetch at install",
				Sources: configSources("manifest", "core", meta.Config.Source),
			},
			&cli.StringSliceFlag{
				Name:    "skip",
				Usage:   "glob of paths to leave out",
				Sources: configSources("manifest", "skip", meta.Config.Source),
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"O"},
				Usage:   "bundle file to write. Defaults to stdout",
				Validator: func(value string) error {
					return FlagValidators(value, JammedFlagValidator)
				},
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "version label recorded in the bundle",
			},
		},
		Action: ManifestBuildCommandAction,
	}

	return &cli.Command{
		Name:     "manifest",
		Usage:    "work with resource manifests",
		Commands: []*cli.Command{build},
	}
}
