// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/output"
	"github.com/staranto/shellcache/internal/worker"
)

// Store kinds accepted by --store.
const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
	StoreS3     = "s3"
)

// configSources returns the env vars, then ns.name and name from the config
// file at path, as a value source chain.
func configSources(ns, name, path string, envs ...string) cli.ValueSourceChain {
	chain := make([]cli.ValueSource, 0, len(envs)+2)
	for _, e := range envs {
		chain = append(chain, cli.EnvVar(e))
	}
	chain = append(chain,
		yaml.YAML(ns+"."+name, altsrc.StringSourcer(path)),
		yaml.YAML(name, altsrc.StringSourcer(path)),
	)
	return cli.NewValueSourceChain(chain...)
}

// NewGlobalFlags returns the output flags shared by commands that print
// datasets. ns is the config namespace and path the config file.
func NewGlobalFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output. Defaults to on for a terminal",
			Sources: configSources(ns, "color", path),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml)",
			Sources: configSources(ns, "output", path),
			Value:   output.FormatText,
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: configSources(ns, "sort", path),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: configSources(ns, "titles", path),
			Value:   true,
		},
	}
}

// NewStoreFlags returns the flags that locate the deployment and the
// partition store.
func NewStoreFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "origin",
			Usage:   "origin the app is served from, e.g. https://example.com",
			Sources: configSources(ns, "origin", path, "SHELLCACHE_ORIGIN"),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OriginValidator)
			},
		},
		&cli.StringFlag{
			Name:    "bundle",
			Aliases: []string{"b"},
			Usage:   "bundle file with the resource manifest and core set",
			Sources: configSources(ns, "bundle", path, "SHELLCACHE_BUNDLE"),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "partition store (memory, disk, s3)",
			Sources: configSources(ns, "store", path, "SHELLCACHE_STORE"),
			Value:   StoreDisk,
			Validator: func(value string) error {
				return FlagValidators(value, StoreValidator)
			},
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "disk store directory",
			Sources: configSources(ns, "cache-dir", path),
		},
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "s3 store bucket",
			Sources: configSources(ns, "bucket", path, "SHELLCACHE_BUCKET"),
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "s3 store key prefix",
			Sources: configSources(ns, "prefix", path),
			Value:   "shellcache",
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "s3 store region. Defaults to the AWS environment",
			Sources: configSources(ns, "region", path),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS shared config profile",
			Sources: configSources(ns, "profile", path),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "S3-compatible endpoint URL",
			Sources: configSources(ns, "endpoint", path, "SHELLCACHE_S3_ENDPOINT"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "parallel fetches during install and prefetch",
			Sources: configSources(ns, "concurrency", path),
			Value:   8,
		},
		&cli.StringFlag{
			Name:    "partition-prefix",
			Usage:   "prefix for the temp, content and manifest partition names",
			Sources: configSources(ns, "partition-prefix", path),
			Value:   "shellcache",
		},
	}
}

// partitionNames derives the three partition names from --partition-prefix.
func partitionNames(cmd *cli.Command) worker.Names {
	p := cmd.String("partition-prefix")
	if p == "" || p == "shellcache" {
		return worker.DefaultNames()
	}
	return worker.Names{
		Temp:     p + "-temp",
		Content:  p + "-content",
		Manifest: p + "-manifest",
	}
}
