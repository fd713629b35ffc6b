// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/meta"
)

// InitApp builds the command tree. Command output goes to stdout, or to
// out when one is given.
func InitApp(ctx context.Context, args []string, out ...io.Writer) (*cli.Command, error) {
	sd, _ := os.Getwd()

	// The arg[1] immediately following the binary (arg[0]) is the subcommand
	// and also the namespace key used when retrieving config values. It could
	// be -h/--help, so ignore it if it appears to be a flag.
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		config.Config.Namespace = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		// A missing config file is normal.
		log.WithError(err).Debug("no config loaded")
	}
	meta := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: sd,
	}
	if len(out) > 0 {
		meta.Stdout = out[0]
	}

	app := &cli.Command{
		Name:   "shellcache",
		Usage:  "offline cache for static web app shells",
		Writer: meta.Out(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "shellcache version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		ActivateCommandBuilder(meta),
		InstallCommandBuilder(meta),
		ManifestCommandBuilder(meta),
		MessageCommandBuilder(meta),
		PlanCommandBuilder(meta),
		PrefetchCommandBuilder(meta),
		ServeCommandBuilder(meta),
		StatusCommandBuilder(meta),
		CompletionCommandBuilder(meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sortFlags(cmd)
	}

	return app, nil
}

func sortFlags(cmd *cli.Command) {
	sort.Slice(cmd.Flags, func(i, j int) bool {
		return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
	})
	for _, sub := range cmd.Commands {
		sortFlags(sub)
	}
}
