// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/meta"
)

// InstallCommandAction stages the core resources in the temp partition.
func InstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "install"

	mgr, err := NewManager(ctx, cmd)
	if err != nil {
		return err
	}
	if err := mgr.Install(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(m.Out(), "staged %d core resources in %s\n", len(mgr.Core()), mgr.Names().Temp)
	return err
}

// ActivateCommandAction reconciles the content partition with the bundle and
// promotes whatever install staged.
func ActivateCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "activate"

	mgr, err := NewManager(ctx, cmd)
	if err != nil {
		return err
	}
	mgr.Activate(ctx)
	if degraded, derr := mgr.Degraded(); degraded {
		return fmt.Errorf("failed to activate, all partitions were cleared: %w", derr)
	}
	_, err = fmt.Fprintf(m.Out(), "activated %s\n", versionOrDash(mgr.Version()))
	return err
}

// PrefetchCommandAction downloads every manifest resource not cached yet.
func PrefetchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "prefetch"

	mgr, err := NewManager(ctx, cmd)
	if err != nil {
		return err
	}
	n, err := mgr.DownloadOffline(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(m.Out(), "downloaded %d resources\n", n)
	return err
}

func versionOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func lifecycleCommand(name, usage string, action cli.ActionFunc, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		UsageText: fmt.Sprintf("shellcache %s --origin URL --bundle FILE [options]", name),
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  NewStoreFlags(name, meta.Config.Source),
		Action: action,
	}
}

// InstallCommandBuilder constructs the cli.Command for "install".
func InstallCommandBuilder(meta meta.Meta) *cli.Command {
	return lifecycleCommand("install", "stage the core resources", InstallCommandAction, meta)
}

// ActivateCommandBuilder constructs the cli.Command for "activate".
func ActivateCommandBuilder(meta meta.Meta) *cli.Command {
	return lifecycleCommand("activate", "reconcile cached content and promote staged resources",
		ActivateCommandAction, meta)
}

// PrefetchCommandBuilder constructs the cli.Command for "prefetch".
func PrefetchCommandBuilder(meta meta.Meta) *cli.Command {
	return lifecycleCommand("prefetch", "download every resource for offline use", PrefetchCommandAction, meta)
}
