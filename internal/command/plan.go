// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/meta"
	"github.com/staranto/shellcache/internal/output"
	"github.com/staranto/shellcache/internal/reconcile"
	"github.com/staranto/shellcache/internal/worker"
)

// PlanCommandAction shows what the next activation would do.
func PlanCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "plan"

	mgr, err := NewManager(ctx, cmd)
	if err != nil {
		return err
	}
	opts := OutputOptions(cmd)
	report, err := BuildPlanReport(ctx, mgr, opts.Format == output.FormatText, opts.Color)
	if err != nil {
		return err
	}
	return output.WritePlan(m.Out(), report, opts)
}

// BuildPlanReport runs a dry-run reconcile. withDiff adds the manifest diff.
func BuildPlanReport(ctx context.Context, mgr *worker.Manager, withDiff, color bool) (output.PlanReport, error) {
	plan, prev, err := mgr.Plan(ctx)
	if err != nil {
		return output.PlanReport{}, err
	}

	report := output.PlanReport{
		Version:  mgr.Version(),
		Previous: "absent",
		Purge:    plan.Purge,
		Evict:    plan.ToDelete,
		Keep:     plan.ToKeep,
		Stage:    mgr.Core(),
	}
	cached := append(append([]string(nil), plan.ToKeep...), report.Stage...)
	report.Missing = reconcile.Missing(mgr.Manifest(), cached)

	var prevJSON []byte
	if p, ok := prev.(manifest.Present); ok {
		report.Previous = "present"
		if prevJSON, err = p.Manifest.MarshalJSON(); err != nil {
			return output.PlanReport{}, err
		}
	}

	if withDiff {
		currJSON, err := mgr.Manifest().MarshalJSON()
		if err != nil {
			return output.PlanReport{}, err
		}
		if report.Diff, err = output.ManifestDiff(prevJSON, currJSON, color); err != nil {
			return output.PlanReport{}, err
		}
	}
	return report, nil
}

// PlanCommandBuilder constructs the cli.Command for "plan".
func PlanCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "show what the next activation would evict, keep and stage",
		UsageText: "shellcache plan --origin URL --bundle FILE [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append(NewStoreFlags("plan", meta.Config.Source),
			NewGlobalFlags("plan", meta.Config.Source)...),
		Action: PlanCommandAction,
	}
}
