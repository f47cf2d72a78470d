package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"techpack-studio/internal/facade"
)

var regenerateTargets = map[string]func(*facade.Hook, context.Context) error{
	"components":    (*facade.Hook).RegenerateAllComponents,
	"close-ups":     (*facade.Hook).RegenerateAllCloseUps,
	"sketches":      (*facade.Hook).RegenerateAllSketches,
	"flat-sketches": (*facade.Hook).RegenerateAllFlatSketches,
	"assembly-view": (*facade.Hook).RegenerateAssemblyView,
}

func regenerateTargetNames() []string {
	names := make([]string, 0, len(regenerateTargets))
	for name := range regenerateTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:       "regenerate <target>",
		Short:     "Regenerate one asset collection of a revision",
		Long:      "Regenerate one asset collection. Targets: " + strings.Join(regenerateTargetNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: regenerateTargetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, ok := regenerateTargets[args[0]]
			if !ok {
				return fmt.Errorf("unknown regenerate target %q (want one of %s)", args[0], strings.Join(regenerateTargetNames(), ", "))
			}
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				if err := requireExisting(runCtx, a, &target); err != nil {
					return err
				}
				if err := run(a.hook, runCtx); err != nil {
					return err
				}
				return writeJSON(cmd, a.ledger.Snapshot())
			})
		},
	}
	target.register(cmd, false)

	cmd.AddCommand(newRegenerateBaseViewCommand(ctx))
	cmd.AddCommand(newRegenerateSketchCommand(ctx))
	return cmd
}

func newRegenerateBaseViewCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	var prompt string
	cmd := &cobra.Command{
		Use:   "base-view <revision-id>",
		Short: "Regenerate the analysis of one base view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				if err := requireExisting(runCtx, a, &target); err != nil {
					return err
				}
				if err := a.hook.RegenerateBaseView(runCtx, args[0], prompt); err != nil {
					return err
				}
				return writeJSON(cmd, a.ledger.BaseViews())
			})
		},
	}
	target.register(cmd, false)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Optional guidance for the regeneration")
	return cmd
}

func newRegenerateSketchCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	var prompt string
	cmd := &cobra.Command{
		Use:   "sketch <view-type>",
		Short: "Regenerate the sketch of one view type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				if err := requireExisting(runCtx, a, &target); err != nil {
					return err
				}
				if err := a.hook.RegenerateSketch(runCtx, args[0], prompt); err != nil {
					return err
				}
				return writeJSON(cmd, a.ledger.Sketches())
			})
		},
	}
	target.register(cmd, false)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Guidance for the regeneration")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
