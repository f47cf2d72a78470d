package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full tech-pack pipeline for a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				a.hook.SetInputs(target.inputs())
				if err := a.hook.GenerateComplete(runCtx); err != nil {
					return err
				}
				return writeJSON(cmd, a.hook.ViewModel())
			})
		},
	}
	target.register(cmd, true)
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newBaseViewsCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "base-views",
		Short: "Detect the category and analyze base views only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				a.hook.SetInputs(target.inputs())
				if err := a.hook.GenerateBaseViewsOnly(runCtx); err != nil {
					return err
				}
				return writeJSON(cmd, a.hook.ViewModel())
			})
		},
	}
	target.register(cmd, true)
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
