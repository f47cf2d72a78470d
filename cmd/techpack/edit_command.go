package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	var fieldPath, prompt string
	cmd := &cobra.Command{
		Use:   "edit <revision-id>",
		Short: "Edit one field of a base view analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				if err := requireExisting(runCtx, a, &target); err != nil {
					return err
				}
				if err := a.hook.EditField(runCtx, args[0], fieldPath, prompt); err != nil {
					return err
				}
				return writeJSON(cmd, map[string]interface{}{
					"baseViews":      a.ledger.BaseViews(),
					"editOperations": a.ledger.EditOperations(),
				})
			})
		},
	}
	target.register(cmd, false)
	cmd.Flags().StringVar(&fieldPath, "field", "", "Dotted path of the field to edit")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Edit instruction")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
