package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"techpack-studio/internal/facade"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	var snapshot bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the saved tech files of a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRun(cmd, func(runCtx context.Context, a *app) error {
				if _, err := selectRevision(runCtx, a, &target); err != nil {
					return err
				}
				if snapshot {
					return writeJSON(cmd, a.ledger.Snapshot())
				}
				return writeJSON(cmd, a.hook.ViewModel())
			})
		},
	}
	target.register(cmd, false)
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Print the full ledger snapshot instead of the view model")
	return cmd
}

// selectRevision points the hook at the target and loads the primary revision's saved assets.
func selectRevision(ctx context.Context, a *app, target *targetFlags) (facade.SwitchResult, error) {
	revisionID, err := target.primaryRevision()
	if err != nil {
		return facade.SwitchResult{}, err
	}
	a.hook.SetInputs(target.inputs())

	result, err := a.hook.SelectRevision(ctx, revisionID)
	if err != nil {
		return result, err
	}
	if !result.HasExistingData {
		a.logger.Info("no saved tech files for revision", map[string]interface{}{
			"productId":  target.productID,
			"revisionId": revisionID,
		})
	}
	return result, nil
}

// requireExisting loads the revision and fails when it has nothing saved.
func requireExisting(ctx context.Context, a *app, target *targetFlags) error {
	result, err := selectRevision(ctx, a, target)
	if err != nil {
		return err
	}
	if !result.HasExistingData {
		return fmt.Errorf("revision has no generated tech files; run generate first")
	}
	return nil
}
