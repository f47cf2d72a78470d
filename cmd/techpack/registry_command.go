package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"techpack-studio/pkg/registry"
)

func newRegistryCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and edit the stage catalog",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "configs/stage-registry.json", "Path to registry file")

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the built-in catalog to --path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("registry file %s already exists", path)
			}
			if err := registry.SaveRegistry(registry.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote stage registry to %s\n", path)
			return nil
		},
	})

	var id, field, value string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update one field of a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.UpdateStage(id, field, value); err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			if err := registry.SaveRegistry(reg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated stage %s, field %s to %s\n", id, field, value)
			return nil
		},
	}
	update.Flags().StringVar(&id, "id", "", "Stage ID to update")
	update.Flags().StringVar(&field, "field", "", "Field to update (endpoint, creditCost, placeholderCount, ...)")
	update.Flags().StringVar(&value, "value", "", "New value for the field")
	_ = update.MarkFlagRequired("id")
	_ = update.MarkFlagRequired("field")
	_ = update.MarkFlagRequired("value")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the registry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d stages.\n", len(reg.Stages))
			return nil
		},
	})

	var builtin bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stages with their costs",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()
			if !builtin {
				loaded, err := registry.LoadRegistry(path)
				if err != nil {
					return fmt.Errorf("failed to load registry: %w", err)
				}
				reg = loaded
			}
			printStages(cmd, reg)
			return nil
		},
	}
	list.Flags().BoolVar(&builtin, "builtin", false, "List the built-in catalog instead of --path")
	cmd.AddCommand(list)

	return cmd
}

func printStages(cmd *cobra.Command, reg *registry.StageRegistry) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENDPOINT\tCOST\tPER REVISION\tPLACEHOLDERS")
	for _, s := range reg.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%d\n", s.ID, s.Endpoint, s.CreditCost, s.PerRevision, s.PlaceholderCount)
	}
	_ = tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "Full run cost (one revision): %d credits\n", reg.TotalCost(1))
}
