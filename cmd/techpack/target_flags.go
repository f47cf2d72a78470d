package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"techpack-studio/internal/facade"
)

// targetFlags identifies the product and revisions a command works on.
type targetFlags struct {
	productID   string
	revisionIDs []string
	imageURL    string
}

func (f *targetFlags) register(cmd *cobra.Command, withImage bool) {
	cmd.Flags().StringVarP(&f.productID, "product", "p", "", "Product ID")
	cmd.Flags().StringSliceVarP(&f.revisionIDs, "revision", "r", nil, "Revision ID (repeatable)")
	if withImage {
		cmd.Flags().StringVar(&f.imageURL, "image", "", "Primary product image URL")
	}
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("revision")
}

func (f *targetFlags) inputs() facade.Inputs {
	revisions := make([]string, 0, len(f.revisionIDs))
	for _, id := range f.revisionIDs {
		if id = strings.TrimSpace(id); id != "" {
			revisions = append(revisions, id)
		}
	}
	return facade.Inputs{
		ProductID:       strings.TrimSpace(f.productID),
		RevisionIDs:     revisions,
		PrimaryImageURL: strings.TrimSpace(f.imageURL),
	}
}

func (f *targetFlags) primaryRevision() (string, error) {
	in := f.inputs()
	if len(in.RevisionIDs) == 0 {
		return "", fmt.Errorf("at least one --revision is required")
	}
	return in.RevisionIDs[0], nil
}
