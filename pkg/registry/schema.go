// pkg/registry/schema.go
package registry

// StageRegistry is the catalog of remote generation endpoints.
type StageRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Stages      []Stage `json:"stages"`
}

// Stage describes one remote endpoint and the UI contract attached to it.
type Stage struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	Endpoint         string `json:"endpoint"`
	CreditKey        string `json:"creditKey,omitempty"`
	CreditCost       int    `json:"creditCost"`
	PerRevision      bool   `json:"perRevision,omitempty"`
	PlaceholderCount int    `json:"placeholderCount,omitempty"`
	Color            string `json:"color,omitempty"`
	Pipeline         bool   `json:"pipeline"`
}

const (
	StageCategory         = "category"
	StageBaseViews        = "base-views"
	StageComponents       = "components"
	StageCloseUps         = "close-ups"
	StageSketches         = "sketches"
	StageFlatSketches     = "flat-sketches"
	StageAssemblyView     = "assembly-view"
	StageEdit             = "edit"
	StageRegenerateView   = "regenerate-view"
	StageRegenerateSketch = "regenerate-sketch"
	StageExistingFiles    = "get-existing-files"
)
