// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

const basePath = "/api/tech-pack/"

// Default returns the built-in stage catalog. Costs are documented to callers and not enforced here.
func Default() *StageRegistry {
	return &StageRegistry{
		Version: "1.0.0",
		Stages: []Stage{
			{ID: StageCategory, DisplayName: "Detecting category", Endpoint: basePath + "detect-category", CreditKey: "categoryDetection", CreditCost: 0, Color: "blue", Pipeline: true},
			{ID: StageBaseViews, DisplayName: "Analyzing base views", Endpoint: basePath + "analyze-base-views", CreditKey: "baseViews", CreditCost: 1, PerRevision: true, Color: "indigo", Pipeline: true},
			{ID: StageComponents, DisplayName: "Generating components", Endpoint: basePath + "generate-components", CreditKey: "components", CreditCost: 2, PlaceholderCount: 5, Color: "purple", Pipeline: true},
			{ID: StageCloseUps, DisplayName: "Generating close-ups", Endpoint: basePath + "generate-closeups", CreditKey: "closeUps", CreditCost: 2, PlaceholderCount: 3, Color: "pink", Pipeline: true},
			{ID: StageSketches, DisplayName: "Generating technical sketches", Endpoint: basePath + "generate-sketches", CreditKey: "sketches", CreditCost: 6, PlaceholderCount: 3, Color: "orange", Pipeline: true},
			{ID: StageFlatSketches, DisplayName: "Generating flat sketches", Endpoint: basePath + "generate-flat-sketches", CreditKey: "flatSketches", CreditCost: 2, PlaceholderCount: 3, Color: "amber", Pipeline: true},
			{ID: StageAssemblyView, DisplayName: "Generating assembly view", Endpoint: basePath + "generate-assembly-view", CreditKey: "assemblyView", CreditCost: 2, PlaceholderCount: 1, Color: "teal", Pipeline: true},
			{ID: StageEdit, DisplayName: "Editing field", Endpoint: basePath + "edit", CreditKey: "edits", CreditCost: 1},
			{ID: StageRegenerateView, DisplayName: "Regenerating view", Endpoint: basePath + "regenerate-view", CreditKey: "regenerations", CreditCost: 1},
			{ID: StageRegenerateSketch, DisplayName: "Regenerating sketch", Endpoint: basePath + "regenerate-sketch", CreditKey: "regenerations", CreditCost: 1},
			{ID: StageExistingFiles, DisplayName: "Loading existing files", Endpoint: basePath + "get-existing-files"},
		},
	}
}

// LoadRegistry reads a catalog from disk and checks it covers every stage.
func LoadRegistry(path string) (*StageRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg StageRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks that every stage the orchestrator calls is present with an endpoint.
func (r *StageRegistry) Validate() error {
	required := []string{
		StageCategory, StageBaseViews, StageComponents, StageCloseUps, StageSketches,
		StageFlatSketches, StageAssemblyView, StageEdit, StageRegenerateView,
		StageRegenerateSketch, StageExistingFiles,
	}
	for _, id := range required {
		s, ok := r.Lookup(id)
		if !ok {
			return fmt.Errorf("registry missing stage %q", id)
		}
		if s.Endpoint == "" {
			return fmt.Errorf("registry stage %q has no endpoint", id)
		}
		if s.CreditCost < 0 {
			return fmt.Errorf("registry stage %q has negative cost", id)
		}
	}
	return nil
}

// Lookup finds a stage by id.
func (r *StageRegistry) Lookup(id string) (Stage, bool) {
	for _, s := range r.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// MustLookup is Lookup for ids guaranteed by Validate.
func (r *StageRegistry) MustLookup(id string) Stage {
	s, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("registry: unknown stage %q", id))
	}
	return s
}

// Cost returns the credit cost of one call of stage for the given revision count.
func (r *StageRegistry) Cost(id string, revisions int) int {
	s, ok := r.Lookup(id)
	if !ok {
		return 0
	}
	if s.PerRevision {
		return s.CreditCost * revisions
	}
	return s.CreditCost
}

// TotalCost is the credit cost of a full pipeline run.
func (r *StageRegistry) TotalCost(revisions int) int {
	total := 0
	for _, s := range r.Stages {
		if s.Pipeline {
			total += r.Cost(s.ID, revisions)
		}
	}
	return total
}

// PrerequisiteCost is the cost of category detection plus base views.
func (r *StageRegistry) PrerequisiteCost(revisions int) int {
	return r.Cost(StageCategory, revisions) + r.Cost(StageBaseViews, revisions)
}
