package facade

import (
	"fmt"
	"strings"

	"techpack-studio/internal/ledger"
	"techpack-studio/internal/models"
	"techpack-studio/pkg/registry"
)

// fullRunSeconds is the typical wall-clock time of a complete run.
const fullRunSeconds = 120

type StepInfo struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Inputs are the caller-supplied generation inputs.
type Inputs struct {
	ProductID       string
	RevisionIDs     []string
	PrimaryImageURL string
}

func (in Inputs) revisionCount() int {
	n := 0
	for _, id := range in.RevisionIDs {
		if strings.TrimSpace(id) != "" {
			n++
		}
	}
	return n
}

func (in Inputs) complete() bool {
	return strings.TrimSpace(in.ProductID) != "" &&
		strings.TrimSpace(in.PrimaryImageURL) != "" &&
		in.revisionCount() > 0
}

// ViewModel is everything a UI renders, derived from a ledger snapshot.
type ViewModel struct {
	Status                 models.GenerationStatus `json:"status"`
	Progress               int                     `json:"progress"`
	CurrentStepInfo        StepInfo                `json:"currentStepInfo"`
	StepProgress           map[models.Step]int     `json:"stepProgress"`
	CanGenerate            bool                    `json:"canGenerate"`
	EstimatedTimeRemaining string                  `json:"estimatedTimeRemaining"`
	HasData                bool                    `json:"hasData"`
	FilteredBaseViews      []models.BaseViewData   `json:"filteredBaseViews"`
	Credits                models.CreditsUsage     `json:"credits"`
	FullRunCost            int                     `json:"fullRunCost"`
}

// Derive computes the view model. It holds no state of its own.
func Derive(snap ledger.Snapshot, in Inputs, reg *registry.StageRegistry) ViewModel {
	if reg == nil {
		reg = registry.Default()
	}
	files := snap.TechFiles()
	progress := ledger.ComputeProgress(snap.Status, files)

	return ViewModel{
		Status:                 snap.Status,
		Progress:               progress,
		CurrentStepInfo:        CurrentStepInfo(snap.Status.CurrentStep, reg),
		StepProgress:           ledger.StepProgress(snap.Status, files),
		CanGenerate:            !snap.Status.IsGenerating && in.complete(),
		EstimatedTimeRemaining: EstimatedTimeRemaining(progress, snap.Status.IsGenerating),
		HasData:                snap.HasData(),
		FilteredBaseViews:      ledger.FilterBaseViews(snap.BaseViews),
		Credits:                snap.Credits,
		FullRunCost:            reg.TotalCost(in.revisionCount()),
	}
}

// CurrentStepInfo maps a step to its label and colour.
func CurrentStepInfo(step models.Step, reg *registry.StageRegistry) StepInfo {
	switch step {
	case models.StepIdle, "":
		return StepInfo{Label: "Ready to generate", Color: "gray"}
	case models.StepComplete:
		return StepInfo{Label: "Complete", Color: "green"}
	case models.StepError:
		return StepInfo{Label: "Generation failed", Color: "red"}
	}
	if s, ok := reg.Lookup(string(step)); ok {
		return StepInfo{Label: s.DisplayName, Color: s.Color}
	}
	return StepInfo{Label: string(step), Color: "gray"}
}

// EstimatedTimeRemaining buckets (100-progress)% of a full run into a coarse string.
func EstimatedTimeRemaining(progress int, generating bool) string {
	if !generating {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	seconds := (100 - progress) * fullRunSeconds / 100
	switch {
	case seconds <= 10:
		return "Almost done"
	case seconds < 30:
		return "Less than 30 seconds"
	case seconds < 90:
		return "About 1 minute"
	default:
		return fmt.Sprintf("About %d minutes", (seconds+30)/60)
	}
}
