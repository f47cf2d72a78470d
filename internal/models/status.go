// internal/models/status.go
package models

// Step is the pipeline position reported by GenerationStatus.
type Step string

const (
	StepIdle         Step = "idle"
	StepCategory     Step = "category"
	StepBaseViews    Step = "base-views"
	StepComponents   Step = "components"
	StepCloseUps     Step = "close-ups"
	StepSketches     Step = "sketches"
	StepFlatSketches Step = "flat-sketches"
	StepAssemblyView Step = "assembly-view"
	StepComplete     Step = "complete"
	StepError        Step = "error"
)

// GenerationSteps lists the seven stages in pipeline order.
var GenerationSteps = []Step{
	StepCategory,
	StepBaseViews,
	StepComponents,
	StepCloseUps,
	StepSketches,
	StepFlatSketches,
	StepAssemblyView,
}

// ParallelSteps are issued together after base views are committed.
var ParallelSteps = []Step{
	StepComponents,
	StepCloseUps,
	StepSketches,
	StepFlatSketches,
	StepAssemblyView,
}

// IsParallel reports whether s belongs to the fan-out group.
func (s Step) IsParallel() bool {
	for _, p := range ParallelSteps {
		if p == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends a run.
func (s Step) IsTerminal() bool {
	return s == StepComplete || s == StepError
}

type GenerationStatus struct {
	IsGenerating      bool   `json:"isGenerating"`
	CurrentStep       Step   `json:"currentStep"`
	Progress          int    `json:"progress"`
	CurrentStepDetail string `json:"currentStepDetail"`
	Error             string `json:"error,omitempty"`
}

// IdleStatus is the initial status of a ledger.
func IdleStatus() GenerationStatus {
	return GenerationStatus{CurrentStep: StepIdle}
}

// StatusPatch is a partial GenerationStatus; nil fields are left untouched.
type StatusPatch struct {
	IsGenerating      *bool
	CurrentStep       *Step
	Progress          *int
	CurrentStepDetail *string
	Error             *string
}

// Apply merges the patch into s and returns the result.
func (p StatusPatch) Apply(s GenerationStatus) GenerationStatus {
	if p.IsGenerating != nil {
		s.IsGenerating = *p.IsGenerating
	}
	if p.CurrentStep != nil {
		s.CurrentStep = *p.CurrentStep
	}
	if p.Progress != nil {
		s.Progress = clampProgress(*p.Progress)
	}
	if p.CurrentStepDetail != nil {
		s.CurrentStepDetail = *p.CurrentStepDetail
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	if s.CurrentStep.IsTerminal() {
		s.IsGenerating = false
	}
	return s
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Bool, StepPtr, Int and String build StatusPatch fields inline.
func Bool(v bool) *bool { return &v }

func StepPtr(v Step) *Step { return &v }

func Int(v int) *int { return &v }

func String(v string) *string { return &v }
