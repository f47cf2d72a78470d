package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditsUsage_Add(t *testing.T) {
	var c CreditsUsage

	c.Add(CreditBaseViews, 1)
	c.Add(CreditComponents, 2)
	c.Add(CreditSketches, 6)
	c.Add(CreditEdits, 1)
	c.Add(CreditComponents, -5)
	c.Add(CreditStage("unknown"), 4)
	c.Add(CreditCategoryDetection, 0)

	assert.Equal(t, 1, c.BaseViews)
	assert.Equal(t, 2, c.Components)
	assert.Equal(t, 6, c.Sketches)
	assert.Equal(t, 1, c.Edits)
	assert.Equal(t, 10, c.Total)
}

func TestStatusPatch_TerminalStepStopsGenerating(t *testing.T) {
	s := GenerationStatus{IsGenerating: true, CurrentStep: StepSketches, Progress: 60}

	got := StatusPatch{CurrentStep: StepPtr(StepError), Error: String("boom")}.Apply(s)

	assert.False(t, got.IsGenerating)
	assert.Equal(t, StepError, got.CurrentStep)
	assert.Equal(t, 60, got.Progress)
	assert.Equal(t, "boom", got.Error)
}

func TestStatusPatch_ClampsProgress(t *testing.T) {
	got := StatusPatch{Progress: Int(140)}.Apply(IdleStatus())
	assert.Equal(t, 100, got.Progress)

	got = StatusPatch{Progress: Int(-3)}.Apply(IdleStatus())
	assert.Equal(t, 0, got.Progress)
}

func TestBaseViewData_IsValid(t *testing.T) {
	tests := []struct {
		name string
		view BaseViewData
		want bool
	}{
		{"complete", BaseViewData{ViewType: "front", ImageURL: "https://img/front.png"}, true},
		{"missing view type", BaseViewData{ViewType: "", ImageURL: "https://img/front.png"}, false},
		{"missing image", BaseViewData{ViewType: "front", ImageURL: ""}, false},
		{"blank view type", BaseViewData{ViewType: "  ", ImageURL: "https://img/front.png"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.view.IsValid())
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, ComponentData{ID: "temp-1", LoadingState: LoadingStateLoading}.IsPlaceholder())
	assert.False(t, ComponentData{ID: "temp-1", LoadingState: LoadingStateError}.IsPlaceholder())
	assert.False(t, ComponentData{ID: "cmp-1", LoadingState: LoadingStateLoading}.IsPlaceholder())
}

func TestStep_Groups(t *testing.T) {
	assert.True(t, StepSketches.IsParallel())
	assert.False(t, StepBaseViews.IsParallel())
	assert.True(t, StepComplete.IsTerminal())
	assert.False(t, StepIdle.IsTerminal())
	assert.Len(t, GenerationSteps, 7)
}

func TestTechFiles_HasData(t *testing.T) {
	assert.False(t, TechFiles{}.HasData())
	assert.False(t, TechFiles{Category: &CategoryData{Category: "apparel"}}.HasData())
	assert.True(t, TechFiles{AssemblyView: &AssemblyViewData{ID: "a"}}.HasData())
	assert.True(t, TechFiles{Sketches: []SketchData{{ID: "s"}}}.HasData())
}
