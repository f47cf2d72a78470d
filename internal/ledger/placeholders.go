package ledger

import (
	"time"

	"github.com/google/uuid"

	"techpack-studio/internal/models"
)

// PlaceholderViewTypes are the views sketch and flat-sketch placeholders stand in for.
var PlaceholderViewTypes = []string{"front", "back", "side"}

// NewPlaceholderID mints a client-side id the backend will later replace.
func NewPlaceholderID() string {
	return models.PlaceholderPrefix + uuid.NewString()
}

func ComponentPlaceholders(n int, now time.Time) []models.ComponentData {
	out := make([]models.ComponentData, n)
	for i := range out {
		out[i] = models.ComponentData{
			ID:           NewPlaceholderID(),
			Order:        i,
			LoadingState: models.LoadingStateLoading,
			Timestamp:    now,
		}
	}
	return out
}

func CloseUpPlaceholders(n int, now time.Time) []models.CloseUpData {
	out := make([]models.CloseUpData, n)
	for i := range out {
		out[i] = models.CloseUpData{
			ID:           NewPlaceholderID(),
			Order:        i,
			LoadingState: models.LoadingStateLoading,
			Timestamp:    now,
		}
	}
	return out
}

func SketchPlaceholders(n int, now time.Time) []models.SketchData {
	out := make([]models.SketchData, n)
	for i := range out {
		out[i] = models.SketchData{
			ID:           NewPlaceholderID(),
			ViewType:     placeholderViewType(i),
			LoadingState: models.LoadingStateLoading,
			Timestamp:    now,
		}
	}
	return out
}

func FlatSketchPlaceholders(n int, now time.Time) []models.FlatSketchData {
	out := make([]models.FlatSketchData, n)
	for i := range out {
		out[i] = models.FlatSketchData{
			ID:           NewPlaceholderID(),
			ViewType:     placeholderViewType(i),
			LoadingState: models.LoadingStateLoading,
			Timestamp:    now,
		}
	}
	return out
}

func AssemblyViewPlaceholder(now time.Time) *models.AssemblyViewData {
	return &models.AssemblyViewData{
		ID:           NewPlaceholderID(),
		LoadingState: models.LoadingStateLoading,
		Timestamp:    now,
	}
}

func placeholderViewType(i int) string {
	if i < len(PlaceholderViewTypes) {
		return PlaceholderViewTypes[i]
	}
	return PlaceholderViewTypes[len(PlaceholderViewTypes)-1]
}

// MarkLoading puts a collection into the loading state before a request is issued.
// Existing records are flipped to loading; an empty collection gets count fresh placeholders.
// Steps without a collection are ignored.
func (l *Ledger) MarkLoading(step models.Step, count int) {
	now := time.Now()
	l.mutate(func(s *Snapshot) {
		switch step {
		case models.StepComponents:
			if len(s.Components) == 0 {
				s.Components = ComponentPlaceholders(count, now)
				return
			}
			for i := range s.Components {
				s.Components[i].LoadingState = models.LoadingStateLoading
			}
		case models.StepCloseUps:
			if len(s.CloseUps) == 0 {
				s.CloseUps = CloseUpPlaceholders(count, now)
				return
			}
			for i := range s.CloseUps {
				s.CloseUps[i].LoadingState = models.LoadingStateLoading
			}
		case models.StepSketches:
			if len(s.Sketches) == 0 {
				s.Sketches = SketchPlaceholders(count, now)
				return
			}
			for i := range s.Sketches {
				s.Sketches[i].LoadingState = models.LoadingStateLoading
			}
		case models.StepFlatSketches:
			if len(s.FlatSketches) == 0 {
				s.FlatSketches = FlatSketchPlaceholders(count, now)
				return
			}
			for i := range s.FlatSketches {
				s.FlatSketches[i].LoadingState = models.LoadingStateLoading
			}
		case models.StepAssemblyView:
			if s.AssemblyView == nil {
				s.AssemblyView = AssemblyViewPlaceholder(now)
				return
			}
			s.AssemblyView.LoadingState = models.LoadingStateLoading
		}
	})
}

// MarkFailed moves every still-loading record of a collection to the error state.
// Records that already resolved are left alone.
func (l *Ledger) MarkFailed(step models.Step) {
	l.mutate(func(s *Snapshot) {
		switch step {
		case models.StepComponents:
			for i := range s.Components {
				if s.Components[i].LoadingState == models.LoadingStateLoading {
					s.Components[i].LoadingState = models.LoadingStateError
				}
			}
		case models.StepCloseUps:
			for i := range s.CloseUps {
				if s.CloseUps[i].LoadingState == models.LoadingStateLoading {
					s.CloseUps[i].LoadingState = models.LoadingStateError
				}
			}
		case models.StepSketches:
			for i := range s.Sketches {
				if s.Sketches[i].LoadingState == models.LoadingStateLoading {
					s.Sketches[i].LoadingState = models.LoadingStateError
				}
			}
		case models.StepFlatSketches:
			for i := range s.FlatSketches {
				if s.FlatSketches[i].LoadingState == models.LoadingStateLoading {
					s.FlatSketches[i].LoadingState = models.LoadingStateError
				}
			}
		case models.StepAssemblyView:
			if s.AssemblyView != nil && s.AssemblyView.LoadingState == models.LoadingStateLoading {
				s.AssemblyView.LoadingState = models.LoadingStateError
			}
		}
	})
}
