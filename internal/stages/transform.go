package stages

import (
	"time"

	"github.com/google/uuid"

	"techpack-studio/internal/models"
)

// Backend results arrive without client-side bookkeeping. These helpers mark them
// loaded, stamp them and fill ids or ordering the backend left out.

func resolvedState(s models.LoadingState) models.LoadingState {
	if s == models.LoadingStateError {
		return s
	}
	return models.LoadingStateLoaded
}

func stableID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func stamp(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

func resolveComponents(items []models.ComponentData, now time.Time) []models.ComponentData {
	out := make([]models.ComponentData, len(items))
	for i, c := range items {
		c.ID = stableID(c.ID)
		c.LoadingState = resolvedState(c.LoadingState)
		c.Timestamp = stamp(c.Timestamp, now)
		if c.Order == 0 {
			c.Order = i
		}
		out[i] = c
	}
	return out
}

func resolveCloseUps(items []models.CloseUpData, now time.Time) []models.CloseUpData {
	out := make([]models.CloseUpData, len(items))
	for i, c := range items {
		c.ID = stableID(c.ID)
		c.LoadingState = resolvedState(c.LoadingState)
		c.Timestamp = stamp(c.Timestamp, now)
		if c.Order == 0 {
			c.Order = i
		}
		out[i] = c
	}
	return out
}

func resolveSketches(items []models.SketchData, now time.Time) []models.SketchData {
	out := make([]models.SketchData, len(items))
	for i, s := range items {
		s.ID = stableID(s.ID)
		s.LoadingState = resolvedState(s.LoadingState)
		s.Timestamp = stamp(s.Timestamp, now)
		out[i] = s
	}
	return out
}

func resolveFlatSketches(items []models.FlatSketchData, now time.Time) []models.FlatSketchData {
	out := make([]models.FlatSketchData, len(items))
	for i, f := range items {
		f.ID = stableID(f.ID)
		f.LoadingState = resolvedState(f.LoadingState)
		f.Timestamp = stamp(f.Timestamp, now)
		out[i] = f
	}
	return out
}

func resolveAssemblyView(a models.AssemblyViewData, now time.Time) *models.AssemblyViewData {
	a.ID = stableID(a.ID)
	a.LoadingState = resolvedState(a.LoadingState)
	a.Timestamp = stamp(a.Timestamp, now)
	return &a
}

// AnalysesFromBaseViews builds the downstream request view of the committed base views.
func AnalysesFromBaseViews(views []models.BaseViewData) []BaseViewAnalysis {
	out := make([]BaseViewAnalysis, 0, len(views))
	for _, v := range views {
		out = append(out, BaseViewAnalysis{
			RevisionID:   v.RevisionID,
			ViewType:     v.ViewType,
			ImageURL:     v.ImageURL,
			AnalysisData: v.AnalysisData,
		})
	}
	return out
}

// MergeAnalyses folds every base view's analysis into one product analysis, keyed by view type.
func MergeAnalyses(views []models.BaseViewData) map[string]interface{} {
	out := make(map[string]interface{}, len(views))
	for _, v := range views {
		key := v.ViewType
		if key == "" {
			key = v.RevisionID
		}
		out[key] = v.AnalysisData
	}
	return out
}

// resolveTechFiles applies the per-collection resolvers to a saved bundle. Absent collections stay nil.
func resolveTechFiles(files models.TechFiles, now time.Time) models.TechFiles {
	if len(files.Components) > 0 {
		files.Components = resolveComponents(files.Components, now)
	}
	if len(files.CloseUps) > 0 {
		files.CloseUps = resolveCloseUps(files.CloseUps, now)
	}
	if len(files.Sketches) > 0 {
		files.Sketches = resolveSketches(files.Sketches, now)
	}
	if len(files.FlatSketches) > 0 {
		files.FlatSketches = resolveFlatSketches(files.FlatSketches, now)
	}
	if files.AssemblyView != nil {
		files.AssemblyView = resolveAssemblyView(*files.AssemblyView, now)
	}
	return files
}
