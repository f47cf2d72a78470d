// internal/models/assets.go
package models

import (
	"strings"
	"time"
)

// LoadingState tracks a record through the placeholder lifecycle.
type LoadingState string

const (
	LoadingStateLoading LoadingState = "loading"
	LoadingStateLoaded  LoadingState = "loaded"
	LoadingStateError   LoadingState = "error"
)

// PlaceholderPrefix marks ids minted client-side before the backend assigns one.
const PlaceholderPrefix = "temp-"

func isPlaceholder(id string, state LoadingState) bool {
	return state == LoadingStateLoading && strings.HasPrefix(id, PlaceholderPrefix)
}

type CategoryData struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
}

type BaseViewData struct {
	RevisionID      string                 `json:"revisionId"`
	ViewType        string                 `json:"viewType"`
	ImageURL        string                 `json:"imageUrl"`
	ThumbnailURL    string                 `json:"thumbnailUrl,omitempty"`
	AnalysisData    map[string]interface{} `json:"analysisData"`
	ConfidenceScore float64                `json:"confidenceScore"`
	Cached          bool                   `json:"cached"`
	IsExpanded      bool                   `json:"isExpanded"`
}

// IsValid reports whether the view can be displayed.
func (b BaseViewData) IsValid() bool {
	return strings.TrimSpace(b.ViewType) != "" && strings.TrimSpace(b.ImageURL) != ""
}

type ComponentData struct {
	ID            string       `json:"id"`
	ComponentName string       `json:"componentName"`
	ComponentType string       `json:"componentType,omitempty"`
	Description   string       `json:"description,omitempty"`
	Material      string       `json:"material,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Order         int          `json:"order"`
	LoadingState  LoadingState `json:"loadingState"`
	Timestamp     time.Time    `json:"timestamp"`
}

func (c ComponentData) IsPlaceholder() bool { return isPlaceholder(c.ID, c.LoadingState) }

type CloseUpData struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	FocusArea    string       `json:"focusArea,omitempty"`
	Description  string       `json:"description,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Order        int          `json:"order"`
	LoadingState LoadingState `json:"loadingState"`
	Timestamp    time.Time    `json:"timestamp"`
}

func (c CloseUpData) IsPlaceholder() bool { return isPlaceholder(c.ID, c.LoadingState) }

type SketchData struct {
	ID           string                 `json:"id"`
	ViewType     string                 `json:"viewType"`
	ImageURL     string                 `json:"imageUrl,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	Measurements map[string]interface{} `json:"measurements,omitempty"`
	LoadingState LoadingState           `json:"loadingState"`
	Timestamp    time.Time              `json:"timestamp"`
}

func (s SketchData) IsPlaceholder() bool { return isPlaceholder(s.ID, s.LoadingState) }

type FlatSketchData struct {
	ID           string       `json:"id"`
	ViewType     string       `json:"viewType"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Callouts     []string     `json:"callouts,omitempty"`
	LoadingState LoadingState `json:"loadingState"`
	Timestamp    time.Time    `json:"timestamp"`
}

func (f FlatSketchData) IsPlaceholder() bool { return isPlaceholder(f.ID, f.LoadingState) }

type AssemblyStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
}

// AssemblySummary is the structured assembly guide.
type AssemblySummary struct {
	Overview           string         `json:"overview"`
	Components         []string       `json:"components,omitempty"`
	Sequence           []AssemblyStep `json:"sequence,omitempty"`
	ConnectionPoints   []string       `json:"connectionPoints,omitempty"`
	Tools              []string       `json:"tools,omitempty"`
	QualityCheckpoints []string       `json:"qualityCheckpoints,omitempty"`
}

type AssemblyViewData struct {
	ID           string           `json:"id"`
	ImageURL     string           `json:"imageUrl,omitempty"`
	Summary      *AssemblySummary `json:"summary,omitempty"`
	LoadingState LoadingState     `json:"loadingState"`
	Timestamp    time.Time        `json:"timestamp"`
}

func (a AssemblyViewData) IsPlaceholder() bool { return isPlaceholder(a.ID, a.LoadingState) }

// TechFiles is the full set of generated assets for one revision.
type TechFiles struct {
	Category     *CategoryData     `json:"category,omitempty"`
	BaseViews    []BaseViewData    `json:"baseViews,omitempty"`
	Components   []ComponentData   `json:"components,omitempty"`
	CloseUps     []CloseUpData     `json:"closeUps,omitempty"`
	Sketches     []SketchData      `json:"sketches,omitempty"`
	FlatSketches []FlatSketchData  `json:"flatSketches,omitempty"`
	AssemblyView *AssemblyViewData `json:"assemblyView,omitempty"`
}

// HasData reports whether any collection is non-empty.
func (t TechFiles) HasData() bool {
	return len(t.BaseViews) > 0 ||
		len(t.Components) > 0 ||
		len(t.CloseUps) > 0 ||
		len(t.Sketches) > 0 ||
		len(t.FlatSketches) > 0 ||
		t.AssemblyView != nil
}
