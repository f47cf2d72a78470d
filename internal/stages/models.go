package stages

import "techpack-studio/internal/models"

type DetectCategoryRequest struct {
	ProductID string `json:"productId"`
	ImageURL  string `json:"imageUrl"`
}

type AnalyzeBaseViewsRequest struct {
	ProductID   string   `json:"productId"`
	RevisionIDs []string `json:"revisionIds"`
	Category    string   `json:"category"`
}

type baseViewsResponse struct {
	BaseViews []models.BaseViewData `json:"baseViews"`
}

// BaseViewAnalysis is one base view as sent to the downstream stages.
type BaseViewAnalysis struct {
	RevisionID   string                 `json:"revisionId"`
	ViewType     string                 `json:"viewType"`
	ImageURL     string                 `json:"imageUrl"`
	AnalysisData map[string]interface{} `json:"analysisData"`
}

// AssetRequest is the shared body of the component, close-up and sketch stages.
type AssetRequest struct {
	ProductID        string             `json:"productId"`
	ProductCategory  string             `json:"productCategory"`
	BaseViewAnalyses []BaseViewAnalysis `json:"baseViewAnalyses"`
}

// AssemblyRequest adds the merged product analysis to AssetRequest.
type AssemblyRequest struct {
	AssetRequest
	ProductAnalysis map[string]interface{} `json:"productAnalysis,omitempty"`
}

type componentsResponse struct {
	Components []models.ComponentData `json:"components"`
}

type closeUpsResponse struct {
	CloseUps []models.CloseUpData `json:"closeUps"`
}

type sketchesResponse struct {
	Sketches []models.SketchData `json:"sketches"`
}

type flatSketchesResponse struct {
	FlatSketches []models.FlatSketchData `json:"flatSketches"`
}

type assemblyViewResponse struct {
	AssemblyView models.AssemblyViewData `json:"assemblyView"`
}

type EditRequest struct {
	RevisionID string `json:"revisionId"`
	FieldPath  string `json:"fieldPath"`
	EditPrompt string `json:"editPrompt"`
	ImageURL   string `json:"imageUrl"`
}

type editResponse struct {
	UpdatedAnalysis map[string]interface{} `json:"updatedAnalysis"`
}

type RegenerateViewRequest struct {
	RevisionID       string `json:"revisionId"`
	RegeneratePrompt string `json:"regeneratePrompt,omitempty"`
}

type regenerateViewResponse struct {
	UpdatedView models.BaseViewData `json:"updatedView"`
}

type RegenerateSketchRequest struct {
	ProductID        string `json:"productId"`
	ViewType         string `json:"viewType"`
	RegeneratePrompt string `json:"regeneratePrompt,omitempty"`
}

type regenerateSketchResponse struct {
	Sketch models.SketchData `json:"sketch"`
}

type ExistingFilesRequest struct {
	ProductID  string `json:"productId"`
	RevisionID string `json:"revisionId"`
}

type balanceResponse struct {
	Balance int `json:"balance"`
}
