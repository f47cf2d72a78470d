// internal/models/credits.go
package models

// CreditStage keys CreditsUsage totals.
type CreditStage string

const (
	CreditCategoryDetection CreditStage = "categoryDetection"
	CreditBaseViews         CreditStage = "baseViews"
	CreditComponents        CreditStage = "components"
	CreditCloseUps          CreditStage = "closeUps"
	CreditSketches          CreditStage = "sketches"
	CreditFlatSketches      CreditStage = "flatSketches"
	CreditAssemblyView      CreditStage = "assemblyView"
	CreditEdits             CreditStage = "edits"
	CreditRegenerations     CreditStage = "regenerations"
)

// CreditsUsage holds running totals for one session. Totals only grow.
type CreditsUsage struct {
	CategoryDetection int `json:"categoryDetection"`
	BaseViews         int `json:"baseViews"`
	Components        int `json:"components"`
	CloseUps          int `json:"closeUps"`
	Sketches          int `json:"sketches"`
	FlatSketches      int `json:"flatSketches"`
	AssemblyView      int `json:"assemblyView"`
	Edits             int `json:"edits"`
	Regenerations     int `json:"regenerations"`
	Total             int `json:"total"`
}

// Add records amount against stage. Non-positive amounts and unknown stages are ignored.
func (c *CreditsUsage) Add(stage CreditStage, amount int) {
	if amount <= 0 {
		return
	}
	switch stage {
	case CreditCategoryDetection:
		c.CategoryDetection += amount
	case CreditBaseViews:
		c.BaseViews += amount
	case CreditComponents:
		c.Components += amount
	case CreditCloseUps:
		c.CloseUps += amount
	case CreditSketches:
		c.Sketches += amount
	case CreditFlatSketches:
		c.FlatSketches += amount
	case CreditAssemblyView:
		c.AssemblyView += amount
	case CreditEdits:
		c.Edits += amount
	case CreditRegenerations:
		c.Regenerations += amount
	default:
		return
	}
	c.Total += amount
}
