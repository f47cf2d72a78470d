package ledger

import "techpack-studio/internal/models"

// Snapshot is a point-in-time copy of everything the ledger holds.
type Snapshot struct {
	Status                 models.GenerationStatus        `json:"status"`
	Category               *models.CategoryData           `json:"category,omitempty"`
	BaseViews              []models.BaseViewData          `json:"baseViews"`
	Components             []models.ComponentData         `json:"components"`
	CloseUps               []models.CloseUpData           `json:"closeUps"`
	Sketches               []models.SketchData            `json:"sketches"`
	FlatSketches           []models.FlatSketchData        `json:"flatSketches"`
	AssemblyView           *models.AssemblyViewData       `json:"assemblyView,omitempty"`
	Credits                models.CreditsUsage            `json:"credits"`
	EditOperations         []models.EditOperation         `json:"editOperations"`
	RegenerationOperations []models.RegenerationOperation `json:"regenerationOperations"`
}

func emptySnapshot() Snapshot {
	return Snapshot{Status: models.IdleStatus()}
}

// TechFiles returns the generated assets held by the snapshot.
func (s Snapshot) TechFiles() models.TechFiles {
	return models.TechFiles{
		Category:     s.Category,
		BaseViews:    s.BaseViews,
		Components:   s.Components,
		CloseUps:     s.CloseUps,
		Sketches:     s.Sketches,
		FlatSketches: s.FlatSketches,
		AssemblyView: s.AssemblyView,
	}
}

func (s Snapshot) HasData() bool {
	return s.TechFiles().HasData()
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Status:                 s.Status,
		Category:               copyCategory(s.Category),
		BaseViews:              copyBaseViews(s.BaseViews),
		Components:             append([]models.ComponentData(nil), s.Components...),
		CloseUps:               append([]models.CloseUpData(nil), s.CloseUps...),
		Sketches:               copySketches(s.Sketches),
		FlatSketches:           copyFlatSketches(s.FlatSketches),
		AssemblyView:           copyAssemblyView(s.AssemblyView),
		Credits:                s.Credits,
		EditOperations:         append([]models.EditOperation(nil), s.EditOperations...),
		RegenerationOperations: append([]models.RegenerationOperation(nil), s.RegenerationOperations...),
	}
	return out
}

func copyCategory(c *models.CategoryData) *models.CategoryData {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyBaseViews(views []models.BaseViewData) []models.BaseViewData {
	if views == nil {
		return nil
	}
	out := make([]models.BaseViewData, len(views))
	for i, v := range views {
		v.AnalysisData = copyMap(v.AnalysisData)
		out[i] = v
	}
	return out
}

func copySketches(sketches []models.SketchData) []models.SketchData {
	if sketches == nil {
		return nil
	}
	out := make([]models.SketchData, len(sketches))
	for i, s := range sketches {
		s.Measurements = copyMap(s.Measurements)
		out[i] = s
	}
	return out
}

func copyFlatSketches(flats []models.FlatSketchData) []models.FlatSketchData {
	if flats == nil {
		return nil
	}
	out := make([]models.FlatSketchData, len(flats))
	for i, f := range flats {
		f.Callouts = append([]string(nil), f.Callouts...)
		out[i] = f
	}
	return out
}

func copyAssemblyView(a *models.AssemblyViewData) *models.AssemblyViewData {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Summary != nil {
		sum := *a.Summary
		sum.Components = append([]string(nil), a.Summary.Components...)
		sum.Sequence = append([]models.AssemblyStep(nil), a.Summary.Sequence...)
		sum.ConnectionPoints = append([]string(nil), a.Summary.ConnectionPoints...)
		sum.Tools = append([]string(nil), a.Summary.Tools...)
		sum.QualityCheckpoints = append([]string(nil), a.Summary.QualityCheckpoints...)
		cp.Summary = &sum
	}
	return &cp
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
