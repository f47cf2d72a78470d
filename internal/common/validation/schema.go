package validation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the result for error details.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Field == "" {
			out = append(out, e.Message)
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

var (
	imageItem = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"imageUrl"},
		"properties": map[string]interface{}{
			"id":       map[string]interface{}{"type": "string"},
			"imageUrl": map[string]interface{}{"type": "string"},
		},
	}

	viewItem = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"viewType", "imageUrl"},
		"properties": map[string]interface{}{
			"id":       map[string]interface{}{"type": "string"},
			"viewType": map[string]interface{}{"type": "string"},
			"imageUrl": map[string]interface{}{"type": "string"},
		},
	}

	// stageContracts holds the JSON schema of each stage's `data` payload.
	stageContracts = map[string]map[string]interface{}{
		"category": {
			"type":     "object",
			"required": []interface{}{"category"},
			"properties": map[string]interface{}{
				"category":    map[string]interface{}{"type": "string", "minLength": 1},
				"subcategory": map[string]interface{}{"type": []interface{}{"string", "null"}},
				"confidence":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
			},
		},
		"base-views": {
			"type":     "object",
			"required": []interface{}{"baseViews"},
			"properties": map[string]interface{}{
				"baseViews": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"revisionId"},
						"properties": map[string]interface{}{
							"revisionId":   map[string]interface{}{"type": "string"},
							"analysisData": map[string]interface{}{"type": []interface{}{"object", "null"}},
						},
					},
				},
			},
		},
		"components":    arrayContract("components", imageItem),
		"close-ups":     arrayContract("closeUps", imageItem),
		"sketches":      arrayContract("sketches", viewItem),
		"flat-sketches": arrayContract("flatSketches", viewItem),
		"assembly-view": {
			"type":     "object",
			"required": []interface{}{"assemblyView"},
			"properties": map[string]interface{}{
				"assemblyView": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"imageUrl"},
					"properties": map[string]interface{}{
						"imageUrl": map[string]interface{}{"type": "string"},
						"summary":  map[string]interface{}{"type": []interface{}{"object", "null"}},
					},
				},
			},
		},
		"edit": {
			"type":     "object",
			"required": []interface{}{"updatedAnalysis"},
			"properties": map[string]interface{}{
				"updatedAnalysis": map[string]interface{}{"type": "object"},
			},
		},
		"regenerate-view": {
			"type":     "object",
			"required": []interface{}{"updatedView"},
			"properties": map[string]interface{}{
				"updatedView": map[string]interface{}{"type": "object"},
			},
		},
		"regenerate-sketch": {
			"type":     "object",
			"required": []interface{}{"sketch"},
			"properties": map[string]interface{}{
				"sketch": viewItem,
			},
		},
	}

	compiledMu sync.Mutex
	compiled   = map[string]*gojsonschema.Schema{}
)

func arrayContract(key string, item map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{key},
		"properties": map[string]interface{}{
			key: map[string]interface{}{
				"type":  "array",
				"items": item,
			},
		},
	}
}

func schemaFor(stage string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[stage]; ok {
		return s, nil
	}
	contract, ok := stageContracts[stage]
	if !ok {
		return nil, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(contract))
	if err != nil {
		return nil, fmt.Errorf("compile %s contract: %w", stage, err)
	}
	compiled[stage] = s
	return s, nil
}

// ValidateStagePayload checks a raw `data` payload against the stage contract.
// Stages without a contract always validate.
func ValidateStagePayload(stage string, data json.RawMessage) (*ValidationResult, error) {
	schema, err := schemaFor(stage)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return &ValidationResult{Valid: true}, nil
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}, nil
}
