package validation

import "strings"

// GenerationInput is what every pipeline entry point needs before it touches the network.
type GenerationInput struct {
	ProductID       string
	RevisionIDs     []string
	PrimaryImageURL string
}

// ValidateGenerationInput reports missing product, revision or image inputs.
func ValidateGenerationInput(in GenerationInput) *ValidationResult {
	var errs []ValidationError

	if strings.TrimSpace(in.ProductID) == "" {
		errs = append(errs, ValidationError{Field: "productId", Message: "required field missing", Code: "REQUIRED_FIELD_MISSING"})
	}

	hasRevision := false
	for _, id := range in.RevisionIDs {
		if strings.TrimSpace(id) != "" {
			hasRevision = true
			break
		}
	}
	if !hasRevision {
		errs = append(errs, ValidationError{Field: "revisionIds", Message: "at least one revision is required", Code: "REQUIRED_FIELD_MISSING"})
	}

	if strings.TrimSpace(in.PrimaryImageURL) == "" {
		errs = append(errs, ValidationError{Field: "imageUrl", Message: "primary image is required", Code: "REQUIRED_FIELD_MISSING"})
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// RequireFields reports every named value that is blank.
func RequireFields(fields map[string]string) *ValidationResult {
	var errs []ValidationError
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, ValidationError{Field: name, Message: "required field missing", Code: "REQUIRED_FIELD_MISSING"})
		}
	}
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
