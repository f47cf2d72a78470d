package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// UpdateStage sets one field of a stage from its string form.
func (r *StageRegistry) UpdateStage(id, field, value string) error {
	for i := range r.Stages {
		if r.Stages[i].ID != id {
			continue
		}
		s := &r.Stages[i]
		switch field {
		case "displayName":
			s.DisplayName = value
		case "endpoint":
			s.Endpoint = value
		case "color":
			s.Color = value
		case "creditKey":
			s.CreditKey = value
		case "creditCost", "placeholderCount":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid %s value %q", field, value)
			}
			if field == "creditCost" {
				s.CreditCost = n
			} else {
				s.PlaceholderCount = n
			}
		case "perRevision", "pipeline":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid %s value %q", field, value)
			}
			if field == "perRevision" {
				s.PerRevision = b
			} else {
				s.Pipeline = b
			}
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
		return nil
	}
	return fmt.Errorf("stage with ID %s not found", id)
}

// SaveRegistry writes reg to path, creating the directory if needed.
func SaveRegistry(reg *StageRegistry, path string) error {
	if reg.LastUpdated == "" {
		reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
