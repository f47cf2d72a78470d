// internal/models/operations.go
package models

import "time"

type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationInProgress OperationStatus = "in-progress"
	OperationCompleted  OperationStatus = "completed"
	OperationError      OperationStatus = "error"
)

// EditOperation logs a single field edit on a base view.
type EditOperation struct {
	ID          string          `json:"id"`
	RevisionID  string          `json:"revisionId"`
	FieldPath   string          `json:"fieldPath"`
	Prompt      string          `json:"prompt"`
	Status      OperationStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// RegenerationTarget names the collection a regeneration rewrites.
type RegenerationTarget string

const (
	TargetBaseView     RegenerationTarget = "base-view"
	TargetComponents   RegenerationTarget = "components"
	TargetCloseUps     RegenerationTarget = "close-ups"
	TargetSketches     RegenerationTarget = "sketches"
	TargetSketch       RegenerationTarget = "sketch"
	TargetFlatSketches RegenerationTarget = "flat-sketches"
	TargetAssemblyView RegenerationTarget = "assembly-view"
)

// RegenerationOperation logs a whole-collection or single-record regeneration.
type RegenerationOperation struct {
	ID          string             `json:"id"`
	Target      RegenerationTarget `json:"target"`
	TargetID    string             `json:"targetId,omitempty"`
	Prompt      string             `json:"prompt,omitempty"`
	Status      OperationStatus    `json:"status"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}
