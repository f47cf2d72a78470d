package facade

import (
	"context"
	"errors"
	"sync"

	apperrors "techpack-studio/internal/common/errors"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/ledger"
	"techpack-studio/internal/orchestrator"
	"techpack-studio/pkg/registry"
)

// Orchestrator is the set of actions the hook forwards.
type Orchestrator interface {
	GenerateComplete(ctx context.Context, in orchestrator.GenerateInput) error
	GenerateBaseViewsOnly(ctx context.Context, in orchestrator.GenerateInput) error
	RegenerateAllComponents(ctx context.Context) error
	RegenerateAllCloseUps(ctx context.Context) error
	RegenerateAllSketches(ctx context.Context) error
	RegenerateAllFlatSketches(ctx context.Context) error
	RegenerateAssemblyView(ctx context.Context) error
	RegenerateBaseView(ctx context.Context, revisionID, prompt string) error
	RegenerateSketch(ctx context.Context, viewType, prompt string) error
	EditField(ctx context.Context, revisionID, fieldPath, prompt string) error
	LoadExistingTechFiles(ctx context.Context, productID, revisionID string) (bool, error)
	CancelGeneration() bool
	IsRunning() bool
	Reset() error
	ResetIfCurrent(productID, revisionID string) bool
}

// SwitchResult reports what a revision selection did.
type SwitchResult struct {
	Decision        Decision
	HasExistingData bool
}

// Hook is the single integration point for a product page: actions, view model and revision switching.
type Hook struct {
	orch     Orchestrator
	ledger   *ledger.Ledger
	registry *registry.StageRegistry
	logger   logger.Logger

	mu      sync.Mutex
	inputs  Inputs
	tracker RevisionTracker
}

func New(orch Orchestrator, l *ledger.Ledger, reg *registry.StageRegistry, log logger.Logger) *Hook {
	if reg == nil {
		reg = registry.Default()
	}
	return &Hook{
		orch:     orch,
		ledger:   l,
		registry: reg,
		logger: log.WithFields(map[string]interface{}{
			"component": "generation-hook",
		}),
	}
}

// SetInputs updates the product, revisions and primary image the actions run against.
func (h *Hook) SetInputs(in Inputs) {
	h.mu.Lock()
	h.inputs = Inputs{
		ProductID:       in.ProductID,
		RevisionIDs:     append([]string(nil), in.RevisionIDs...),
		PrimaryImageURL: in.PrimaryImageURL,
	}
	h.mu.Unlock()
}

func (h *Hook) Inputs() Inputs {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputs
}

func (h *Hook) generating() bool {
	return h.ledger.Status().IsGenerating || h.orch.IsRunning()
}

// SelectRevision runs the revision-switch transition. A new revision clears the ledger and
// loads that revision's saved assets; with nothing saved the ledger returns to its idle state.
// It never interrupts an active generation and never reloads the revision already selected.
// A load overtaken by a newer selection reports DecisionSuperseded and leaves the ledger alone.
func (h *Hook) SelectRevision(ctx context.Context, revisionID string) (SwitchResult, error) {
	h.mu.Lock()
	decision := h.tracker.Transition(revisionID, h.generating())
	productID := h.inputs.ProductID
	h.mu.Unlock()

	if decision != DecisionLoad {
		h.logger.Debug("revision switch skipped", map[string]interface{}{
			"revisionId": revisionID,
			"decision":   string(decision),
		})
		return SwitchResult{Decision: decision}, nil
	}

	found, err := h.orch.LoadExistingTechFiles(ctx, productID, revisionID)
	if errors.Is(err, orchestrator.ErrSuperseded) {
		h.logger.Debug("revision load superseded", map[string]interface{}{
			"productId":  productID,
			"revisionId": revisionID,
		})
		return SwitchResult{Decision: DecisionSuperseded}, nil
	}
	if err != nil {
		h.logger.Warn("failed to load existing tech files", map[string]interface{}{
			"productId":  productID,
			"revisionId": revisionID,
			"error":      err,
		})
		h.mu.Lock()
		if prev, _ := h.tracker.Previous(); prev == revisionID {
			h.tracker.Forget()
		}
		h.mu.Unlock()
		h.resetIfCurrent(productID, revisionID)
		return SwitchResult{Decision: decision}, err
	}

	if !found {
		h.resetIfCurrent(productID, revisionID)
	}
	return SwitchResult{Decision: decision, HasExistingData: found}, nil
}

// resetIfCurrent returns the ledger to idle unless another selection or a run has taken it over.
func (h *Hook) resetIfCurrent(productID, revisionID string) {
	h.mu.Lock()
	prev, _ := h.tracker.Previous()
	h.mu.Unlock()
	if prev != revisionID && prev != "" {
		return
	}
	if !h.orch.ResetIfCurrent(productID, revisionID) {
		h.logger.Debug("reset skipped", map[string]interface{}{
			"productId":  productID,
			"revisionId": revisionID,
		})
	}
}

// ViewModel derives the current view model from the ledger.
func (h *Hook) ViewModel() ViewModel {
	return Derive(h.ledger.Snapshot(), h.Inputs(), h.registry)
}

// HandleToggleBaseView expands one base view and collapses the rest.
func (h *Hook) HandleToggleBaseView(revisionID string) {
	h.ledger.ToggleBaseViewExpanded(revisionID)
}

func (h *Hook) generateInput() (orchestrator.GenerateInput, error) {
	in := h.Inputs()
	if !in.complete() {
		return orchestrator.GenerateInput{}, apperrors.NewValidationError("product, revision and primary image are required")
	}
	return orchestrator.GenerateInput{
		ProductID:       in.ProductID,
		RevisionIDs:     in.RevisionIDs,
		PrimaryImageURL: in.PrimaryImageURL,
	}, nil
}

func (h *Hook) GenerateComplete(ctx context.Context) error {
	in, err := h.generateInput()
	if err != nil {
		return err
	}
	return h.orch.GenerateComplete(ctx, in)
}

func (h *Hook) GenerateBaseViewsOnly(ctx context.Context) error {
	in, err := h.generateInput()
	if err != nil {
		return err
	}
	return h.orch.GenerateBaseViewsOnly(ctx, in)
}

func (h *Hook) RegenerateAllComponents(ctx context.Context) error {
	return h.orch.RegenerateAllComponents(ctx)
}

func (h *Hook) RegenerateAllCloseUps(ctx context.Context) error {
	return h.orch.RegenerateAllCloseUps(ctx)
}

func (h *Hook) RegenerateAllSketches(ctx context.Context) error {
	return h.orch.RegenerateAllSketches(ctx)
}

func (h *Hook) RegenerateAllFlatSketches(ctx context.Context) error {
	return h.orch.RegenerateAllFlatSketches(ctx)
}

func (h *Hook) RegenerateAssemblyView(ctx context.Context) error {
	return h.orch.RegenerateAssemblyView(ctx)
}

func (h *Hook) RegenerateBaseView(ctx context.Context, revisionID, prompt string) error {
	return h.orch.RegenerateBaseView(ctx, revisionID, prompt)
}

func (h *Hook) RegenerateSketch(ctx context.Context, viewType, prompt string) error {
	return h.orch.RegenerateSketch(ctx, viewType, prompt)
}

func (h *Hook) EditField(ctx context.Context, revisionID, fieldPath, prompt string) error {
	return h.orch.EditField(ctx, revisionID, fieldPath, prompt)
}

// LoadExistingTechFiles loads a revision directly, bypassing the revision-switch guard.
func (h *Hook) LoadExistingTechFiles(ctx context.Context, revisionID string) (bool, error) {
	return h.orch.LoadExistingTechFiles(ctx, h.Inputs().ProductID, revisionID)
}

func (h *Hook) CancelGeneration() bool {
	return h.orch.CancelGeneration()
}

// Reset clears the ledger and forgets the selected revision.
func (h *Hook) Reset() error {
	if err := h.orch.Reset(); err != nil {
		return err
	}
	h.mu.Lock()
	h.tracker.Forget()
	h.mu.Unlock()
	return nil
}
