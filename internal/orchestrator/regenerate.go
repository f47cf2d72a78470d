package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "techpack-studio/internal/common/errors"
	"techpack-studio/internal/models"
	"techpack-studio/internal/stages"
	"techpack-studio/pkg/registry"
)

// regeneration describes one whole-collection regeneration.
type regeneration struct {
	target  models.RegenerationTarget
	step    models.Step
	stageID string
	// call issues the request and returns the commit to apply on success.
	call func(ctx context.Context, req stages.AssetRequest) (func(), error)
}

func (o *Orchestrator) RegenerateAllComponents(ctx context.Context) error {
	return o.regenerate(ctx, regeneration{
		target:  models.TargetComponents,
		step:    models.StepComponents,
		stageID: registry.StageComponents,
		call: func(ctx context.Context, req stages.AssetRequest) (func(), error) {
			items, err := o.client.GenerateComponents(ctx, req)
			if err != nil {
				return nil, err
			}
			return func() { o.ledger.SetComponents(items) }, nil
		},
	})
}

func (o *Orchestrator) RegenerateAllCloseUps(ctx context.Context) error {
	return o.regenerate(ctx, regeneration{
		target:  models.TargetCloseUps,
		step:    models.StepCloseUps,
		stageID: registry.StageCloseUps,
		call: func(ctx context.Context, req stages.AssetRequest) (func(), error) {
			items, err := o.client.GenerateCloseUps(ctx, req)
			if err != nil {
				return nil, err
			}
			return func() { o.ledger.SetCloseUps(items) }, nil
		},
	})
}

func (o *Orchestrator) RegenerateAllSketches(ctx context.Context) error {
	return o.regenerate(ctx, regeneration{
		target:  models.TargetSketches,
		step:    models.StepSketches,
		stageID: registry.StageSketches,
		call: func(ctx context.Context, req stages.AssetRequest) (func(), error) {
			items, err := o.client.GenerateSketches(ctx, req)
			if err != nil {
				return nil, err
			}
			return func() { o.ledger.SetSketches(items) }, nil
		},
	})
}

func (o *Orchestrator) RegenerateAllFlatSketches(ctx context.Context) error {
	return o.regenerate(ctx, regeneration{
		target:  models.TargetFlatSketches,
		step:    models.StepFlatSketches,
		stageID: registry.StageFlatSketches,
		call: func(ctx context.Context, req stages.AssetRequest) (func(), error) {
			items, err := o.client.GenerateFlatSketches(ctx, req)
			if err != nil {
				return nil, err
			}
			return func() { o.ledger.SetFlatSketches(items) }, nil
		},
	})
}

func (o *Orchestrator) RegenerateAssemblyView(ctx context.Context) error {
	return o.regenerate(ctx, regeneration{
		target:  models.TargetAssemblyView,
		step:    models.StepAssemblyView,
		stageID: registry.StageAssemblyView,
		call: func(ctx context.Context, req stages.AssetRequest) (func(), error) {
			view, err := o.client.GenerateAssemblyView(ctx, stages.AssemblyRequest{
				AssetRequest:    req,
				ProductAnalysis: stages.MergeAnalyses(o.ledger.BaseViews()),
			})
			if err != nil {
				return nil, err
			}
			return func() { o.ledger.SetAssemblyView(view) }, nil
		},
	})
}

func (o *Orchestrator) regenerate(ctx context.Context, r regeneration) error {
	productID, epoch, err := o.requireBaseViews(string(r.target))
	if err != nil {
		return err
	}
	revisions := len(o.ledger.BaseViews())
	if err := o.checkBalance(ctx, productID, o.registry.Cost(r.stageID, revisions)); err != nil {
		return err
	}

	opID := o.startRegeneration(r.target, "", "")
	if !o.commitIfCurrent(epoch, func() { o.ledger.MarkLoading(r.step, o.placeholderCount(r.step)) }) {
		return o.dropRegeneration(opID, r.target)
	}

	commit, err := r.call(ctx, o.assetRequest(productID))
	if err != nil {
		o.commitIfCurrent(epoch, func() { o.ledger.MarkFailed(r.step) })
		o.finishRegeneration(opID, err)
		return err
	}

	if !o.commitIfCurrent(epoch, func() {
		commit()
		o.charge(r.stageID, revisions)
	}) {
		return o.dropRegeneration(opID, r.target)
	}
	o.finishRegeneration(opID, nil)
	o.persist(ctx)

	o.logger.Info("collection regenerated", map[string]interface{}{
		"target":    string(r.target),
		"productId": productID,
	})
	return nil
}

// RegenerateBaseView replaces one base view with a freshly generated one.
func (o *Orchestrator) RegenerateBaseView(ctx context.Context, revisionID, prompt string) error {
	if err := requireFields(map[string]string{"revisionId": revisionID}); err != nil {
		return err
	}
	epoch := o.currentEpoch()
	if o.IsRunning() {
		return apperrors.NewGenerationInProgressError()
	}
	if !o.hasBaseView(revisionID) {
		return apperrors.NewValidationError(fmt.Sprintf("base view %s not found", revisionID))
	}
	if err := o.checkBalance(ctx, o.Scope().ProductID, o.registry.Cost(registry.StageRegenerateView, 1)); err != nil {
		return err
	}

	opID := o.startRegeneration(models.TargetBaseView, revisionID, prompt)

	view, err := o.client.RegenerateView(ctx, stages.RegenerateViewRequest{
		RevisionID:       revisionID,
		RegeneratePrompt: prompt,
	})
	if err != nil {
		o.finishRegeneration(opID, err)
		return err
	}

	if !o.commitIfCurrent(epoch, func() {
		o.ledger.UpdateBaseView(revisionID, func(b *models.BaseViewData) {
			expanded := b.IsExpanded
			*b = *view
			b.RevisionID = revisionID
			b.IsExpanded = expanded
			b.Cached = false
		})
		o.charge(registry.StageRegenerateView, 1)
	}) {
		return o.dropRegeneration(opID, models.TargetBaseView)
	}
	o.finishRegeneration(opID, nil)
	o.persist(ctx)
	return nil
}

// RegenerateSketch regenerates the sketch of one view type. A view type with no sketch yet gets one appended.
func (o *Orchestrator) RegenerateSketch(ctx context.Context, viewType, prompt string) error {
	if err := requireFields(map[string]string{"viewType": viewType}); err != nil {
		return err
	}
	productID, epoch, err := o.requireBaseViews(string(models.TargetSketch))
	if err != nil {
		return err
	}
	if err := o.checkBalance(ctx, productID, o.registry.Cost(registry.StageRegenerateSketch, 1)); err != nil {
		return err
	}

	existingID := ""
	for _, s := range o.ledger.Sketches() {
		if s.ViewType == viewType {
			existingID = s.ID
			break
		}
	}
	markSketch := func(state models.LoadingState) {
		if existingID == "" {
			return
		}
		o.ledger.UpdateSketch(existingID, func(s *models.SketchData) { s.LoadingState = state })
	}

	opID := o.startRegeneration(models.TargetSketch, existingID, prompt)
	if !o.commitIfCurrent(epoch, func() { markSketch(models.LoadingStateLoading) }) {
		return o.dropRegeneration(opID, models.TargetSketch)
	}

	sketch, err := o.client.RegenerateSketch(ctx, stages.RegenerateSketchRequest{
		ProductID:        productID,
		ViewType:         viewType,
		RegeneratePrompt: prompt,
	})
	if err != nil {
		o.commitIfCurrent(epoch, func() { markSketch(models.LoadingStateError) })
		o.finishRegeneration(opID, err)
		return err
	}

	if !o.commitIfCurrent(epoch, func() {
		if existingID != "" {
			o.ledger.UpdateSketch(existingID, func(s *models.SketchData) { *s = *sketch })
		} else {
			o.ledger.AddSketch(*sketch)
		}
		o.charge(registry.StageRegenerateSketch, 1)
	}) {
		return o.dropRegeneration(opID, models.TargetSketch)
	}
	o.finishRegeneration(opID, nil)
	o.persist(ctx)
	return nil
}

// requireBaseViews returns the scoped product once base views exist and no run is in flight,
// along with the scope epoch the regeneration commits against.
func (o *Orchestrator) requireBaseViews(what string) (string, uint64, error) {
	epoch := o.currentEpoch()
	if o.IsRunning() {
		return "", 0, apperrors.NewGenerationInProgressError()
	}
	productID := o.Scope().ProductID
	if productID == "" {
		return "", 0, apperrors.NewValidationError("no product selected")
	}
	if len(o.ledger.BaseViews()) == 0 {
		return "", 0, apperrors.NewValidationError(fmt.Sprintf("base views are required before regenerating %s", what))
	}
	return productID, epoch, nil
}

func (o *Orchestrator) hasBaseView(revisionID string) bool {
	for _, v := range o.ledger.BaseViews() {
		if v.RevisionID == revisionID {
			return true
		}
	}
	return false
}

func (o *Orchestrator) startRegeneration(target models.RegenerationTarget, targetID, prompt string) string {
	id := uuid.NewString()
	o.ledger.AddRegenerationOperation(models.RegenerationOperation{
		ID:        id,
		Target:    target,
		TargetID:  targetID,
		Prompt:    prompt,
		Status:    models.OperationInProgress,
		StartedAt: time.Now(),
	})
	return id
}

func (o *Orchestrator) finishRegeneration(id string, err error) {
	now := time.Now()
	o.ledger.UpdateRegenerationOperation(id, func(op *models.RegenerationOperation) {
		op.CompletedAt = &now
		if err != nil {
			op.Status = models.OperationError
			op.Error = apperrors.UserMessage(err)
			return
		}
		op.Status = models.OperationCompleted
	})
}

// dropRegeneration closes an operation whose result arrived after a run or load took over the ledger.
func (o *Orchestrator) dropRegeneration(opID string, target models.RegenerationTarget) error {
	err := fmt.Errorf("regenerate %s: %w", target, ErrSuperseded)
	o.finishRegeneration(opID, err)
	o.logger.Info("discarding superseded regeneration", map[string]interface{}{
		"target": string(target),
	})
	return err
}
