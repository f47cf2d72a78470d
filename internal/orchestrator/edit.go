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

// EditField rewrites one field of a base view's analysis. Only that view's analysisData changes.
// It is rejected while a run is in flight.
func (o *Orchestrator) EditField(ctx context.Context, revisionID, fieldPath, prompt string) error {
	if err := requireFields(map[string]string{
		"revisionId": revisionID,
		"fieldPath":  fieldPath,
		"editPrompt": prompt,
	}); err != nil {
		return err
	}
	epoch := o.currentEpoch()
	if o.IsRunning() {
		return apperrors.NewGenerationInProgressError()
	}

	var view *models.BaseViewData
	for _, v := range o.ledger.BaseViews() {
		if v.RevisionID == revisionID {
			v := v
			view = &v
			break
		}
	}
	if view == nil {
		return apperrors.NewValidationError(fmt.Sprintf("base view %s not found", revisionID))
	}

	opID := uuid.NewString()
	o.ledger.AddEditOperation(models.EditOperation{
		ID:         opID,
		RevisionID: revisionID,
		FieldPath:  fieldPath,
		Prompt:     prompt,
		Status:     models.OperationPending,
		StartedAt:  time.Now(),
	})
	o.ledger.UpdateEditOperation(opID, func(op *models.EditOperation) {
		op.Status = models.OperationInProgress
	})

	analysis, err := o.client.EditField(ctx, stages.EditRequest{
		RevisionID: revisionID,
		FieldPath:  fieldPath,
		EditPrompt: prompt,
		ImageURL:   view.ImageURL,
	})
	now := time.Now()
	fail := func(err error) error {
		o.ledger.UpdateEditOperation(opID, func(op *models.EditOperation) {
			op.Status = models.OperationError
			op.Error = apperrors.UserMessage(err)
			op.CompletedAt = &now
		})
		return err
	}
	if err != nil {
		return fail(err)
	}

	if !o.commitIfCurrent(epoch, func() {
		o.ledger.UpdateBaseView(revisionID, func(b *models.BaseViewData) {
			b.AnalysisData = analysis
		})
		o.charge(registry.StageEdit, 1)
	}) {
		o.logger.Info("discarding superseded edit", map[string]interface{}{
			"revisionId": revisionID,
			"fieldPath":  fieldPath,
		})
		return fail(fmt.Errorf("edit %s: %w", fieldPath, ErrSuperseded))
	}
	o.ledger.UpdateEditOperation(opID, func(op *models.EditOperation) {
		op.Status = models.OperationCompleted
		op.CompletedAt = &now
	})
	o.persist(ctx)

	o.logger.Info("field edited", map[string]interface{}{
		"revisionId": revisionID,
		"fieldPath":  fieldPath,
	})
	return nil
}
