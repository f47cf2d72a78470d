package orchestrator

import (
	"context"

	apperrors "techpack-studio/internal/common/errors"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/ledger"
	"techpack-studio/internal/models"
	"techpack-studio/internal/stages"
)

// LoadExistingTechFiles restores a revision's previously generated assets.
// The ledger is cleared before the lookup so another revision's data is never shown meanwhile.
// Concurrent loads of the same revision share one lookup. A load overtaken by another
// load or run returns ErrSuperseded and leaves the ledger to the newer owner.
func (o *Orchestrator) LoadExistingTechFiles(ctx context.Context, productID, revisionID string) (bool, error) {
	if err := requireFields(map[string]string{
		"productId":  productID,
		"revisionId": revisionID,
	}); err != nil {
		return false, err
	}
	if o.IsRunning() {
		return false, apperrors.NewGenerationInProgressError()
	}

	key := productID + ":" + revisionID
	v, err, shared := o.loads.Do(key, func() (interface{}, error) {
		return o.loadExisting(ctx, productID, revisionID)
	})
	if shared {
		o.logger.Debug("joined in-flight load", map[string]interface{}{
			"productId":  productID,
			"revisionId": revisionID,
		})
	}
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (o *Orchestrator) loadExisting(ctx context.Context, productID, revisionID string) (bool, error) {
	log := logger.ForRevision(o.logger, productID, revisionID)

	o.commitMu.Lock()
	epoch := o.claimScope(productID, revisionID)
	o.ledger.ClearTechFiles()
	o.commitMu.Unlock()

	files, fromCache := o.cachedFiles(ctx, productID, revisionID)
	if !fromCache {
		var err error
		files, err = o.client.GetExistingFiles(ctx, stages.ExistingFilesRequest{
			ProductID:  productID,
			RevisionID: revisionID,
		})
		if err != nil {
			if o.currentEpoch() != epoch {
				log.Debug("discarding stale load failure", map[string]interface{}{"error": err})
				return false, ErrSuperseded
			}
			return false, err
		}
	}

	found := files.HasData()
	// the selection may have moved on while the lookup was in flight
	if !o.commitIfCurrent(epoch, func() {
		if !found {
			return
		}
		o.ledger.LoadTechFiles(files)
		o.ledger.SetGenerationStatus(models.StatusPatch{
			IsGenerating:      models.Bool(false),
			CurrentStep:       models.StepPtr(models.StepComplete),
			Progress:          models.Int(ledger.ProgressComplete),
			CurrentStepDetail: models.String("Loaded existing tech files"),
			Error:             models.String(""),
		})
	}) {
		log.Debug("discarding stale load", nil)
		return false, ErrSuperseded
	}
	if !found {
		return false, nil
	}
	if !fromCache {
		o.persist(ctx)
	}

	log.Info("existing tech files loaded", map[string]interface{}{
		"fromCache": fromCache,
	})
	return true, nil
}

func (o *Orchestrator) cachedFiles(ctx context.Context, productID, revisionID string) (models.TechFiles, bool) {
	files, ok, err := o.cache.Get(ctx, productID, revisionID)
	if err != nil {
		logger.ForRevision(o.logger, productID, revisionID).Warn("tech file cache read failed", map[string]interface{}{
			"error": err,
		})
		return models.TechFiles{}, false
	}
	return files, ok
}
