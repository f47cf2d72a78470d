package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"techpack-studio/internal/cache"
	"techpack-studio/internal/common/config"
	apperrors "techpack-studio/internal/common/errors"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/common/metrics"
	"techpack-studio/internal/common/observability"
	"techpack-studio/internal/common/validation"
	"techpack-studio/internal/ledger"
	"techpack-studio/internal/models"
	"techpack-studio/internal/stages"
	"techpack-studio/pkg/registry"
)

// StageClient is the remote side of every stage.
type StageClient interface {
	DetectCategory(ctx context.Context, req stages.DetectCategoryRequest) (*models.CategoryData, error)
	AnalyzeBaseViews(ctx context.Context, req stages.AnalyzeBaseViewsRequest) ([]models.BaseViewData, error)
	GenerateComponents(ctx context.Context, req stages.AssetRequest) ([]models.ComponentData, error)
	GenerateCloseUps(ctx context.Context, req stages.AssetRequest) ([]models.CloseUpData, error)
	GenerateSketches(ctx context.Context, req stages.AssetRequest) ([]models.SketchData, error)
	GenerateFlatSketches(ctx context.Context, req stages.AssetRequest) ([]models.FlatSketchData, error)
	GenerateAssemblyView(ctx context.Context, req stages.AssemblyRequest) (*models.AssemblyViewData, error)
	EditField(ctx context.Context, req stages.EditRequest) (map[string]interface{}, error)
	RegenerateView(ctx context.Context, req stages.RegenerateViewRequest) (*models.BaseViewData, error)
	RegenerateSketch(ctx context.Context, req stages.RegenerateSketchRequest) (*models.SketchData, error)
	GetExistingFiles(ctx context.Context, req stages.ExistingFilesRequest) (models.TechFiles, error)
	CheckBalance(ctx context.Context, productID string, required int) error
}

// GenerateInput is what a generation run needs up front.
type GenerateInput struct {
	ProductID       string
	RevisionIDs     []string
	PrimaryImageURL string
}

func (in GenerateInput) revisions() []string {
	out := make([]string, 0, len(in.RevisionIDs))
	for _, id := range in.RevisionIDs {
		if strings.TrimSpace(id) != "" {
			out = append(out, id)
		}
	}
	return out
}

// Scope is the product and revision the ledger currently describes.
type Scope struct {
	ProductID  string
	RevisionID string
}

// ErrSuperseded reports that a load or regeneration finished after the ledger moved on to
// another scope or run. Its results were dropped.
var ErrSuperseded = errors.New("superseded by a newer load or run")

const (
	modeComplete      = "complete"
	modeBaseViewsOnly = "base-views-only"
)

type Orchestrator struct {
	config   *config.Config
	client   StageClient
	ledger   *ledger.Ledger
	cache    *cache.TechFileCache
	registry *registry.StageRegistry
	obs      *observability.Observability
	logger   logger.Logger

	mu         sync.Mutex
	runCancel  context.CancelFunc
	runID      uint64
	scope      Scope
	scopeEpoch uint64

	// commitMu serializes scope claims with the ledger writes that depend on them.
	commitMu sync.Mutex

	loads singleflight.Group
}

func New(cfg *config.Config, client StageClient, l *ledger.Ledger, c *cache.TechFileCache, reg *registry.StageRegistry, obs *observability.Observability, log logger.Logger) *Orchestrator {
	if reg == nil {
		reg = registry.Default()
	}
	return &Orchestrator{
		config:   cfg,
		client:   client,
		ledger:   l,
		cache:    c,
		registry: reg,
		obs:      obs,
		logger: log.WithFields(map[string]interface{}{
			"component": "orchestrator",
		}),
	}
}

func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

func (o *Orchestrator) Registry() *registry.StageRegistry {
	return o.registry
}

func (o *Orchestrator) Scope() Scope {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scope
}

// SetScope points regenerations, edits and cache writes at a product revision.
// Work started against the previous scope is dropped when it finishes.
func (o *Orchestrator) SetScope(productID, revisionID string) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	o.claimScope(productID, revisionID)
}

func (o *Orchestrator) claimScope(productID, revisionID string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scope = Scope{ProductID: productID, RevisionID: revisionID}
	o.scopeEpoch++
	return o.scopeEpoch
}

func (o *Orchestrator) currentEpoch() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scopeEpoch
}

// commitIfCurrent applies fn only while no load or run has claimed the scope since epoch.
func (o *Orchestrator) commitIfCurrent(epoch uint64, fn func()) bool {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if o.currentEpoch() != epoch {
		return false
	}
	fn()
	return true
}

// whileActive applies a run's ledger write unless the run was cancelled.
func (o *Orchestrator) whileActive(ctx context.Context, fn func()) bool {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// IsRunning reports whether a full or base-views-only run is in flight.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runCancel != nil
}

// CancelGeneration aborts the in-flight run, if any, then resets the status. Generated assets are kept.
func (o *Orchestrator) CancelGeneration() bool {
	o.commitMu.Lock()
	o.mu.Lock()
	cancel := o.runCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.ledger.ResetGenerationStatus()
	o.commitMu.Unlock()

	if cancel == nil {
		return false
	}
	o.logger.Info("generation cancelled", nil)
	return true
}

// Reset clears the ledger and drops any regeneration still in flight. It refuses while a run is in flight.
func (o *Orchestrator) Reset() error {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	o.mu.Lock()
	running := o.runCancel != nil
	if !running {
		o.scopeEpoch++
	}
	o.mu.Unlock()
	if running {
		return apperrors.NewGenerationInProgressError()
	}
	o.ledger.Reset()
	return nil
}

// ResetIfCurrent clears the ledger only while it still describes the given revision
// and no run is in flight. It reports whether the ledger was cleared.
func (o *Orchestrator) ResetIfCurrent(productID, revisionID string) bool {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	o.mu.Lock()
	current := o.runCancel == nil && o.scope == Scope{ProductID: productID, RevisionID: revisionID}
	if current {
		o.scopeEpoch++
	}
	o.mu.Unlock()
	if !current {
		return false
	}
	o.ledger.Reset()
	return true
}

func (o *Orchestrator) beginRun(ctx context.Context) (context.Context, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.runCancel != nil {
		return nil, 0, apperrors.NewGenerationInProgressError()
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.runCancel = cancel
	o.runID++
	metrics.GenerationsActive.Inc()
	return runCtx, o.runID, nil
}

func (o *Orchestrator) endRun(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.runID != id || o.runCancel == nil {
		return
	}
	o.runCancel()
	o.runCancel = nil
	metrics.GenerationsActive.Dec()
}

func (o *Orchestrator) checkBalance(ctx context.Context, productID string, required int) error {
	if o.config == nil || !o.config.Credits.CheckBalance {
		return nil
	}
	return o.client.CheckBalance(ctx, productID, required)
}

func (o *Orchestrator) charge(stageID string, revisions int) {
	stage, ok := o.registry.Lookup(stageID)
	if !ok {
		return
	}
	cost := o.registry.Cost(stageID, revisions)
	if cost <= 0 {
		return
	}
	o.ledger.AddCreditsUsage(models.CreditStage(stage.CreditKey), cost)
	metrics.CreditsConsumed.WithLabelValues(stageID).Add(float64(cost))
}

// persist writes the ledger's tech files to the cache. Failures are only logged.
func (o *Orchestrator) persist(ctx context.Context) {
	scope := o.Scope()
	if scope.ProductID == "" || scope.RevisionID == "" {
		return
	}
	if err := o.cache.Put(ctx, scope.ProductID, scope.RevisionID, o.ledger.TechFiles()); err != nil {
		logger.ForRevision(o.logger, scope.ProductID, scope.RevisionID).Warn("failed to cache tech files", map[string]interface{}{
			"error": err,
		})
	}
}

func validateInput(in GenerateInput) error {
	result := validation.ValidateGenerationInput(validation.GenerationInput{
		ProductID:       in.ProductID,
		RevisionIDs:     in.RevisionIDs,
		PrimaryImageURL: in.PrimaryImageURL,
	})
	if result.Valid {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(result.Messages(), "; "))
}

func requireFields(fields map[string]string) error {
	result := validation.RequireFields(fields)
	if result.Valid {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(result.Messages(), "; "))
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || apperrors.HasCode(err, apperrors.ErrCodeGenerationCancelled)
}

// recordFailure sets the error status unless the run was cancelled meanwhile.
func (o *Orchestrator) recordFailure(ctx context.Context, err error) bool {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if errors.Is(ctx.Err(), context.Canceled) {
		return false
	}
	o.ledger.SetGenerationStatus(models.StatusPatch{
		IsGenerating: models.Bool(false),
		CurrentStep:  models.StepPtr(models.StepError),
		Error:        models.String(apperrors.UserMessage(err)),
	})
	return true
}

// failRun records a run failure on the status. Cancellations leave the status to CancelGeneration.
func (o *Orchestrator) failRun(ctx context.Context, mode string, started time.Time, err error) error {
	if !isCancellation(err) && !o.recordFailure(ctx, err) {
		err = apperrors.NewGenerationCancelledError(err)
	}
	if isCancellation(err) {
		o.obs.RecordRun(context.Background(), mode, "cancelled", time.Since(started))
		if !apperrors.HasCode(err, apperrors.ErrCodeGenerationCancelled) {
			err = apperrors.NewGenerationCancelledError(err)
		}
		return err
	}

	o.obs.RecordRun(ctx, mode, "error", time.Since(started))
	o.logger.Error("generation failed", map[string]interface{}{
		"mode":  mode,
		"error": err,
	})
	return err
}
