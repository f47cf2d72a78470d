package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/codes"

	"techpack-studio/internal/common/config"
	apperrors "techpack-studio/internal/common/errors"
	apihttp "techpack-studio/internal/common/http"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/common/metrics"
	"techpack-studio/internal/common/observability"
	"techpack-studio/internal/common/validation"
	"techpack-studio/internal/models"
	"techpack-studio/pkg/registry"
)

var (
	ErrStageRejected = errors.New("STAGE_REJECTED")
	ErrStageTimeout  = errors.New("STAGE_TIMEOUT")
)

const defaultStageTimeout = 120 * time.Second

// Transport is the envelope-level HTTP contract the stage client needs.
type Transport interface {
	PostJSON(ctx context.Context, path string, payload interface{}) (*apihttp.Envelope, error)
	GetJSON(ctx context.Context, path string) (*apihttp.Envelope, error)
}

// Client issues one typed call per remote generation endpoint.
type Client struct {
	transport Transport
	registry  *registry.StageRegistry
	config    *config.Config
	obs       *observability.Observability
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
	now       func() time.Time
}

func NewClient(transport Transport, reg *registry.StageRegistry, cfg *config.Config, obs *observability.Observability, log logger.Logger) *Client {
	if reg == nil {
		reg = registry.Default()
	}
	log = log.WithFields(map[string]interface{}{
		"component": "stage-client",
	})
	return &Client{
		transport: transport,
		registry:  reg,
		config:    cfg,
		obs:       obs,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
		now:       time.Now,
	}
}

func (c *Client) Registry() *registry.StageRegistry {
	return c.registry
}

func (c *Client) DetectCategory(ctx context.Context, req DetectCategoryRequest) (*models.CategoryData, error) {
	var out models.CategoryData
	if err := c.call(ctx, registry.StageCategory, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AnalyzeBaseViews(ctx context.Context, req AnalyzeBaseViewsRequest) ([]models.BaseViewData, error) {
	var out baseViewsResponse
	if err := c.call(ctx, registry.StageBaseViews, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return out.BaseViews, nil
}

func (c *Client) GenerateComponents(ctx context.Context, req AssetRequest) ([]models.ComponentData, error) {
	var out componentsResponse
	if err := c.call(ctx, registry.StageComponents, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return resolveComponents(out.Components, c.now()), nil
}

func (c *Client) GenerateCloseUps(ctx context.Context, req AssetRequest) ([]models.CloseUpData, error) {
	var out closeUpsResponse
	if err := c.call(ctx, registry.StageCloseUps, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return resolveCloseUps(out.CloseUps, c.now()), nil
}

func (c *Client) GenerateSketches(ctx context.Context, req AssetRequest) ([]models.SketchData, error) {
	var out sketchesResponse
	if err := c.call(ctx, registry.StageSketches, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return resolveSketches(out.Sketches, c.now()), nil
}

func (c *Client) GenerateFlatSketches(ctx context.Context, req AssetRequest) ([]models.FlatSketchData, error) {
	var out flatSketchesResponse
	if err := c.call(ctx, registry.StageFlatSketches, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return resolveFlatSketches(out.FlatSketches, c.now()), nil
}

func (c *Client) GenerateAssemblyView(ctx context.Context, req AssemblyRequest) (*models.AssemblyViewData, error) {
	var out assemblyViewResponse
	if err := c.call(ctx, registry.StageAssemblyView, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	return resolveAssemblyView(out.AssemblyView, c.now()), nil
}

// EditField returns the base view's rewritten analysis.
func (c *Client) EditField(ctx context.Context, req EditRequest) (map[string]interface{}, error) {
	var out editResponse
	if err := c.call(ctx, registry.StageEdit, req.RevisionID, req, &out); err != nil {
		return nil, err
	}
	return out.UpdatedAnalysis, nil
}

func (c *Client) RegenerateView(ctx context.Context, req RegenerateViewRequest) (*models.BaseViewData, error) {
	var out regenerateViewResponse
	if err := c.call(ctx, registry.StageRegenerateView, req.RevisionID, req, &out); err != nil {
		return nil, err
	}
	view := out.UpdatedView
	if view.RevisionID == "" {
		view.RevisionID = req.RevisionID
	}
	return &view, nil
}

func (c *Client) RegenerateSketch(ctx context.Context, req RegenerateSketchRequest) (*models.SketchData, error) {
	var out regenerateSketchResponse
	if err := c.call(ctx, registry.StageRegenerateSketch, req.ProductID, req, &out); err != nil {
		return nil, err
	}
	sketches := resolveSketches([]models.SketchData{out.Sketch}, c.now())
	return &sketches[0], nil
}

// GetExistingFiles asks the persistence service for a revision's previously generated assets.
// Saved records are resolved like fresh ones, so a record without a loading state counts as loaded.
func (c *Client) GetExistingFiles(ctx context.Context, req ExistingFilesRequest) (models.TechFiles, error) {
	var out models.TechFiles
	if err := c.call(ctx, registry.StageExistingFiles, req.ProductID, req, &out); err != nil {
		return models.TechFiles{}, apperrors.NewExistingFilesLoadFailedError(req.ProductID, req.RevisionID, err)
	}
	return resolveTechFiles(out, c.now()), nil
}

// Balance returns the product owner's credit balance.
func (c *Client) Balance(ctx context.Context, productID string) (int, error) {
	path := "/api/credits/balance"
	if c.config != nil && c.config.Credits.BalancePath != "" {
		path = c.config.Credits.BalancePath
	}
	path += "?" + url.Values{"productId": {productID}}.Encode()

	env, err := c.transport.GetJSON(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch credit balance: %w", err)
	}
	if !env.Success {
		return 0, fmt.Errorf("fetch credit balance: %s", env.Error)
	}

	var out balanceResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return 0, fmt.Errorf("decode credit balance: %w", err)
	}
	return out.Balance, nil
}

// CheckBalance rejects with INSUFFICIENT_CREDITS when the balance cannot cover required.
func (c *Client) CheckBalance(ctx context.Context, productID string, required int) error {
	if required <= 0 {
		return nil
	}
	balance, err := c.Balance(ctx, productID)
	if err != nil {
		return err
	}
	if balance < required {
		return apperrors.NewInsufficientCreditsError(required, balance)
	}
	return nil
}

func (c *Client) stageTimeout(stage string) time.Duration {
	if c.config == nil {
		return defaultStageTimeout
	}
	if d := c.config.StageTimeout(stage); d > 0 {
		return d
	}
	return defaultStageTimeout
}

// call posts payload to the stage endpoint, validates the returned data and decodes it into out.
func (c *Client) call(ctx context.Context, stage, productID string, payload, out interface{}) (err error) {
	endpoint := c.registry.MustLookup(stage).Endpoint

	ctx, span := c.obs.StartSpan(ctx, stage, productID)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.stageTimeout(stage))
	defer cancel()

	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		elapsed := time.Since(start)
		metrics.StageRequests.WithLabelValues(stage, outcome).Inc()
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperrors.UserMessage(err))
		}
	}()

	log := logger.ForStage(c.logger, stage, productID)
	log.Debug("stage started", nil)

	env, err := c.transport.PostJSON(callCtx, endpoint, payload)
	if err != nil {
		outcome = metrics.OutcomeFailed
		// caller cancellation is not a stage failure
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.errors.HandleStageError(stage, classifyTransportError(stage, err))
	}

	if !env.Success {
		outcome = metrics.OutcomeRejected
		return c.errors.HandleStageError(stage, apperrors.NewStageRejectedError(stage, env.Error, ErrStageRejected))
	}

	result, err := validation.ValidateStagePayload(stage, env.Data)
	if err != nil {
		outcome = metrics.OutcomeFailed
		return c.errors.HandleStageError(stage, apperrors.NewStageDecodeFailedError(stage, err))
	}
	if !result.Valid {
		outcome = metrics.OutcomeRejected
		return c.errors.HandleStageError(stage, apperrors.NewStageContractViolationError(stage, result.Messages()))
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			outcome = metrics.OutcomeFailed
			return c.errors.HandleStageError(stage, apperrors.NewStageDecodeFailedError(stage, err))
		}
	}

	log.Info("stage completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	return nil
}

func classifyTransportError(stage string, err error) error {
	var decodeErr *apihttp.DecodeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewStageTimeoutError(stage, fmt.Errorf("%w: %v", ErrStageTimeout, err))
	case errors.As(err, &decodeErr):
		return apperrors.NewStageDecodeFailedError(stage, err)
	default:
		return apperrors.NewStageRequestFailedError(stage, err)
	}
}
