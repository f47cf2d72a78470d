package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"techpack-studio/internal/ledger"
	"techpack-studio/internal/models"
	"techpack-studio/internal/stages"
	"techpack-studio/pkg/registry"
)

const fanOutDetail = "Generating components, close-ups and sketches in parallel"

// GenerateComplete runs all seven stages: category and base views in order, then the
// five asset stages concurrently. The five result collections are committed together.
func (o *Orchestrator) GenerateComplete(ctx context.Context, in GenerateInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	revisions := in.revisions()

	runCtx, runID, err := o.beginRun(ctx)
	if err != nil {
		return err
	}
	defer o.endRun(runID)

	if err := o.checkBalance(runCtx, in.ProductID, o.registry.TotalCost(len(revisions))); err != nil {
		return err
	}

	started := time.Now()
	o.startRun(in, revisions)

	if err := o.runPrerequisites(runCtx, in, revisions); err != nil {
		return o.failRun(runCtx, modeComplete, started, err)
	}
	if err := o.fanOut(runCtx, in.ProductID, revisions); err != nil {
		return o.failRun(runCtx, modeComplete, started, err)
	}
	if !o.whileActive(runCtx, func() {
		o.ledger.SetGenerationStatus(models.StatusPatch{
			IsGenerating:      models.Bool(false),
			CurrentStep:       models.StepPtr(models.StepComplete),
			Progress:          models.Int(ledger.ProgressComplete),
			CurrentStepDetail: models.String("Tech pack ready"),
		})
	}) {
		return o.failRun(runCtx, modeComplete, started, runCtx.Err())
	}
	o.persist(runCtx)
	o.obs.RecordRun(runCtx, modeComplete, "complete", time.Since(started))

	o.logger.Info("tech pack generated", map[string]interface{}{
		"productId":  in.ProductID,
		"revisions":  len(revisions),
		"credits":    o.ledger.Credits().Total,
		"durationMs": time.Since(started).Milliseconds(),
	})
	return nil
}

// GenerateBaseViewsOnly runs category detection and base-view analysis and stops.
func (o *Orchestrator) GenerateBaseViewsOnly(ctx context.Context, in GenerateInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	revisions := in.revisions()

	runCtx, runID, err := o.beginRun(ctx)
	if err != nil {
		return err
	}
	defer o.endRun(runID)

	if err := o.checkBalance(runCtx, in.ProductID, o.registry.PrerequisiteCost(len(revisions))); err != nil {
		return err
	}

	started := time.Now()
	o.startRun(in, revisions)

	if err := o.runPrerequisites(runCtx, in, revisions); err != nil {
		return o.failRun(runCtx, modeBaseViewsOnly, started, err)
	}
	if !o.whileActive(runCtx, func() {
		o.ledger.SetGenerationStatus(models.StatusPatch{
			IsGenerating:      models.Bool(false),
			CurrentStepDetail: models.String("Base views ready"),
		})
	}) {
		return o.failRun(runCtx, modeBaseViewsOnly, started, runCtx.Err())
	}
	o.persist(runCtx)
	o.obs.RecordRun(runCtx, modeBaseViewsOnly, "complete", time.Since(started))
	return nil
}

func (o *Orchestrator) startRun(in GenerateInput, revisions []string) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	o.claimScope(in.ProductID, revisions[0])
	o.ledger.ClearTechFiles()
	o.ledger.SetGenerationStatus(models.StatusPatch{
		IsGenerating:      models.Bool(true),
		CurrentStep:       models.StepPtr(models.StepCategory),
		Progress:          models.Int(ledger.ProgressStart),
		CurrentStepDetail: models.String("Starting generation"),
		Error:             models.String(""),
	})
}

// runPrerequisites detects the category and analyzes base views, committing each before moving on.
func (o *Orchestrator) runPrerequisites(ctx context.Context, in GenerateInput, revisions []string) error {
	o.advance(ctx, ledger.ProgressCategoryStarted, "Detecting product category")

	category, err := o.client.DetectCategory(ctx, stages.DetectCategoryRequest{
		ProductID: in.ProductID,
		ImageURL:  in.PrimaryImageURL,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o.ledger.SetCategory(category)
	o.charge(registry.StageCategory, len(revisions))
	o.advance(ctx, ledger.ProgressCategoryDone, fmt.Sprintf("Detected %s", category.Category))

	o.whileActive(ctx, func() {
		o.ledger.SetGenerationStatus(models.StatusPatch{CurrentStep: models.StepPtr(models.StepBaseViews)})
	})
	o.advance(ctx, ledger.ProgressBaseViewsStarted, fmt.Sprintf("Analyzing %d base view(s)", len(revisions)))

	views, err := o.client.AnalyzeBaseViews(ctx, stages.AnalyzeBaseViewsRequest{
		ProductID:   in.ProductID,
		RevisionIDs: revisions,
		Category:    category.Category,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o.ledger.SetBaseViews(views)
	o.charge(registry.StageBaseViews, len(revisions))
	o.advance(ctx, ledger.ProgressBaseViewsDone, "Base views analyzed")
	return nil
}

// advance moves a run's progress forward. A cancelled run leaves the reset status alone.
func (o *Orchestrator) advance(ctx context.Context, progress int, detail string) {
	o.whileActive(ctx, func() { o.ledger.AdvanceProgress(progress, detail) })
}

type fanOutResult struct {
	components   []models.ComponentData
	closeUps     []models.CloseUpData
	sketches     []models.SketchData
	flatSketches []models.FlatSketchData
	assemblyView *models.AssemblyViewData
}

// fanOut issues the five asset stages together and commits only once all have succeeded.
// The first failure cancels the others and every placeholder is moved to the error state.
func (o *Orchestrator) fanOut(ctx context.Context, productID string, revisions []string) error {
	o.whileActive(ctx, func() {
		o.ledger.SetGenerationStatus(models.StatusPatch{
			CurrentStep:       models.StepPtr(models.StepComponents),
			CurrentStepDetail: models.String(fanOutDetail),
		})
	})
	for _, step := range models.ParallelSteps {
		o.ledger.MarkLoading(step, o.placeholderCount(step))
	}

	req := o.assetRequest(productID)
	assemblyReq := stages.AssemblyRequest{
		AssetRequest:    req,
		ProductAnalysis: stages.MergeAnalyses(o.ledger.BaseViews()),
	}

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		result  fanOutResult
		done    int
		total   = len(models.ParallelSteps)
		errChan = make(chan error, total)
	)

	run := func(fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(fanCtx); err != nil {
				errChan <- err
				cancel()
				return
			}
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			o.advance(fanCtx, ledger.FanOutProgress(n, total), "")
		}()
	}

	run(func(ctx context.Context) error {
		items, err := o.client.GenerateComponents(ctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		result.components = items
		mu.Unlock()
		return nil
	})
	run(func(ctx context.Context) error {
		items, err := o.client.GenerateCloseUps(ctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		result.closeUps = items
		mu.Unlock()
		return nil
	})
	run(func(ctx context.Context) error {
		items, err := o.client.GenerateSketches(ctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		result.sketches = items
		mu.Unlock()
		return nil
	})
	run(func(ctx context.Context) error {
		items, err := o.client.GenerateFlatSketches(ctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		result.flatSketches = items
		mu.Unlock()
		return nil
	})
	run(func(ctx context.Context) error {
		view, err := o.client.GenerateAssemblyView(ctx, assemblyReq)
		if err != nil {
			return err
		}
		mu.Lock()
		result.assemblyView = view
		mu.Unlock()
		return nil
	})

	wg.Wait()
	close(errChan)

	if err := firstFailure(errChan); err != nil {
		for _, step := range models.ParallelSteps {
			o.ledger.MarkFailed(step)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.ledger.SetComponents(result.components)
	o.ledger.SetCloseUps(result.closeUps)
	o.ledger.SetSketches(result.sketches)
	o.ledger.SetFlatSketches(result.flatSketches)
	o.ledger.SetAssemblyView(result.assemblyView)

	for _, id := range []string{registry.StageComponents, registry.StageCloseUps, registry.StageSketches, registry.StageFlatSketches, registry.StageAssemblyView} {
		o.charge(id, len(revisions))
	}
	return nil
}

// firstFailure prefers a real stage error over the cancellations it caused in sibling calls.
func firstFailure(errChan <-chan error) error {
	var first error
	for err := range errChan {
		if first == nil || (errors.Is(first, context.Canceled) && !errors.Is(err, context.Canceled)) {
			first = err
		}
	}
	return first
}

func (o *Orchestrator) assetRequest(productID string) stages.AssetRequest {
	category := ""
	if c := o.ledger.Category(); c != nil {
		category = c.Category
	}
	return stages.AssetRequest{
		ProductID:        productID,
		ProductCategory:  category,
		BaseViewAnalyses: stages.AnalysesFromBaseViews(o.ledger.BaseViews()),
	}
}

func (o *Orchestrator) placeholderCount(step models.Step) int {
	if s, ok := o.registry.Lookup(string(step)); ok && s.PlaceholderCount > 0 {
		return s.PlaceholderCount
	}
	return 1
}
