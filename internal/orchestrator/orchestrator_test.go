package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techpack-studio/internal/cache"
	"techpack-studio/internal/common/config"
	"techpack-studio/internal/common/database"
	apperrors "techpack-studio/internal/common/errors"
	apihttp "techpack-studio/internal/common/http"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/common/observability"
	"techpack-studio/internal/ledger"
	"techpack-studio/internal/models"
	"techpack-studio/internal/stages"
	"techpack-studio/pkg/registry"
)

const (
	pathCategory     = "/api/tech-pack/detect-category"
	pathBaseViews    = "/api/tech-pack/analyze-base-views"
	pathComponents   = "/api/tech-pack/generate-components"
	pathCloseUps     = "/api/tech-pack/generate-closeups"
	pathSketches     = "/api/tech-pack/generate-sketches"
	pathFlatSketches = "/api/tech-pack/generate-flat-sketches"
	pathAssembly     = "/api/tech-pack/generate-assembly-view"
	pathEdit         = "/api/tech-pack/edit"
	pathRegenView    = "/api/tech-pack/regenerate-view"
	pathRegenSketch  = "/api/tech-pack/regenerate-sketch"
	pathExisting     = "/api/tech-pack/get-existing-files"
	pathBalance      = "/api/credits/balance"
)

var fanOutPaths = []string{pathComponents, pathCloseUps, pathSketches, pathFlatSketches, pathAssembly}

var cannedResponses = map[string]string{
	pathCategory:  `{"success":true,"data":{"category":"bags","subcategory":"tote","confidence":0.93}}`,
	pathBaseViews: `{"success":true,"data":{"baseViews":[{"revisionId":"r-1","viewType":"front","imageUrl":"https://img/front.png","analysisData":{"material":"canvas"},"confidenceScore":0.9}]}}`,
	pathComponents: `{"success":true,"data":{"components":[
		{"id":"cmp-1","componentName":"strap","imageUrl":"https://img/c1.png"},
		{"id":"cmp-2","componentName":"buckle","imageUrl":"https://img/c2.png"},
		{"id":"cmp-3","componentName":"zipper","imageUrl":"https://img/c3.png"},
		{"id":"cmp-4","componentName":"lining","imageUrl":"https://img/c4.png"},
		{"id":"cmp-5","componentName":"handle","imageUrl":"https://img/c5.png"}]}}`,
	pathCloseUps: `{"success":true,"data":{"closeUps":[
		{"id":"cu-1","title":"stitching","imageUrl":"https://img/u1.png"},
		{"id":"cu-2","title":"rivet","imageUrl":"https://img/u2.png"},
		{"id":"cu-3","title":"label","imageUrl":"https://img/u3.png"}]}}`,
	pathSketches: `{"success":true,"data":{"sketches":[
		{"id":"sk-1","viewType":"front","imageUrl":"https://img/s1.png"},
		{"id":"sk-2","viewType":"back","imageUrl":"https://img/s2.png"},
		{"id":"sk-3","viewType":"side","imageUrl":"https://img/s3.png"}]}}`,
	pathFlatSketches: `{"success":true,"data":{"flatSketches":[
		{"id":"fs-1","viewType":"front","imageUrl":"https://img/f1.png"},
		{"id":"fs-2","viewType":"back","imageUrl":"https://img/f2.png"},
		{"id":"fs-3","viewType":"side","imageUrl":"https://img/f3.png"}]}}`,
	pathAssembly:    `{"success":true,"data":{"assemblyView":{"id":"asm-1","imageUrl":"https://img/asm.png","summary":{"overview":"attach straps last"}}}}`,
	pathEdit:        `{"success":true,"data":{"updatedAnalysis":{"material":"leather"}}}`,
	pathRegenView:   `{"success":true,"data":{"updatedView":{"viewType":"front","imageUrl":"https://img/front-v2.png","analysisData":{"material":"denim"}}}}`,
	pathRegenSketch: `{"success":true,"data":{"sketch":{"id":"sk-new","viewType":"front","imageUrl":"https://img/s-new.png"}}}`,
	pathExisting:    `{"success":true,"data":{}}`,
	pathBalance:     `{"success":true,"data":{"balance":100}}`,
}

type harness struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int
	server   *httptest.Server
	ledger   *ledger.Ledger
	orch     *Orchestrator
}

func newHarness(t *testing.T, cfg *config.Config, c *cache.TechFileCache) *harness {
	h := &harness{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}
	for path, body := range cannedResponses {
		h.respond(path, body)
	}

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.counts[r.URL.Path]++
		handler, ok := h.handlers[r.URL.Path]
		h.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(h.server.Close)

	if cfg == nil {
		cfg = &config.Config{}
	}
	log := logger.NewTestLogger(t)
	transport := apihttp.NewClient(h.server.URL, apihttp.WithMaxRetries(0))
	client := stages.NewClient(transport, registry.Default(), cfg, observability.NewNoop(), log)

	h.ledger = ledger.New(log)
	h.orch = New(cfg, client, h.ledger, c, registry.Default(), observability.NewNoop(), log)
	return h
}

func (h *harness) handle(path string, fn http.HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[path] = fn
}

func (h *harness) respond(path, body string) {
	h.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func (h *harness) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[path]
}

func oneRevision() GenerateInput {
	return GenerateInput{
		ProductID:       "p-1",
		RevisionIDs:     []string{"r-1"},
		PrimaryImageURL: "https://img/front.png",
	}
}

// seed puts the ledger in the state a finished base-views run leaves behind.
func (h *harness) seed() {
	h.orch.SetScope("p-1", "r-1")
	h.ledger.SetCategory(&models.CategoryData{Category: "bags", Confidence: 0.9})
	h.ledger.SetBaseViews([]models.BaseViewData{
		{RevisionID: "r-1", ViewType: "front", ImageURL: "https://img/front.png", AnalysisData: map[string]interface{}{"material": "canvas"}},
		{RevisionID: "r-2", ViewType: "back", ImageURL: "https://img/back.png", AnalysisData: map[string]interface{}{"material": "canvas"}},
	})
}

func TestGenerateComplete_HappyPath(t *testing.T) {
	h := newHarness(t, nil, nil)

	require.NoError(t, h.orch.GenerateComplete(context.Background(), oneRevision()))

	snap := h.ledger.Snapshot()
	assert.False(t, snap.Status.IsGenerating)
	assert.Equal(t, models.StepComplete, snap.Status.CurrentStep)
	assert.Equal(t, 100, snap.Status.Progress)
	assert.Empty(t, snap.Status.Error)

	assert.Equal(t, "bags", snap.Category.Category)
	assert.Len(t, snap.BaseViews, 1)
	assert.Len(t, snap.Components, 5)
	assert.Len(t, snap.CloseUps, 3)
	assert.Len(t, snap.Sketches, 3)
	assert.Len(t, snap.FlatSketches, 3)
	require.NotNil(t, snap.AssemblyView)
	assert.Equal(t, "asm-1", snap.AssemblyView.ID)

	for _, c := range snap.Components {
		assert.Equal(t, models.LoadingStateLoaded, c.LoadingState)
		assert.False(t, c.IsPlaceholder())
	}

	assert.Equal(t, 15, snap.Credits.Total)
	assert.Equal(t, 1, snap.Credits.BaseViews)
	assert.Equal(t, 6, snap.Credits.Sketches)
	assert.Zero(t, snap.Credits.CategoryDetection)

	for _, path := range append([]string{pathCategory, pathBaseViews}, fanOutPaths...) {
		assert.Equal(t, 1, h.count(path), path)
	}
	assert.False(t, h.orch.IsRunning())
}

func TestGenerateComplete_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, nil, nil)

	var mu sync.Mutex
	var statuses []models.GenerationStatus
	h.ledger.Subscribe(func(s ledger.Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})

	require.NoError(t, h.orch.GenerateComplete(context.Background(), oneRevision()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	prev := 0
	for _, s := range statuses {
		assert.GreaterOrEqual(t, s.Progress, prev)
		prev = s.Progress
		if s.Progress == 100 {
			assert.Equal(t, models.StepComplete, s.CurrentStep)
		}
		if s.CurrentStep == models.StepComplete {
			assert.Equal(t, 100, s.Progress)
			assert.False(t, s.IsGenerating)
		}
	}
	assert.Equal(t, models.StepComplete, statuses[len(statuses)-1].CurrentStep)
}

func TestGenerateComplete_BaseViewsFailureSkipsFanOut(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.respond(pathBaseViews, `{"success":false,"error":"analysis failed"}`)

	err := h.orch.GenerateComplete(context.Background(), oneRevision())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stages.ErrStageRejected))
	for _, path := range fanOutPaths {
		assert.Zero(t, h.count(path), path)
	}

	status := h.ledger.Status()
	assert.Equal(t, models.StepError, status.CurrentStep)
	assert.False(t, status.IsGenerating)
	assert.Contains(t, status.Error, "analysis failed")
	assert.Less(t, status.Progress, 100)
	assert.Empty(t, h.ledger.Components())
}

func TestGenerateComplete_FanOutIsConcurrent(t *testing.T) {
	h := newHarness(t, nil, nil)

	var arrived sync.WaitGroup
	arrived.Add(len(fanOutPaths))
	allIn := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allIn)
	}()

	for _, path := range fanOutPaths {
		body := cannedResponses[path]
		h.handle(path, func(w http.ResponseWriter, r *http.Request) {
			arrived.Done()
			select {
			case <-allIn:
			case <-time.After(3 * time.Second):
				w.WriteHeader(http.StatusGatewayTimeout)
				return
			}
			_, _ = w.Write([]byte(body))
		})
	}

	var mu sync.Mutex
	committedEarly := false
	h.ledger.Subscribe(func(s ledger.Snapshot) {
		select {
		case <-allIn:
		default:
			for _, c := range s.Components {
				if !c.IsPlaceholder() {
					mu.Lock()
					committedEarly = true
					mu.Unlock()
				}
			}
		}
	})

	require.NoError(t, h.orch.GenerateComplete(context.Background(), oneRevision()))
	mu.Lock()
	assert.False(t, committedEarly)
	mu.Unlock()
	assert.Equal(t, models.StepComplete, h.ledger.Status().CurrentStep)
}

func TestGenerateComplete_FanOutFailureCommitsNothing(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.respond(pathSketches, `{"success":false,"error":"sketch model unavailable"}`)

	err := h.orch.GenerateComplete(context.Background(), oneRevision())

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStageRejected))

	snap := h.ledger.Snapshot()
	assert.Equal(t, models.StepError, snap.Status.CurrentStep)
	assert.False(t, snap.Status.IsGenerating)
	assert.Contains(t, snap.Status.Error, "sketch model unavailable")

	require.Len(t, snap.Components, 5)
	for _, c := range snap.Components {
		assert.True(t, strings.HasPrefix(c.ID, models.PlaceholderPrefix))
		assert.Equal(t, models.LoadingStateError, c.LoadingState)
	}
	require.NotNil(t, snap.AssemblyView)
	assert.Equal(t, models.LoadingStateError, snap.AssemblyView.LoadingState)

	assert.Equal(t, 1, snap.Credits.Total)
}

func TestGenerateComplete_ValidationFailsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		input GenerateInput
	}{
		{"missing product", GenerateInput{RevisionIDs: []string{"r-1"}, PrimaryImageURL: "u"}},
		{"missing revisions", GenerateInput{ProductID: "p-1", PrimaryImageURL: "u"}},
		{"missing image", GenerateInput{ProductID: "p-1", RevisionIDs: []string{"r-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, nil)

			err := h.orch.GenerateComplete(context.Background(), tt.input)

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
			assert.Zero(t, h.count(pathCategory))
			assert.Equal(t, models.IdleStatus(), h.ledger.Status())
		})
	}
}

func TestGenerateComplete_InsufficientCredits(t *testing.T) {
	cfg := &config.Config{Credits: config.CreditsConfig{CheckBalance: true, BalancePath: pathBalance}}
	h := newHarness(t, cfg, nil)
	h.respond(pathBalance, `{"success":true,"data":{"balance":3}}`)

	err := h.orch.GenerateComplete(context.Background(), oneRevision())

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInsufficientCredits))
	assert.Equal(t, 1, h.count(pathBalance))
	assert.Zero(t, h.count(pathCategory))
	assert.Equal(t, models.IdleStatus(), h.ledger.Status())
	assert.False(t, h.orch.IsRunning())
}

// blockCategory holds the category request until release is closed.
func blockCategory(h *harness) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	h.handle(pathCategory, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(cannedResponses[pathCategory]))
	})
	return entered, release
}

func TestGenerateComplete_RejectsConcurrentRun(t *testing.T) {
	h := newHarness(t, nil, nil)
	entered, release := blockCategory(h)

	done := make(chan error, 1)
	go func() { done <- h.orch.GenerateComplete(context.Background(), oneRevision()) }()
	<-entered

	err := h.orch.GenerateBaseViewsOnly(context.Background(), oneRevision())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGenerationInProgress))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.count(pathCategory))
}

func TestCancelGeneration(t *testing.T) {
	h := newHarness(t, nil, nil)
	entered, _ := blockCategory(h)

	done := make(chan error, 1)
	go func() { done <- h.orch.GenerateComplete(context.Background(), oneRevision()) }()
	<-entered

	assert.True(t, h.orch.CancelGeneration())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGenerationCancelled))
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	status := h.ledger.Status()
	assert.Equal(t, models.IdleStatus(), status)
	assert.False(t, h.orch.IsRunning())
	assert.Zero(t, h.count(pathBaseViews))

	assert.False(t, h.orch.CancelGeneration())
}

func TestCancelGeneration_DuringFanOutLeavesIdleStatus(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.handle(pathComponents, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	done := make(chan error, 1)
	go func() { done <- h.orch.GenerateComplete(context.Background(), oneRevision()) }()

	require.Eventually(t, func() bool {
		return h.ledger.Status().Progress >= ledger.FanOutProgress(4, len(models.ParallelSteps))
	}, 3*time.Second, 5*time.Millisecond)

	assert.True(t, h.orch.CancelGeneration())

	select {
	case err := <-done:
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGenerationCancelled))
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.Equal(t, models.IdleStatus(), h.ledger.Status())
	assert.Zero(t, h.ledger.Credits().Components)
}

func TestGenerateBaseViewsOnly(t *testing.T) {
	h := newHarness(t, nil, nil)

	require.NoError(t, h.orch.GenerateBaseViewsOnly(context.Background(), oneRevision()))

	status := h.ledger.Status()
	assert.False(t, status.IsGenerating)
	assert.Equal(t, models.StepBaseViews, status.CurrentStep)
	assert.Equal(t, ledger.ProgressBaseViewsDone, status.Progress)

	assert.Len(t, h.ledger.BaseViews(), 1)
	assert.Empty(t, h.ledger.Components())
	assert.Equal(t, 1, h.ledger.Credits().Total)
	for _, path := range fanOutPaths {
		assert.Zero(t, h.count(path))
	}
}

func TestRegenerateAllCloseUps_InsertsPlaceholdersWhenEmpty(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()

	var during []models.CloseUpData
	h.handle(pathCloseUps, func(w http.ResponseWriter, r *http.Request) {
		during = h.ledger.CloseUps()
		_, _ = w.Write([]byte(cannedResponses[pathCloseUps]))
	})

	require.NoError(t, h.orch.RegenerateAllCloseUps(context.Background()))

	require.Len(t, during, 3)
	for _, c := range during {
		assert.Equal(t, models.LoadingStateLoading, c.LoadingState)
		assert.True(t, c.IsPlaceholder())
	}

	closeUps := h.ledger.CloseUps()
	require.Len(t, closeUps, 3)
	assert.Equal(t, "cu-1", closeUps[0].ID)
	assert.Equal(t, models.LoadingStateLoaded, closeUps[0].LoadingState)
	assert.Equal(t, 2, h.ledger.Credits().CloseUps)

	ops := h.ledger.RegenerationOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.TargetCloseUps, ops[0].Target)
	assert.Equal(t, models.OperationCompleted, ops[0].Status)
	assert.NotNil(t, ops[0].CompletedAt)
}

func TestRegenerateAll_SendsBaseViewsAndCategory(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()

	var body string
	h.handle(pathComponents, func(w http.ResponseWriter, r *http.Request) {
		body = readAll(r)
		_, _ = w.Write([]byte(cannedResponses[pathComponents]))
	})

	require.NoError(t, h.orch.RegenerateAllComponents(context.Background()))

	assert.Contains(t, body, `"productCategory":"bags"`)
	assert.Contains(t, body, `"revisionId":"r-1"`)
	assert.Contains(t, body, `"revisionId":"r-2"`)
	assert.Len(t, h.ledger.Components(), 5)
}

func TestRegenerate_FailureLeavesErrorState(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	h.ledger.SetFlatSketches([]models.FlatSketchData{{ID: "fs-old", ViewType: "front", LoadingState: models.LoadingStateLoaded}})
	h.respond(pathFlatSketches, `{"success":false,"error":"quota exceeded"}`)

	err := h.orch.RegenerateAllFlatSketches(context.Background())

	require.Error(t, err)
	flats := h.ledger.FlatSketches()
	require.Len(t, flats, 1)
	assert.Equal(t, "fs-old", flats[0].ID)
	assert.Equal(t, models.LoadingStateError, flats[0].LoadingState)
	assert.Zero(t, h.ledger.Credits().Total)

	ops := h.ledger.RegenerationOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationError, ops[0].Status)
	assert.Contains(t, ops[0].Error, "quota exceeded")

	// generation status is untouched by regenerations
	assert.Equal(t, models.IdleStatus(), h.ledger.Status())
}

func TestRegenerate_DropsResultOverriddenByRun(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h.handle(pathComponents, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`{"success":true,"data":{"components":[{"id":"stale","componentName":"old strap"}]}}`))
			return
		}
		_, _ = w.Write([]byte(cannedResponses[pathComponents]))
	})

	done := make(chan error, 1)
	go func() { done <- h.orch.RegenerateAllComponents(context.Background()) }()
	<-entered

	require.NoError(t, h.orch.GenerateComplete(context.Background(), oneRevision()))
	close(release)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSuperseded))
	case <-time.After(3 * time.Second):
		t.Fatal("regeneration did not finish")
	}

	components := h.ledger.Components()
	require.Len(t, components, 5)
	assert.Equal(t, "cmp-1", components[0].ID)

	credits := h.ledger.Credits()
	assert.Equal(t, 2, credits.Components)
	assert.Equal(t, 15, credits.Total)

	ops := h.ledger.RegenerationOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationError, ops[0].Status)
}

func TestRegenerate_RequiresBaseViews(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.orch.SetScope("p-1", "r-1")

	err := h.orch.RegenerateAssemblyView(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
	assert.Zero(t, h.count(pathAssembly))
}

func TestRegenerateAssemblyViewAndSketches(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	ctx := context.Background()

	require.NoError(t, h.orch.RegenerateAssemblyView(ctx))
	require.NoError(t, h.orch.RegenerateAllSketches(ctx))

	assert.Equal(t, "attach straps last", h.ledger.AssemblyView().Summary.Overview)
	assert.Len(t, h.ledger.Sketches(), 3)

	credits := h.ledger.Credits()
	assert.Equal(t, 2, credits.AssemblyView)
	assert.Equal(t, 6, credits.Sketches)
	assert.Equal(t, 8, credits.Total)
}

func TestRegenerateSketch(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	h.ledger.SetSketches([]models.SketchData{
		{ID: "sk-1", ViewType: "front", LoadingState: models.LoadingStateLoaded},
		{ID: "sk-2", ViewType: "back", LoadingState: models.LoadingStateLoaded},
	})

	require.NoError(t, h.orch.RegenerateSketch(context.Background(), "front", "bolder outline"))

	sketches := h.ledger.Sketches()
	require.Len(t, sketches, 2)
	assert.Equal(t, "sk-new", sketches[0].ID)
	assert.Equal(t, "sk-2", sketches[1].ID)
	assert.Equal(t, 1, h.ledger.Credits().Regenerations)

	ops := h.ledger.RegenerationOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.TargetSketch, ops[0].Target)
	assert.Equal(t, "sk-1", ops[0].TargetID)
	assert.Equal(t, "bolder outline", ops[0].Prompt)
}

func TestRegenerateBaseView(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	h.ledger.ToggleBaseViewExpanded("r-1")

	require.NoError(t, h.orch.RegenerateBaseView(context.Background(), "r-1", ""))

	views := h.ledger.BaseViews()
	assert.Equal(t, "r-1", views[0].RevisionID)
	assert.Equal(t, "https://img/front-v2.png", views[0].ImageURL)
	assert.Equal(t, "denim", views[0].AnalysisData["material"])
	assert.True(t, views[0].IsExpanded)
	assert.Equal(t, "https://img/back.png", views[1].ImageURL)
	assert.Equal(t, 1, h.ledger.Credits().Regenerations)

	err := h.orch.RegenerateBaseView(context.Background(), "r-missing", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestEditField(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	h.ledger.SetComponents([]models.ComponentData{{ID: "cmp-1", LoadingState: models.LoadingStateLoaded}})

	require.NoError(t, h.orch.EditField(context.Background(), "r-1", "material", "use leather"))

	views := h.ledger.BaseViews()
	assert.Equal(t, "leather", views[0].AnalysisData["material"])
	assert.Equal(t, "canvas", views[1].AnalysisData["material"])
	assert.Len(t, h.ledger.Components(), 1)

	credits := h.ledger.Credits()
	assert.Equal(t, 1, credits.Edits)
	assert.Equal(t, 1, credits.Total)

	ops := h.ledger.EditOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationCompleted, ops[0].Status)
	assert.Equal(t, "material", ops[0].FieldPath)
}

func TestEditField_Failure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	h.respond(pathEdit, `{"success":false,"error":"cannot edit"}`)

	err := h.orch.EditField(context.Background(), "r-1", "material", "use leather")

	require.Error(t, err)
	assert.Equal(t, "canvas", h.ledger.BaseViews()[0].AnalysisData["material"])
	assert.Zero(t, h.ledger.Credits().Total)
	assert.Equal(t, models.OperationError, h.ledger.EditOperations()[0].Status)

	err = h.orch.EditField(context.Background(), "r-1", "", "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestEditField_DropsResultAfterRevisionSwitch(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.handle(pathEdit, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte(cannedResponses[pathEdit]))
	})

	done := make(chan error, 1)
	go func() { done <- h.orch.EditField(context.Background(), "r-1", "material", "use leather") }()
	<-entered

	found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-b")
	require.NoError(t, err)
	require.False(t, found)
	close(release)

	err = <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSuperseded))
	assert.Empty(t, h.ledger.BaseViews())
	assert.Zero(t, h.ledger.Credits().Edits)

	ops := h.ledger.EditOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationError, ops[0].Status)
}

func TestEditField_RejectedDuringRun(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed()
	entered, release := blockCategory(h)

	done := make(chan error, 1)
	go func() { done <- h.orch.GenerateComplete(context.Background(), oneRevision()) }()
	<-entered

	err := h.orch.EditField(context.Background(), "r-1", "material", "use leather")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGenerationInProgress))
	assert.Zero(t, h.count(pathEdit))

	close(release)
	require.NoError(t, <-done)
}

func TestLoadExistingTechFiles(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.respond(pathExisting, `{"success":true,"data":{
			"category":{"category":"bags","confidence":0.8},
			"baseViews":[{"revisionId":"r-1","viewType":"front","imageUrl":"https://img/front.png"}],
			"components":[{"id":"cmp-1","componentName":"strap","loadingState":"loaded"}]}}`)

		found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")

		require.NoError(t, err)
		assert.True(t, found)
		snap := h.ledger.Snapshot()
		assert.Len(t, snap.Components, 1)
		assert.Equal(t, models.StepComplete, snap.Status.CurrentStep)
		assert.Equal(t, 100, snap.Status.Progress)
		assert.False(t, snap.Status.IsGenerating)
		assert.Equal(t, Scope{ProductID: "p-1", RevisionID: "r-1"}, h.orch.Scope())
	})

	t.Run("clears stale data before the lookup and stays empty", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.seed()
		h.ledger.SetComponents([]models.ComponentData{{ID: "from-revision-a"}})

		var hadDataDuringFetch bool
		h.handle(pathExisting, func(w http.ResponseWriter, r *http.Request) {
			hadDataDuringFetch = h.ledger.HasData()
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
		})

		found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-b")

		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, hadDataDuringFetch)
		assert.False(t, h.ledger.HasData())
	})

	t.Run("failure", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.respond(pathExisting, `{"success":false,"error":"store down"}`)

		found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")

		assert.False(t, found)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExistingFilesLoadFailed))
	})
}

func TestLoadExistingTechFiles_DeduplicatesConcurrentLoads(t *testing.T) {
	h := newHarness(t, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.handle(pathExisting, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		_, _ = w.Write([]byte(`{"success":true,"data":{"baseViews":[{"revisionId":"r-1","viewType":"front","imageUrl":"u"}]}}`))
	})

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, h.count(pathExisting))
	assert.Equal(t, []bool{true, true}, results)
}

func TestLoadExistingTechFiles_DiscardsSupersededRevision(t *testing.T) {
	h := newHarness(t, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.handle(pathExisting, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(readAll(r), `"revisionId":"r-a"`) {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`{"success":true,"data":{"components":[{"id":"cmp-a","loadingState":"loaded"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	})

	type outcome struct {
		found bool
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-a")
		done <- outcome{found, err}
	}()
	<-entered

	found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-b")
	require.NoError(t, err)
	assert.False(t, found)

	close(release)
	out := <-done
	assert.False(t, out.found)
	assert.True(t, errors.Is(out.err, ErrSuperseded))
	assert.False(t, h.ledger.HasData())
	assert.Equal(t, Scope{ProductID: "p-1", RevisionID: "r-b"}, h.orch.Scope())
}

func TestLoadExistingTechFiles_SupersededLoadKeepsNewerData(t *testing.T) {
	h := newHarness(t, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.handle(pathExisting, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(readAll(r), `"revisionId":"r-slow"`) {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"baseViews":[{"revisionId":"r-a","viewType":"front","imageUrl":"u"}]}}`))
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-slow")
		done <- err
	}()
	<-entered

	found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-a")
	require.NoError(t, err)
	require.True(t, found)

	close(release)
	assert.True(t, errors.Is(<-done, ErrSuperseded))

	// the slow revision no longer owns the ledger, so it cannot clear it
	assert.False(t, h.orch.ResetIfCurrent("p-1", "r-slow"))
	assert.True(t, h.ledger.HasData())
	assert.Equal(t, models.StepComplete, h.ledger.Status().CurrentStep)

	assert.True(t, h.orch.ResetIfCurrent("p-1", "r-a"))
	assert.False(t, h.ledger.HasData())
}

func TestLoadExistingTechFiles_UsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	techCache := cache.New(database.NewRedisFromClient(client), time.Hour, logger.NewTestLogger(t))

	h := newHarness(t, nil, techCache)
	require.NoError(t, h.orch.GenerateComplete(context.Background(), oneRevision()))
	assert.True(t, mr.Exists(cache.Key("p-1", "r-1")))

	h.ledger.Reset()
	found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, h.count(pathExisting))
	assert.Len(t, h.ledger.Components(), 5)
}

func TestLoadExistingTechFiles_CacheFailureFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	techCache := cache.New(database.NewRedisFromClient(client), time.Hour, logger.NewTestLogger(t))
	mr.Close()

	h := newHarness(t, nil, techCache)
	h.respond(pathExisting, `{"success":true,"data":{"baseViews":[{"revisionId":"r-1","viewType":"front","imageUrl":"u"}]}}`)

	found, err := h.orch.LoadExistingTechFiles(context.Background(), "p-1", "r-1")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, h.count(pathExisting))
}

func readAll(r *http.Request) string {
	raw, _ := io.ReadAll(r.Body)
	return string(raw)
}
