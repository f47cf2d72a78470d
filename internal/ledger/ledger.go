package ledger

import (
	"sync"

	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/models"
)

// Ledger is the canonical in-memory state of one product's tech-pack generation.
// Mutators never fail; getters return copies.
type Ledger struct {
	mu    sync.RWMutex
	state Snapshot

	// notifyMu keeps notifications in mutation order.
	notifyMu    sync.Mutex
	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int

	logger logger.Logger
}

func New(log logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Ledger{
		state:       emptySnapshot(),
		subscribers: make(map[int]func(Snapshot)),
		logger: log.WithFields(map[string]interface{}{
			"component": "ledger",
		}),
	}
}

// Subscribe registers fn to receive a snapshot after every mutation, in mutation order.
// fn must not mutate the ledger. The returned func unsubscribes.
func (l *Ledger) Subscribe(fn func(Snapshot)) func() {
	l.subMu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	l.subMu.Unlock()

	return func() {
		l.subMu.Lock()
		delete(l.subscribers, id)
		l.subMu.Unlock()
	}
}

// mutate applies fn under the write lock and notifies subscribers outside it.
func (l *Ledger) mutate(fn func(s *Snapshot)) {
	l.mu.Lock()
	fn(&l.state)
	snap := l.state.clone()
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()

	l.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(l.subscribers))
	for _, s := range l.subscribers {
		subs = append(subs, s)
	}
	l.subMu.Unlock()

	for _, s := range subs {
		s(snap)
	}
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.clone()
}

func (l *Ledger) TechFiles() models.TechFiles {
	return l.Snapshot().TechFiles()
}

func (l *Ledger) HasData() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.HasData()
}

// Status

func (l *Ledger) Status() models.GenerationStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Status
}

func (l *Ledger) SetGenerationStatus(patch models.StatusPatch) {
	l.mutate(func(s *Snapshot) {
		s.Status = patch.Apply(s.Status)
	})
}

// AdvanceProgress raises progress to p. Lower values are ignored so progress never moves backwards within a run.
func (l *Ledger) AdvanceProgress(p int, detail string) {
	l.mutate(func(s *Snapshot) {
		if p > 100 {
			p = 100
		}
		if p > s.Status.Progress {
			s.Status.Progress = p
		}
		if detail != "" {
			s.Status.CurrentStepDetail = detail
		}
	})
}

// ResetGenerationStatus clears only the status. Generated assets are kept.
func (l *Ledger) ResetGenerationStatus() {
	l.mutate(func(s *Snapshot) {
		s.Status = models.IdleStatus()
	})
}

// Reset returns the ledger to its initial empty state.
func (l *Ledger) Reset() {
	l.mutate(func(s *Snapshot) {
		*s = emptySnapshot()
	})
}

// ClearTechFiles empties every asset collection. Status, credits and operation logs are kept.
func (l *Ledger) ClearTechFiles() {
	l.mutate(func(s *Snapshot) {
		s.Category = nil
		s.BaseViews = nil
		s.Components = nil
		s.CloseUps = nil
		s.Sketches = nil
		s.FlatSketches = nil
		s.AssemblyView = nil
	})
}

// LoadTechFiles replaces every asset collection wholesale.
func (l *Ledger) LoadTechFiles(files models.TechFiles) {
	l.mutate(func(s *Snapshot) {
		s.Category = copyCategory(files.Category)
		s.BaseViews = copyBaseViews(files.BaseViews)
		s.Components = append([]models.ComponentData(nil), files.Components...)
		s.CloseUps = append([]models.CloseUpData(nil), files.CloseUps...)
		s.Sketches = copySketches(files.Sketches)
		s.FlatSketches = copyFlatSketches(files.FlatSketches)
		s.AssemblyView = copyAssemblyView(files.AssemblyView)
	})
}

// Category

func (l *Ledger) Category() *models.CategoryData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyCategory(l.state.Category)
}

func (l *Ledger) SetCategory(c *models.CategoryData) {
	l.mutate(func(s *Snapshot) {
		s.Category = copyCategory(c)
	})
}

// Base views

func (l *Ledger) BaseViews() []models.BaseViewData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyBaseViews(l.state.BaseViews)
}

// FilteredBaseViews returns only views with both a view type and an image.
func (l *Ledger) FilteredBaseViews() []models.BaseViewData {
	return FilterBaseViews(l.BaseViews())
}

func FilterBaseViews(views []models.BaseViewData) []models.BaseViewData {
	out := make([]models.BaseViewData, 0, len(views))
	for _, v := range views {
		if v.IsValid() {
			out = append(out, v)
		}
	}
	return out
}

func (l *Ledger) SetBaseViews(views []models.BaseViewData) {
	l.mutate(func(s *Snapshot) {
		s.BaseViews = copyBaseViews(views)
	})
}

func (l *Ledger) UpdateBaseView(revisionID string, patch func(*models.BaseViewData)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.BaseViews {
			if s.BaseViews[i].RevisionID == revisionID {
				patch(&s.BaseViews[i])
				return
			}
		}
		l.ignoredUpdate("baseView", revisionID)
	})
}

// ToggleBaseViewExpanded flips the target view and collapses every other one.
func (l *Ledger) ToggleBaseViewExpanded(revisionID string) {
	l.mutate(func(s *Snapshot) {
		for i := range s.BaseViews {
			if s.BaseViews[i].RevisionID == revisionID {
				s.BaseViews[i].IsExpanded = !s.BaseViews[i].IsExpanded
			} else {
				s.BaseViews[i].IsExpanded = false
			}
		}
	})
}

// Components

func (l *Ledger) Components() []models.ComponentData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.ComponentData(nil), l.state.Components...)
}

func (l *Ledger) AddComponent(c models.ComponentData) {
	l.mutate(func(s *Snapshot) {
		s.Components = append(s.Components, c)
	})
}

func (l *Ledger) SetComponents(cs []models.ComponentData) {
	l.mutate(func(s *Snapshot) {
		s.Components = append([]models.ComponentData(nil), cs...)
	})
}

func (l *Ledger) UpdateComponent(id string, patch func(*models.ComponentData)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.Components {
			if s.Components[i].ID == id {
				patch(&s.Components[i])
				return
			}
		}
		l.ignoredUpdate("component", id)
	})
}

// Close-ups

func (l *Ledger) CloseUps() []models.CloseUpData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.CloseUpData(nil), l.state.CloseUps...)
}

func (l *Ledger) AddCloseUp(c models.CloseUpData) {
	l.mutate(func(s *Snapshot) {
		s.CloseUps = append(s.CloseUps, c)
	})
}

func (l *Ledger) SetCloseUps(cs []models.CloseUpData) {
	l.mutate(func(s *Snapshot) {
		s.CloseUps = append([]models.CloseUpData(nil), cs...)
	})
}

func (l *Ledger) UpdateCloseUp(id string, patch func(*models.CloseUpData)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.CloseUps {
			if s.CloseUps[i].ID == id {
				patch(&s.CloseUps[i])
				return
			}
		}
		l.ignoredUpdate("closeUp", id)
	})
}

// Sketches

func (l *Ledger) Sketches() []models.SketchData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copySketches(l.state.Sketches)
}

func (l *Ledger) AddSketch(sk models.SketchData) {
	l.mutate(func(s *Snapshot) {
		s.Sketches = append(s.Sketches, copySketches([]models.SketchData{sk})...)
	})
}

func (l *Ledger) SetSketches(sks []models.SketchData) {
	l.mutate(func(s *Snapshot) {
		s.Sketches = copySketches(sks)
	})
}

func (l *Ledger) UpdateSketch(id string, patch func(*models.SketchData)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.Sketches {
			if s.Sketches[i].ID == id {
				patch(&s.Sketches[i])
				return
			}
		}
		l.ignoredUpdate("sketch", id)
	})
}

// Flat sketches

func (l *Ledger) FlatSketches() []models.FlatSketchData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyFlatSketches(l.state.FlatSketches)
}

func (l *Ledger) AddFlatSketch(f models.FlatSketchData) {
	l.mutate(func(s *Snapshot) {
		s.FlatSketches = append(s.FlatSketches, copyFlatSketches([]models.FlatSketchData{f})...)
	})
}

func (l *Ledger) SetFlatSketches(fs []models.FlatSketchData) {
	l.mutate(func(s *Snapshot) {
		s.FlatSketches = copyFlatSketches(fs)
	})
}

func (l *Ledger) UpdateFlatSketch(id string, patch func(*models.FlatSketchData)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.FlatSketches {
			if s.FlatSketches[i].ID == id {
				patch(&s.FlatSketches[i])
				return
			}
		}
		l.ignoredUpdate("flatSketch", id)
	})
}

// Assembly view

func (l *Ledger) AssemblyView() *models.AssemblyViewData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyAssemblyView(l.state.AssemblyView)
}

func (l *Ledger) SetAssemblyView(a *models.AssemblyViewData) {
	l.mutate(func(s *Snapshot) {
		s.AssemblyView = copyAssemblyView(a)
	})
}

// UpdateAssemblyView patches the single slot; a nil slot is left empty.
func (l *Ledger) UpdateAssemblyView(patch func(*models.AssemblyViewData)) {
	l.mutate(func(s *Snapshot) {
		if s.AssemblyView == nil {
			l.ignoredUpdate("assemblyView", "")
			return
		}
		patch(s.AssemblyView)
	})
}

// Credits

func (l *Ledger) Credits() models.CreditsUsage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Credits
}

func (l *Ledger) AddCreditsUsage(stage models.CreditStage, amount int) {
	l.mutate(func(s *Snapshot) {
		s.Credits.Add(stage, amount)
	})
}

// Operation logs

func (l *Ledger) EditOperations() []models.EditOperation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.EditOperation(nil), l.state.EditOperations...)
}

func (l *Ledger) AddEditOperation(op models.EditOperation) {
	l.mutate(func(s *Snapshot) {
		s.EditOperations = append(s.EditOperations, op)
	})
}

func (l *Ledger) UpdateEditOperation(id string, patch func(*models.EditOperation)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.EditOperations {
			if s.EditOperations[i].ID == id {
				patch(&s.EditOperations[i])
				return
			}
		}
		l.ignoredUpdate("editOperation", id)
	})
}

func (l *Ledger) RegenerationOperations() []models.RegenerationOperation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.RegenerationOperation(nil), l.state.RegenerationOperations...)
}

func (l *Ledger) AddRegenerationOperation(op models.RegenerationOperation) {
	l.mutate(func(s *Snapshot) {
		s.RegenerationOperations = append(s.RegenerationOperations, op)
	})
}

func (l *Ledger) UpdateRegenerationOperation(id string, patch func(*models.RegenerationOperation)) {
	l.mutate(func(s *Snapshot) {
		for i := range s.RegenerationOperations {
			if s.RegenerationOperations[i].ID == id {
				patch(&s.RegenerationOperations[i])
				return
			}
		}
		l.ignoredUpdate("regenerationOperation", id)
	})
}

func (l *Ledger) ignoredUpdate(kind, id string) {
	l.logger.Debug("update ignored, record not found", map[string]interface{}{
		"kind": kind,
		"id":   id,
	})
}
