package ledger

import "techpack-studio/internal/models"

// Progress checkpoints of a full run. Only ProgressComplete is ever 100.
const (
	ProgressStart            = 0
	ProgressCategoryStarted  = 5
	ProgressCategoryDone     = 10
	ProgressBaseViewsStarted = 15
	ProgressBaseViewsDone    = 30
	ProgressFanOutCeiling    = 95
	ProgressComplete         = 100
)

// FanOutProgress apportions the 30..95 band evenly across the parallel stages.
func FanOutProgress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return ProgressBaseViewsDone
	}
	if completed > total {
		completed = total
	}
	p := ProgressBaseViewsDone + completed*(ProgressComplete-ProgressBaseViewsDone)/total
	if p > ProgressFanOutCeiling {
		p = ProgressFanOutCeiling
	}
	return p
}

// ComputeProgress derives overall progress from the status and what the collections already hold.
// The result never drops below the recorded progress and reaches 100 only on the complete step.
func ComputeProgress(status models.GenerationStatus, files models.TechFiles) int {
	switch status.CurrentStep {
	case models.StepComplete:
		return ProgressComplete
	case models.StepIdle, models.StepError:
		return status.Progress
	}

	derived := ProgressStart
	if files.Category != nil {
		derived = ProgressCategoryDone
	}
	if len(FilterBaseViews(files.BaseViews)) > 0 {
		derived = FanOutProgress(resolvedCollections(files), len(models.ParallelSteps))
	}

	if status.Progress > derived {
		derived = status.Progress
	}
	if derived >= ProgressComplete {
		derived = ProgressFanOutCeiling
	}
	return derived
}

func resolvedCollections(files models.TechFiles) int {
	n := 0
	for _, step := range models.ParallelSteps {
		loaded, total := collectionCounts(step, files)
		if total > 0 && loaded == total {
			n++
		}
	}
	return n
}

// StepProgress gives each of the seven stages its own 0..100 value. A stage reads
// nonzero only while it is active or once its collection holds loaded records.
func StepProgress(status models.GenerationStatus, files models.TechFiles) map[models.Step]int {
	out := make(map[models.Step]int, len(models.GenerationSteps))
	for _, step := range models.GenerationSteps {
		out[step] = stageProgress(step, status, files)
	}
	return out
}

func stageProgress(step models.Step, status models.GenerationStatus, files models.TechFiles) int {
	active := isActive(step, status)

	switch step {
	case models.StepCategory:
		if files.Category != nil {
			return 100
		}
		if active {
			return within(status.Progress, ProgressStart, ProgressCategoryDone)
		}
		return 0
	case models.StepBaseViews:
		if len(FilterBaseViews(files.BaseViews)) > 0 {
			return 100
		}
		if active {
			return within(status.Progress, ProgressCategoryDone, ProgressBaseViewsDone)
		}
		return 0
	}

	loaded, total := collectionCounts(step, files)
	if total == 0 || loaded == 0 {
		return 0
	}
	return loaded * 100 / total
}

func isActive(step models.Step, status models.GenerationStatus) bool {
	if !status.IsGenerating {
		return false
	}
	if status.CurrentStep == step {
		return true
	}
	return step.IsParallel() && status.CurrentStep.IsParallel()
}

// within maps p from the [lo, hi] band onto 0..99.
func within(p, lo, hi int) int {
	if p <= lo || hi <= lo {
		return 0
	}
	v := (p - lo) * 100 / (hi - lo)
	if v > 99 {
		v = 99
	}
	return v
}

func collectionCounts(step models.Step, files models.TechFiles) (loaded, total int) {
	switch step {
	case models.StepComponents:
		for _, c := range files.Components {
			total++
			if c.LoadingState == models.LoadingStateLoaded {
				loaded++
			}
		}
	case models.StepCloseUps:
		for _, c := range files.CloseUps {
			total++
			if c.LoadingState == models.LoadingStateLoaded {
				loaded++
			}
		}
	case models.StepSketches:
		for _, s := range files.Sketches {
			total++
			if s.LoadingState == models.LoadingStateLoaded {
				loaded++
			}
		}
	case models.StepFlatSketches:
		for _, f := range files.FlatSketches {
			total++
			if f.LoadingState == models.LoadingStateLoaded {
				loaded++
			}
		}
	case models.StepAssemblyView:
		if files.AssemblyView != nil {
			total = 1
			if files.AssemblyView.LoadingState == models.LoadingStateLoaded {
				loaded = 1
			}
		}
	}
	return loaded, total
}
