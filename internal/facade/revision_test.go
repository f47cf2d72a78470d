package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevisionTracker_Transition(t *testing.T) {
	type step struct {
		revision   string
		generating bool
		want       Decision
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"first selection loads", []step{{"r-a", false, DecisionLoad}}},
		{"same revision is skipped", []step{{"r-a", false, DecisionLoad}, {"r-a", false, DecisionSkipUnchanged}}},
		{"switching loads again", []step{{"r-a", false, DecisionLoad}, {"r-b", false, DecisionLoad}, {"r-a", false, DecisionLoad}}},
		{"generating defers the switch", []step{{"r-a", false, DecisionLoad}, {"r-b", true, DecisionSkipGenerating}, {"r-b", false, DecisionLoad}}},
		{"unchanged wins over generating", []step{{"r-a", false, DecisionLoad}, {"r-a", true, DecisionSkipUnchanged}}},
		{"empty revision", []step{{"", false, DecisionSkipEmpty}, {"r-a", false, DecisionLoad}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tracker RevisionTracker
			for i, s := range tt.steps {
				assert.Equal(t, s.want, tracker.Transition(s.revision, s.generating), "step %d", i)
			}
		})
	}
}

func TestRevisionTracker_Forget(t *testing.T) {
	var tracker RevisionTracker
	tracker.Transition("r-a", false)

	prev, ok := tracker.Previous()
	assert.True(t, ok)
	assert.Equal(t, "r-a", prev)

	tracker.Forget()
	assert.Equal(t, DecisionLoad, tracker.Transition("r-a", false))
}
