package facade

// Decision is what a revision change should trigger.
type Decision string

const (
	DecisionLoad           Decision = "load"
	DecisionSkipUnchanged  Decision = "skip-unchanged"
	DecisionSkipGenerating Decision = "skip-generating"
	DecisionSkipEmpty      Decision = "skip-empty"
	DecisionSuperseded     Decision = "superseded"
)

// RevisionTracker remembers the last revision a load was started for.
type RevisionTracker struct {
	prev    string
	hasPrev bool
}

// Transition decides what selecting revisionID should do. The remembered revision only
// moves on a load, so a change skipped during a generation is picked up by the next call.
func (t *RevisionTracker) Transition(revisionID string, generating bool) Decision {
	if revisionID == "" {
		return DecisionSkipEmpty
	}
	if t.hasPrev && t.prev == revisionID {
		return DecisionSkipUnchanged
	}
	if generating {
		return DecisionSkipGenerating
	}
	t.prev = revisionID
	t.hasPrev = true
	return DecisionLoad
}

// Previous returns the last revision a load was started for.
func (t *RevisionTracker) Previous() (string, bool) {
	return t.prev, t.hasPrev
}

// Forget clears the remembered revision so the next selection loads again.
func (t *RevisionTracker) Forget() {
	t.prev = ""
	t.hasPrev = false
}
