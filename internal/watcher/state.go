package watcher

// Stage is the position of the watcher in its cycle
type Stage string

const (
	StageIdle         Stage = "idle"
	StageResolving    Stage = "resolving"
	StageComparing    Stage = "comparing"
	StagePersisting   Stage = "persisting"
	StageNotifying    Stage = "notifying"
	StageShuttingDown Stage = "shutting_down"
)

// Outcome is the result of one cycle
type Outcome string

const (
	// OutcomeFailed means the cycle ended before anything was recorded
	OutcomeFailed    Outcome = "failed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFirst     Outcome = "first"
	OutcomeChanged   Outcome = "changed"
)

// Recorded reports whether the cycle appended an observation
func (o Outcome) Recorded() bool {
	return o == OutcomeFirst || o == OutcomeChanged
}
