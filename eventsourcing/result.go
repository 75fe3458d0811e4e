package eventsourcing

// Stage is a step of the command execution pipeline.
type Stage int

const (
	StageReceived Stage = iota
	StageHandled
	StagePublished
	StageResolved
	StageProjected
	StagePersisted
	StageCompleted
)

// String provides a string representation of Stage for logging and tracing.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageHandled:
		return "handled"
	case StagePublished:
		return "published"
	case StageResolved:
		return "resolved"
	case StageProjected:
		return "projected"
	case StagePersisted:
		return "persisted"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Service.Execute and Service.Project.
//
// On failure Stage is the last stage that was reached, so a failed Execute with
// Stage >= StagePublished means the event is durable even though the error is not nil.
type Result[E Event, S State] struct {
	Event E

	// States holds the states the event mutated, in the order the resolver returned their identities.
	States []S

	Stage Stage

	// RetryAttempts is the total number of get-project-save attempts over all affected states.
	RetryAttempts int
}

// IsPublished returns true if the event of this result reached the event store.
func (r Result[E, S]) IsPublished() bool {
	return r.Stage >= StagePublished
}
