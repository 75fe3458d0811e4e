package eventsourcing

// State is the current projection of one aggregate.
//
// StateIndex counts the events folded into the state. It starts at 0 for a state that was never
// projected and must be incremented by exactly one by every projection that mutates the state.
//
// Implementations should be value types: projectors return a new value instead of mutating a shared one.
type State interface {
	StateID() string
	StateIndex() uint64
}
