package agent

// Phase of a run
type Phase int

const (
	Attempting Phase = iota
	Done
)

func (p Phase) String() string {
	if p == Done {
		return "done"
	}
	return "attempting"
}

// Event is the outcome of reviewing one attempt
type Event int

const (
	Accepted Event = iota
	Rejected
)

// State is ATTEMPTING(Attempt) or DONE after Attempt attempts
type State struct {
	Phase   Phase
	Attempt int
}

type transitionKey struct {
	phase     Phase
	event     Event
	exhausted bool
}

var transitions = map[transitionKey]Phase{
	{Attempting, Accepted, false}: Done,
	{Attempting, Accepted, true}:  Done,
	{Attempting, Rejected, false}: Attempting,
	{Attempting, Rejected, true}:  Done,
}

// Start is the state before the first attempt runs
func Start() State {
	return State{Phase: Attempting, Attempt: 1}
}

// Next applies e to s. A run never exceeds maxAttempts attempts and Done is terminal.
func Next(s State, e Event, maxAttempts int) State {
	if s.Phase == Done {
		return s
	}
	next, ok := transitions[transitionKey{phase: s.Phase, event: e, exhausted: s.Attempt >= maxAttempts}]
	if !ok || next == Done {
		return State{Phase: Done, Attempt: s.Attempt}
	}
	return State{Phase: Attempting, Attempt: s.Attempt + 1}
}
