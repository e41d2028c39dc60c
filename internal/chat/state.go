package chat

// State names a position in the request pipeline. A request only ever
// moves forward; Aborted is terminal and reachable from any state.
type State string

const (
	StateReceived        State = "received"
	StateAuthenticated   State = "authenticated"
	StateAdmitted        State = "admitted"
	StateContextGathered State = "context-gathered"
	StateAnswered        State = "answered"
	StateRecorded        State = "recorded"
	StateCompleted       State = "completed"
)

// transitions is the full forward edge set of the pipeline. Recording is
// best-effort, which is why Answered may skip straight to Completed.
var transitions = map[State][]State{
	StateReceived:        {StateAuthenticated},
	StateAuthenticated:   {StateAdmitted},
	StateAdmitted:        {StateContextGathered},
	StateContextGathered: {StateAnswered},
	StateAnswered:        {StateRecorded, StateCompleted},
	StateRecorded:        {StateCompleted},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
