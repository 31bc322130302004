package pipeline

import "reelnotes/internal/services"

// State is a pipeline run's position in the state machine.
type State string

const (
	StateRetrieving   State = "retrieving"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StatePersisting   State = "persisting"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// next returns the state that follows s on success.
func next(s State) State {
	switch s {
	case StateRetrieving:
		return StateExtracting
	case StateExtracting:
		return StateTranscribing
	case StateTranscribing:
		return StateSummarizing
	case StateSummarizing:
		return StatePersisting
	case StatePersisting:
		return StateDone
	default:
		return s
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Failure describes why a run ended in StateFailed.
type Failure struct {
	Stage  State         `json:"stage"`
	Kind   services.Kind `json:"kind"`
	Reason string        `json:"message"`
	Hint   string        `json:"hint,omitempty"`
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return string(f.Stage) + ": " + string(f.Kind) + ": " + f.Reason
}
