package api

import "fmt"

var executionTransitions = map[ExecutionState][]ExecutionState{
	ExecutionIdle:    {ExecutionRunning, ExecutionUnsupported},
	ExecutionRunning: {ExecutionSucceeded, ExecutionFaulted, ExecutionTimedOut},
}

// ValidateExecutionTransition checks whether a sandbox run may move from one
// state to another. An empty "from" is treated as idle. Terminal states
// (succeeded, faulted, timed_out, unsupported) allow no outgoing transitions.
func ValidateExecutionTransition(from, to ExecutionState) *Error {
	if from == "" {
		from = ExecutionIdle
	}

	for _, s := range executionTransitions[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("state",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
