package orchestrator

import "fmt"

// RecursionLimitError aborts a run that exceeded the delegate/replan cycle
// bound without producing a response.
type RecursionLimitError struct {
	RunID  string
	Cycles int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("run %s exceeded the cycle limit (%d) without a final response", e.RunID, e.Cycles)
}

// Suspension is returned when a run pauses on ask_user. It is not a failure:
// the run state is checkpointed and the run resumes once the user replies.
type Suspension struct {
	RunID  string
	Prompt string
}

func (s *Suspension) Error() string {
	return fmt.Sprintf("run %s suspended awaiting user input: %s", s.RunID, s.Prompt)
}
