package plan

import (
	"errors"
	"fmt"
)

// CommunicationError reports a transport failure that survived its whole
// retry budget. It is distinguishable from validation exhaustion so the
// runner can surface "the model endpoint is down" differently from "the
// model keeps answering garbage".
type CommunicationError struct {
	Phase    string // "refine" or "evaluate"
	TaskName string
	Retries  int
	Err      error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s %q: communication failed after %d retries: %v", e.Phase, e.TaskName, e.Retries, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that every attempt of a phase produced
// invalid output. LastIssues carries the final attempt's issue text.
type RetryExhaustedError struct {
	Phase      string
	TaskName   string
	Attempts   int
	LastIssues string
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s %q: gave up after %d attempts: %s", e.Phase, e.TaskName, e.Attempts, e.LastIssues)
}

// LastFailureWasCommunication reports whether err is rooted in a
// transport failure rather than validation exhaustion.
func LastFailureWasCommunication(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}
