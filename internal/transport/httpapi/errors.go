package httpapi

import "fmt"

// TransportError means the request did not complete: connection failure, an
// unexpected status without an error body, or a body that failed to decode.
type TransportError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError means the server answered and refused the action. Message is the
// server's text, to be shown verbatim.
type RejectedError struct {
	Op      string
	Status  int
	Message string
	// Known is set when Message is one of the documented server rejections.
	Known bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Message)
}
