// Package capability defines the uniform contract for invoking an external
// workflow step — a reasoning call or a tool call — with a request payload
// and receiving a structured response or a typed failure.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// Step names for the workflow's reasoning capabilities.
const (
	StepIntake   = "intake"
	StepClassify = "classify"
	StepResolve  = "resolve"
	StepEscalate = "escalate"
)

// FailureKind classifies a capability call failure.
type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureUnavailable     FailureKind = "unavailable"
	FailureInvalidResponse FailureKind = "invalid_response"
)

// Failure is the typed error returned when a capability call fails. The
// engine recovers from failures by recording a needs_escalation attempt; a
// Failure never crashes a ticket.
type Failure struct {
	Capability string      `json:"capability"`
	Kind       FailureKind `json:"kind"`
	Detail     string      `json:"detail"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("capability %s failed (%s): %s", f.Capability, f.Kind, f.Detail)
}

// Timeout builds a timeout failure.
func Timeout(name, detail string) *Failure {
	return &Failure{Capability: name, Kind: FailureTimeout, Detail: detail}
}

// Unavailable builds an unavailable failure.
func Unavailable(name, detail string) *Failure {
	return &Failure{Capability: name, Kind: FailureUnavailable, Detail: detail}
}

// InvalidResponse builds a malformed-response failure.
func InvalidResponse(name, detail string) *Failure {
	return &Failure{Capability: name, Kind: FailureInvalidResponse, Detail: detail}
}

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Client invokes a named capability. The request is serialized to the
// capability, and on success the response is decoded into resp (which must
// be a pointer, or nil to discard the result). Failed calls return a
// *Failure; context cancellation is propagated as-is.
type Client interface {
	Invoke(ctx context.Context, name string, req, resp any) error
}
