package engine

import (
	"fmt"

	"github.com/c360studio/udahub/ticket"
)

// Next is a routing target returned by the supervisor.
type Next string

const (
	NextResolver   Next = "resolver"
	NextEscalation Next = "escalation"
	NextEnd        Next = "end"
)

// Decision is one supervisor routing verdict.
type Decision struct {
	Next   Next
	Reason string

	// Anomaly marks the defensive fallback rule, which should be
	// unreachable. The engine logs it and escalates.
	Anomaly bool
}

// Policy holds the routing policy knobs.
type Policy struct {
	// ResolvedThreshold is the minimum confidence for a solved attempt to
	// end the ticket.
	ResolvedThreshold float64

	// MaxResolveAttempts bounds SUPERVISE -> RESOLVE transitions per ticket.
	MaxResolveAttempts int
}

// Decide maps the current ticket state to the next workflow step. It is a
// pure function of its inputs: re-evaluating an unchanged state yields the
// same decision. Rules are checked in order and the first match wins, which
// fixes the tie-break policy:
//
//  1. classification demands immediate escalation and nothing was attempted
//  2. a confident solved attempt ends the ticket
//  3. an explicit needs_escalation verdict is never second-guessed
//  4. the retry budget is exhausted
//  5. attempts remain, so try (or retry) the resolver
//  6. defensive fallback, logged as an anomaly by the caller
func Decide(st *ticket.State, p Policy) Decision {
	attempts := st.ResolveDecisionCount()
	latest := st.LatestAttempt()

	// Rule 1: safety-critical immediate escalation overrides everything.
	if st.Classification != nil && st.Classification.ShouldEscalateImmediately && len(st.ResolutionHistory) == 0 {
		return Decision{
			Next:   NextEscalation,
			Reason: "immediate escalation required by classification",
		}
	}

	// Rule 2: a confident solve short-circuits.
	if latest != nil && latest.Status == ticket.AttemptSolved && latest.Confidence >= p.ResolvedThreshold {
		return Decision{
			Next:   NextEnd,
			Reason: fmt.Sprintf("resolved with confidence %.2f", latest.Confidence),
		}
	}

	// Rule 3: the resolver's own escalation verdict is final.
	if latest != nil && latest.Status == ticket.AttemptNeedsEscalation {
		return Decision{
			Next:   NextEscalation,
			Reason: "resolver requested escalation",
		}
	}

	// Rule 4: retries are capped before any other consideration.
	if attempts >= p.MaxResolveAttempts {
		return Decision{
			Next:   NextEscalation,
			Reason: "retry budget exhausted",
		}
	}

	// Rule 5: nothing attempted yet, or the last attempt fell short and
	// budget remains.
	if latest == nil || latest.Status == ticket.AttemptNotSolved {
		reason := "no resolution attempt yet"
		if latest != nil {
			reason = fmt.Sprintf("attempt %d not solved, retrying", attempts)
		}
		return Decision{Next: NextResolver, Reason: reason}
	}

	// Rule 6: should be unreachable given rules 1-5.
	return Decision{
		Next:    NextEscalation,
		Reason:  "unexpected state, escalating defensively",
		Anomaly: true,
	}
}
