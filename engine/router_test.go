package engine

import (
	"testing"

	"github.com/c360studio/udahub/ticket"
)

func testPolicy() Policy {
	return Policy{ResolvedThreshold: 0.6, MaxResolveAttempts: 2}
}

func stateWith(t *testing.T, mutate func(*ticket.State)) *ticket.State {
	t.Helper()
	st := ticket.NewState(ticket.Ticket{ID: "T-1", Content: "printer is on fire"})
	if mutate != nil {
		mutate(st)
	}
	return st
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ticket.State)
		wantNext    Next
		wantAnomaly bool
	}{
		{
			name:     "no attempts routes to resolver",
			mutate:   nil,
			wantNext: NextResolver,
		},
		{
			name: "immediate escalation flag with empty history",
			mutate: func(st *ticket.State) {
				st.Classification = &ticket.Classification{ShouldEscalateImmediately: true}
			},
			wantNext: NextEscalation,
		},
		{
			name: "immediate escalation flag ignored after an attempt",
			mutate: func(st *ticket.State) {
				st.Classification = &ticket.Classification{ShouldEscalateImmediately: true}
				st.AppendAttempt(ticket.ResolutionAttempt{
					Status:     ticket.AttemptSolved,
					Confidence: 0.9,
				})
			},
			wantNext: NextEnd,
		},
		{
			name: "confident solve ends the ticket",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "test")
				st.AppendAttempt(ticket.ResolutionAttempt{
					Status:     ticket.AttemptSolved,
					Confidence: 0.75,
				})
			},
			wantNext: NextEnd,
		},
		{
			name: "solve exactly at threshold ends the ticket",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "test")
				st.AppendAttempt(ticket.ResolutionAttempt{
					Status:     ticket.AttemptSolved,
					Confidence: 0.6,
				})
			},
			wantNext: NextEnd,
		},
		{
			name: "resolver verdict needs_escalation is final",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "test")
				st.AppendAttempt(ticket.ResolutionAttempt{Status: ticket.AttemptNeedsEscalation})
			},
			wantNext: NextEscalation,
		},
		{
			name: "not solved with budget remaining retries",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "test")
				st.AppendAttempt(ticket.ResolutionAttempt{Status: ticket.AttemptNotSolved})
			},
			wantNext: NextResolver,
		},
		{
			name: "retry budget exhausted forces escalation",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "first")
				st.AppendAttempt(ticket.ResolutionAttempt{Status: ticket.AttemptNotSolved})
				st.AppendDecision("resolver", "second")
				st.AppendAttempt(ticket.ResolutionAttempt{Status: ticket.AttemptNotSolved})
			},
			wantNext: NextEscalation,
		},
		{
			name: "low confidence solve hits defensive fallback",
			mutate: func(st *ticket.State) {
				st.AppendDecision("resolver", "test")
				st.AppendAttempt(ticket.ResolutionAttempt{
					Status:     ticket.AttemptSolved,
					Confidence: 0.3,
				})
			},
			wantNext:    NextEscalation,
			wantAnomaly: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stateWith(t, tt.mutate)
			d := Decide(st, testPolicy())
			if d.Next != tt.wantNext {
				t.Errorf("Decide() next = %q, want %q (reason %q)", d.Next, tt.wantNext, d.Reason)
			}
			if d.Anomaly != tt.wantAnomaly {
				t.Errorf("Decide() anomaly = %v, want %v", d.Anomaly, tt.wantAnomaly)
			}
			if d.Reason == "" {
				t.Error("Decide() returned empty reason")
			}
		})
	}
}

// Re-evaluating an unchanged state must not change the verdict.
func TestDecideIsPure(t *testing.T) {
	st := stateWith(t, func(st *ticket.State) {
		st.AppendDecision("resolver", "test")
		st.AppendAttempt(ticket.ResolutionAttempt{Status: ticket.AttemptNotSolved})
	})

	first := Decide(st, testPolicy())
	for i := 0; i < 10; i++ {
		if got := Decide(st, testPolicy()); got != first {
			t.Fatalf("Decide() = %+v on evaluation %d, want %+v", got, i+1, first)
		}
	}
}
