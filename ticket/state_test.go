package ticket

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ticket  Ticket
		wantErr bool
	}{
		{
			name:   "valid ticket",
			ticket: Ticket{ID: "T-1", Content: "cannot log in"},
		},
		{
			name:    "missing id",
			ticket:  Ticket{Content: "cannot log in"},
			wantErr: true,
		},
		{
			name:    "missing content",
			ticket:  Ticket{ID: "T-1"},
			wantErr: true,
		},
		{
			name:    "whitespace content",
			ticket:  Ticket{ID: "T-1", Content: "   "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidTicket) {
				t.Errorf("Validate() = %v, want ErrInvalidTicket", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestNewStateAssignsSession(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "help"})
	if st.SessionID == "" {
		t.Fatal("expected session ID to be assigned")
	}
	if st.Ticket.SessionID != st.SessionID {
		t.Errorf("ticket session %q != state session %q", st.Ticket.SessionID, st.SessionID)
	}
	if st.Status != StatusIntake {
		t.Errorf("initial status = %s, want INTAKE", st.Status)
	}

	st2 := NewState(Ticket{ID: "T-2", Content: "help", SessionID: "sess-42"})
	if st2.SessionID != "sess-42" {
		t.Errorf("session = %q, want provided sess-42", st2.SessionID)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"intake to classify", StatusIntake, StatusClassify, false},
		{"classify to supervise", StatusClassify, StatusSupervise, false},
		{"supervise to resolve", StatusSupervise, StatusResolve, false},
		{"supervise to escalate", StatusSupervise, StatusEscalate, false},
		{"supervise to done", StatusSupervise, StatusDone, false},
		{"resolve to supervise", StatusResolve, StatusSupervise, false},
		{"escalate to done", StatusEscalate, StatusDone, false},
		{"intake cannot skip to supervise", StatusIntake, StatusSupervise, true},
		{"intake cannot skip to done", StatusIntake, StatusDone, true},
		{"classify cannot go back", StatusClassify, StatusIntake, true},
		{"resolve cannot end directly", StatusResolve, StatusDone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState(Ticket{ID: "T-1", Content: "x"})
			st.Status = tt.from
			err := st.Transition(tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Transition(%s -> %s) = %v, want ErrInvalidTransition", tt.from, tt.to, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Transition(%s -> %s) = %v, want nil", tt.from, tt.to, err)
			}
			if st.Status != tt.to {
				t.Errorf("status = %s, want %s", st.Status, tt.to)
			}
		})
	}
}

func TestDoneIsAbsorbing(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x"})
	st.Status = StatusDone

	for _, to := range []Status{StatusIntake, StatusClassify, StatusSupervise, StatusResolve, StatusEscalate} {
		if err := st.Transition(to); !errors.Is(err, ErrStateTerminal) {
			t.Errorf("Transition(DONE -> %s) = %v, want ErrStateTerminal", to, err)
		}
	}
}

func TestWriteOnceFields(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x"})

	if err := st.SetIntake(&IntakeResult{Summary: "a"}); err != nil {
		t.Fatalf("first SetIntake: %v", err)
	}
	if err := st.SetIntake(&IntakeResult{Summary: "b"}); !errors.Is(err, ErrFieldAlreadySet) {
		t.Errorf("second SetIntake = %v, want ErrFieldAlreadySet", err)
	}
	if st.Intake.Summary != "a" {
		t.Errorf("intake overwritten: %q", st.Intake.Summary)
	}

	if err := st.SetClassification(&Classification{IssueType: "login"}); err != nil {
		t.Fatalf("first SetClassification: %v", err)
	}
	if err := st.SetClassification(&Classification{}); !errors.Is(err, ErrFieldAlreadySet) {
		t.Errorf("second SetClassification = %v, want ErrFieldAlreadySet", err)
	}

	if err := st.SetEscalation(&Escalation{RecommendedDepartment: "billing"}); err != nil {
		t.Fatalf("first SetEscalation: %v", err)
	}
	if err := st.SetEscalation(&Escalation{}); !errors.Is(err, ErrFieldAlreadySet) {
		t.Errorf("second SetEscalation = %v, want ErrFieldAlreadySet", err)
	}
}

func TestAppendOnlyHistory(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x"})

	st.AppendAttempt(ResolutionAttempt{Status: AttemptNotSolved, Confidence: 0.3})
	st.AppendAttempt(ResolutionAttempt{Status: AttemptSolved, Confidence: 0.8})

	if len(st.ResolutionHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(st.ResolutionHistory))
	}
	if st.ResolutionHistory[0].Status != AttemptNotSolved {
		t.Error("first attempt was overwritten")
	}
	if got := st.LatestAttempt(); got == nil || got.Status != AttemptSolved {
		t.Errorf("LatestAttempt() = %+v, want solved attempt", got)
	}
}

func TestResolveDecisionCount(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x"})
	if st.ResolveDecisionCount() != 0 {
		t.Error("fresh state should have zero resolve decisions")
	}

	st.AppendDecision("resolver", "no attempt yet")
	st.AppendDecision("resolver", "retrying")
	st.AppendDecision("escalation", "retry budget exhausted")

	if got := st.ResolveDecisionCount(); got != 2 {
		t.Errorf("ResolveDecisionCount() = %d, want 2", got)
	}
	if len(st.SupervisorTrace) != 3 {
		t.Errorf("supervisor trace length = %d, want 3", len(st.SupervisorTrace))
	}
}

func TestCloneIsolation(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x", Tags: []string{"login"}})
	st.AppendAttempt(ResolutionAttempt{Status: AttemptNotSolved})

	clone, err := st.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	st.AppendAttempt(ResolutionAttempt{Status: AttemptSolved})
	if len(clone.ResolutionHistory) != 1 {
		t.Errorf("clone history grew with original: %d", len(clone.ResolutionHistory))
	}
	if clone.SessionID != st.SessionID {
		t.Errorf("clone session = %q, want %q", clone.SessionID, st.SessionID)
	}
}

func TestFinalAnswer(t *testing.T) {
	st := NewState(Ticket{ID: "T-1", Content: "x"})
	st.AppendAttempt(ResolutionAttempt{Status: AttemptSolved, Answer: "reset your password"})
	if got := st.FinalAnswer(); got != "reset your password" {
		t.Errorf("FinalAnswer() = %q", got)
	}

	// Once escalated, the escalation package is the observable output.
	if err := st.SetEscalation(&Escalation{SummaryForHuman: "needs human"}); err != nil {
		t.Fatal(err)
	}
	if got := st.FinalAnswer(); got != "" {
		t.Errorf("FinalAnswer() after escalation = %q, want empty", got)
	}
}
