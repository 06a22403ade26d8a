package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the machine state of a ticket, the single source of truth for
// where the ticket is in the pipeline.
type Status string

const (
	StatusIntake    Status = "INTAKE"
	StatusClassify  Status = "CLASSIFY"
	StatusSupervise Status = "SUPERVISE"
	StatusResolve   Status = "RESOLVE"
	StatusEscalate  Status = "ESCALATE"
	StatusDone      Status = "DONE"
)

// Sentinel errors for state mutation violations.
var (
	ErrInvalidTicket     = errors.New("invalid ticket")
	ErrFieldAlreadySet   = errors.New("field already set")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStateTerminal     = errors.New("state is terminal")
)

// validTransitions encodes the workflow transition table. DONE is absorbing.
var validTransitions = map[Status][]Status{
	StatusIntake:    {StatusClassify},
	StatusClassify:  {StatusSupervise},
	StatusSupervise: {StatusResolve, StatusEscalate, StatusDone},
	StatusResolve:   {StatusSupervise},
	StatusEscalate:  {StatusDone},
	StatusDone:      {},
}

// RoutingDecision is one supervisor evaluation, appended per routing pass.
type RoutingDecision struct {
	Next   string    `json:"next"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// State is the mutable, append-oriented record shared across workflow steps
// for one ticket. It is mutated exclusively by the engine applying one step's
// output per transition, and becomes immutable once Status is DONE.
type State struct {
	SessionID         string              `json:"session_id"`
	Ticket            Ticket              `json:"ticket"`
	Intake            *IntakeResult       `json:"intake,omitempty"`
	Classification    *Classification     `json:"classification,omitempty"`
	ResolutionHistory []ResolutionAttempt `json:"resolution_history,omitempty"`
	Escalation        *Escalation         `json:"escalation,omitempty"`
	SupervisorTrace   []RoutingDecision   `json:"supervisor_trace,omitempty"`
	Status            Status              `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// NewState creates the state record for a ticket entering the engine.
// A missing session ID is assigned here so the session key is stable for the
// whole lifetime of the ticket.
func NewState(t Ticket) *State {
	sessionID := t.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	t.SessionID = sessionID

	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		Ticket:    t,
		Status:    StatusIntake,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the state to the next status, validating the move against
// the transition table.
func (s *State) Transition(to Status) error {
	if s.Status == StatusDone {
		return fmt.Errorf("%w: cannot leave DONE", ErrStateTerminal)
	}
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
}

// SetIntake records the intake step output. Write-once.
func (s *State) SetIntake(r *IntakeResult) error {
	if s.Intake != nil {
		return fmt.Errorf("%w: intake", ErrFieldAlreadySet)
	}
	s.Intake = r
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SetClassification records the classification step output. Write-once.
func (s *State) SetClassification(c *Classification) error {
	if s.Classification != nil {
		return fmt.Errorf("%w: classification", ErrFieldAlreadySet)
	}
	s.Classification = c
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendAttempt appends one resolution attempt. Attempts are never
// overwritten, so retries stay auditable.
func (s *State) AppendAttempt(a ResolutionAttempt) {
	s.ResolutionHistory = append(s.ResolutionHistory, a)
	s.UpdatedAt = time.Now().UTC()
}

// SetEscalation records the human-handoff package. Write-once.
func (s *State) SetEscalation(e *Escalation) error {
	if s.Escalation != nil {
		return fmt.Errorf("%w: escalation", ErrFieldAlreadySet)
	}
	s.Escalation = e
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendDecision appends one supervisor routing decision.
func (s *State) AppendDecision(next, reason string) {
	s.SupervisorTrace = append(s.SupervisorTrace, RoutingDecision{
		Next:   next,
		Reason: reason,
		At:     time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
}

// LatestAttempt returns the most recent resolution attempt, or nil if the
// resolver has not run yet.
func (s *State) LatestAttempt() *ResolutionAttempt {
	if len(s.ResolutionHistory) == 0 {
		return nil
	}
	return &s.ResolutionHistory[len(s.ResolutionHistory)-1]
}

// ResolveDecisionCount returns how many times the supervisor has routed this
// ticket to the resolver. The retry bound is enforced against this count.
func (s *State) ResolveDecisionCount() int {
	n := 0
	for _, d := range s.SupervisorTrace {
		if d.Next == "resolver" {
			n++
		}
	}
	return n
}

// FinalAnswer returns the terminal observable output: the last attempt's
// answer when the ticket ended via "end", or empty when it escalated.
func (s *State) FinalAnswer() string {
	if s.Escalation != nil {
		return ""
	}
	if a := s.LatestAttempt(); a != nil {
		return a.Answer
	}
	return ""
}

// Clone returns a deep copy of the state via a JSON round trip. Used to keep
// persisted snapshots isolated from in-flight mutation.
func (s *State) Clone() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	return &out, nil
}
