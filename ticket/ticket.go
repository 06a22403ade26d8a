// Package ticket defines the shared state record for one support ticket as it
// moves through the workflow engine. Every field of State is owned by exactly
// one workflow step; the setters enforce that ownership so a misbehaving step
// cannot overwrite another step's output.
package ticket

import (
	"fmt"
	"strings"
)

// Ticket is the immutable input record for one support request.
// It is set once when the ticket enters the engine and never mutated.
type Ticket struct {
	ID        string   `json:"ticket_id"`
	Content   string   `json:"content"`
	OwnerID   string   `json:"owner_id,omitempty"`
	OwnerName string   `json:"owner_name,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// SessionID is the durable identity under which this ticket's state is
	// persisted and resumed. Empty means the engine assigns one.
	SessionID string `json:"session_id,omitempty"`
}

// Validate checks that a ticket payload is acceptable for intake.
// Invalid tickets are rejected synchronously before the workflow begins.
func (t Ticket) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: ticket_id is required", ErrInvalidTicket)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidTicket)
	}
	return nil
}

// IntakeResult is the normalization output of the intake step.
type IntakeResult struct {
	Summary           string `json:"summary"`
	NormalizedIssue   string `json:"normalized_issue"`
	Sentiment         string `json:"sentiment"`
	SuspectedLanguage string `json:"suspected_language"`
}

// Classification is the output of the classification step.
type Classification struct {
	IssueType                 string `json:"issue_type"`
	Urgency                   string `json:"urgency"`
	Complexity                string `json:"complexity"`
	ShouldEscalateImmediately bool   `json:"should_escalate_immediately"`
	Rationale                 string `json:"rationale,omitempty"`
}

// AttemptStatus is the verdict of one resolution attempt.
type AttemptStatus string

const (
	AttemptSolved          AttemptStatus = "solved"
	AttemptNotSolved       AttemptStatus = "not_solved"
	AttemptNeedsEscalation AttemptStatus = "needs_escalation"
)

// ScoringSignals are the raw signals that produced an attempt's confidence.
// They are stored verbatim so retries are auditable.
type ScoringSignals struct {
	TopScore       float64  `json:"top_score"`
	LexicalOverlap float64  `json:"lexical_overlap"`
	SalientOverlap float64  `json:"salient_overlap"`
	SalientTokens  []string `json:"salient_tokens,omitempty"`
	SalientHits    []string `json:"salient_hits,omitempty"`
}

// ResolutionAttempt is one execution of the resolve step.
type ResolutionAttempt struct {
	Answer        string         `json:"answer"`
	Status        AttemptStatus  `json:"status"`
	Confidence    float64        `json:"confidence"`
	UsedArticles  []string       `json:"used_kb_articles,omitempty"`
	Signals       ScoringSignals `json:"signals"`
	NotesForHuman string         `json:"notes_for_human,omitempty"`

	// FailureDetail records why a capability call failed when this attempt
	// was synthesized by the engine instead of produced by the resolver.
	FailureDetail string `json:"failure_detail,omitempty"`
}

// Escalation is the human-handoff package, written at most once.
type Escalation struct {
	SummaryForHuman             string   `json:"summary_for_human"`
	RecommendedDepartment       string   `json:"recommended_department"`
	ProposedNextSteps           []string `json:"proposed_next_steps"`
	IncludePriorResolutionNotes bool     `json:"include_prior_resolution_notes"`
}
