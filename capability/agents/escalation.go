package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/ticket"
)

// EscalationAgent prepares the structured handoff package for a human
// agent.
type EscalationAgent struct {
	llm    LLMClient
	logger *slog.Logger
}

// NewEscalationAgent creates an escalation agent.
func NewEscalationAgent(client LLMClient, logger *slog.Logger) *EscalationAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationAgent{llm: client, logger: logger}
}

// Handle builds the handoff package for one ticket.
func (a *EscalationAgent) Handle(ctx context.Context, req engine.EscalateRequest) (ticket.Escalation, error) {
	ectx := escalationContext{content: req.Ticket.Content}
	if req.Intake != nil {
		ectx.intakeSummary = req.Intake.Summary
		ectx.sentiment = req.Intake.Sentiment
	}
	if req.Classification != nil {
		ectx.classification = fmt.Sprintf("issue_type=%s urgency=%s complexity=%s rationale=%s",
			req.Classification.IssueType, req.Classification.Urgency,
			req.Classification.Complexity, req.Classification.Rationale)
	}
	if req.LatestAttempt != nil {
		ectx.resolverNotes = req.LatestAttempt.NotesForHuman
		if req.LatestAttempt.FailureDetail != "" {
			ectx.resolverNotes += " (" + req.LatestAttempt.FailureDetail + ")"
		}
	}

	resp, err := complete(ctx, a.llm, capability.StepEscalate, llm.Request{
		Capability: model.CapabilityEscalation.String(),
		Messages: []llm.Message{
			{Role: "system", Content: escalationSystemPrompt},
			{Role: "user", Content: escalationUserPrompt(ectx)},
		},
	})
	if err != nil {
		return ticket.Escalation{}, err
	}

	var esc ticket.Escalation
	if err := decodeJSON(capability.StepEscalate, resp.Content, &esc); err != nil {
		return ticket.Escalation{}, err
	}

	if esc.SummaryForHuman == "" {
		esc.SummaryForHuman = ectx.content
	}
	if esc.RecommendedDepartment == "" {
		esc.RecommendedDepartment = "support"
	}
	if req.LatestAttempt != nil && len(req.LatestAttempt.NotesForHuman) > 0 {
		esc.IncludePriorResolutionNotes = true
	}
	return esc, nil
}
