package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/ticket"
)

// ClassifierAgent types the ticket: issue category, urgency, complexity,
// and whether it must go straight to a human.
type ClassifierAgent struct {
	llm    LLMClient
	logger *slog.Logger
}

// NewClassifierAgent creates a classifier agent.
func NewClassifierAgent(client LLMClient, logger *slog.Logger) *ClassifierAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifierAgent{llm: client, logger: logger}
}

var knownIssueTypes = map[string]bool{
	"login":        true,
	"billing":      true,
	"reservation":  true,
	"subscription": true,
	"technical":    true,
	"refund":       true,
	"other":        true,
}

var knownLevels = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Handle classifies one ticket.
func (a *ClassifierAgent) Handle(ctx context.Context, req engine.ClassifyRequest) (ticket.Classification, error) {
	resp, err := complete(ctx, a.llm, capability.StepClassify, llm.Request{
		Capability: model.CapabilityClassification.String(),
		Messages: []llm.Message{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: classifierUserPrompt(req.Ticket, req.Intake)},
		},
	})
	if err != nil {
		return ticket.Classification{}, err
	}

	var c ticket.Classification
	if err := decodeJSON(capability.StepClassify, resp.Content, &c); err != nil {
		return ticket.Classification{}, err
	}

	c.IssueType = strings.ToLower(strings.TrimSpace(c.IssueType))
	if !knownIssueTypes[c.IssueType] {
		a.logger.Debug("unknown issue type from model, defaulting",
			"ticket_id", req.Ticket.ID, "issue_type", c.IssueType)
		c.IssueType = "other"
	}
	c.Urgency = strings.ToLower(strings.TrimSpace(c.Urgency))
	if !knownLevels[c.Urgency] {
		c.Urgency = "medium"
	}
	c.Complexity = strings.ToLower(strings.TrimSpace(c.Complexity))
	if !knownLevels[c.Complexity] {
		c.Complexity = "medium"
	}
	return c, nil
}
