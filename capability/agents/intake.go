package agents

import (
	"context"
	"log/slog"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/ticket"
)

// IntakeAgent normalizes a raw ticket: summary, cleaned-up issue statement,
// sentiment, and suspected language.
type IntakeAgent struct {
	llm    LLMClient
	logger *slog.Logger
}

// NewIntakeAgent creates an intake agent.
func NewIntakeAgent(client LLMClient, logger *slog.Logger) *IntakeAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeAgent{llm: client, logger: logger}
}

var knownSentiments = map[string]bool{
	"neutral":    true,
	"frustrated": true,
	"angry":      true,
	"positive":   true,
}

// Handle runs intake for one ticket.
func (a *IntakeAgent) Handle(ctx context.Context, req engine.IntakeRequest) (ticket.IntakeResult, error) {
	resp, err := complete(ctx, a.llm, capability.StepIntake, llm.Request{
		Capability: model.CapabilityIntake.String(),
		Messages: []llm.Message{
			{Role: "system", Content: intakeSystemPrompt},
			{Role: "user", Content: intakeUserPrompt(req.Ticket)},
		},
	})
	if err != nil {
		return ticket.IntakeResult{}, err
	}

	var result ticket.IntakeResult
	if err := decodeJSON(capability.StepIntake, resp.Content, &result); err != nil {
		return ticket.IntakeResult{}, err
	}

	if !knownSentiments[result.Sentiment] {
		a.logger.Debug("unknown sentiment from model, defaulting",
			"ticket_id", req.Ticket.ID, "sentiment", result.Sentiment)
		result.Sentiment = "neutral"
	}
	if result.Summary == "" {
		result.Summary = req.Ticket.Content
	}
	if result.NormalizedIssue == "" {
		result.NormalizedIssue = req.Ticket.Content
	}
	return result, nil
}
