// Package agents implements the four workflow capabilities: intake,
// classification, resolution, and escalation. Each agent turns its request
// into LLM calls and tool lookups and returns the structured result the
// engine merges into ticket state.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/ticket"
)

// LLMClient is the completion surface agents need. *llm.Client satisfies it.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Register wires the agents into a capability mux under the step names the
// engine invokes.
func Register(mux *capability.Mux, intake *IntakeAgent, classifier *ClassifierAgent, resolver *ResolverAgent, escalation *EscalationAgent) {
	mux.Handle(capability.StepIntake, capability.Typed(capability.StepIntake,
		func(ctx context.Context, req engine.IntakeRequest) (ticket.IntakeResult, error) {
			return intake.Handle(ctx, req)
		}))
	mux.Handle(capability.StepClassify, capability.Typed(capability.StepClassify,
		func(ctx context.Context, req engine.ClassifyRequest) (ticket.Classification, error) {
			return classifier.Handle(ctx, req)
		}))
	mux.Handle(capability.StepResolve, capability.Typed(capability.StepResolve,
		func(ctx context.Context, req engine.ResolveRequest) (ticket.ResolutionAttempt, error) {
			return resolver.Handle(ctx, req)
		}))
	mux.Handle(capability.StepEscalate, capability.Typed(capability.StepEscalate,
		func(ctx context.Context, req engine.EscalateRequest) (ticket.Escalation, error) {
			return escalation.Handle(ctx, req)
		}))
}

// complete runs one LLM call and maps transport errors to capability
// failures. Caller cancellation passes through untouched.
func complete(ctx context.Context, client LLMClient, step string, req llm.Request) (*llm.Response, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, capability.Unavailable(step, err.Error())
	}
	return resp, nil
}

// decodeJSON extracts and decodes the JSON object an agent asked the model
// to produce.
func decodeJSON(step, content string, out any) error {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return capability.InvalidResponse(step, "no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return capability.InvalidResponse(step, fmt.Sprintf("decode model output: %v", err))
	}
	return nil
}
