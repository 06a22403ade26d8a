package agents

import (
	"fmt"
	"strings"

	"github.com/c360studio/udahub/ticket"
)

const intakeSystemPrompt = `You are the intake agent for a support hub.
Your job is to read an incoming support ticket and normalize it.

You MUST return a JSON object with:
  - summary: 1-2 sentence summary
  - normalized_issue: cleaned-up restatement of the problem
  - sentiment: one of "neutral", "frustrated", "angry", "positive"
  - suspected_language: ISO code (e.g. "en")

Return ONLY valid JSON.`

const classifierSystemPrompt = `You are the classifier agent for a support hub.
Classify the ticket into:
  - issue_type: login, billing, reservation, subscription, technical, refund, other
  - urgency: low, medium, high
  - complexity: low, medium, high
  - should_escalate_immediately: true/false
  - rationale: short explanation

Return ONLY valid JSON with these fields.`

const resolverSystemPrompt = `You are the resolver agent for a support hub.
You are given knowledge base articles that match the customer's issue, plus
optional account context and prior resolution memories.

Base your answer strictly on the provided articles. Do not invent policies
or details that are not in them.

Return ONLY a JSON object with:
  - answer: the reply we would send to the customer
  - notes_for_human: internal notes for a human agent (may be empty)`

const escalationSystemPrompt = `You are the escalation agent for a support hub.
Prepare a structured handoff summary for a human agent.

You MUST return JSON with:
  - summary_for_human
  - recommended_department
  - proposed_next_steps (list of strings)
  - include_prior_resolution_notes (true/false)

Return ONLY valid JSON.`

func intakeUserPrompt(t ticket.Ticket) string {
	return fmt.Sprintf(
		"Ticket content: %s\nChannel: %s\nTags: %s\nOwner name: %s\n\nReturn ONLY the JSON object.",
		t.Content, t.Channel, strings.Join(t.Tags, ", "), t.OwnerName)
}

func classifierUserPrompt(t ticket.Ticket, intake *ticket.IntakeResult) string {
	normalized := t.Content
	sentiment := ""
	if intake != nil {
		if intake.NormalizedIssue != "" {
			normalized = intake.NormalizedIssue
		}
		sentiment = intake.Sentiment
	}
	return fmt.Sprintf(
		"Ticket content: %s\nNormalized issue: %s\nSentiment: %s\nChannel: %s\nTags: %s\n\nReturn ONLY JSON.",
		t.Content, normalized, sentiment, t.Channel, strings.Join(t.Tags, ", "))
}

func escalationUserPrompt(req escalationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket content: %s\n", req.content)
	fmt.Fprintf(&b, "Intake summary: %s\n", req.intakeSummary)
	fmt.Fprintf(&b, "Sentiment: %s\n", req.sentiment)
	fmt.Fprintf(&b, "Classification: %s\n", req.classification)
	fmt.Fprintf(&b, "Resolver notes: %s\n", req.resolverNotes)
	b.WriteString("\nReturn ONLY JSON.")
	return b.String()
}

type escalationContext struct {
	content        string
	intakeSummary  string
	sentiment      string
	classification string
	resolverNotes  string
}
