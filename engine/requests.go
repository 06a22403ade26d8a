package engine

import "github.com/c360studio/udahub/ticket"

// Request payloads for the four workflow capabilities. Handlers decode
// these from JSON, so the shapes are part of the capability contract.

// IntakeRequest is handed to the intake capability.
type IntakeRequest struct {
	Ticket ticket.Ticket `json:"ticket"`
}

// ClassifyRequest is handed to the classify capability.
type ClassifyRequest struct {
	Ticket ticket.Ticket        `json:"ticket"`
	Intake *ticket.IntakeResult `json:"intake,omitempty"`
}

// ResolveRequest is handed to the resolve capability. Attempt is 1-based.
type ResolveRequest struct {
	Ticket         ticket.Ticket          `json:"ticket"`
	Intake         *ticket.IntakeResult   `json:"intake,omitempty"`
	Classification *ticket.Classification `json:"classification,omitempty"`
	Attempt        int                    `json:"attempt"`
}

// EscalateRequest is handed to the escalate capability.
type EscalateRequest struct {
	Ticket         ticket.Ticket             `json:"ticket"`
	Intake         *ticket.IntakeResult      `json:"intake,omitempty"`
	Classification *ticket.Classification    `json:"classification,omitempty"`
	LatestAttempt  *ticket.ResolutionAttempt `json:"latest_attempt,omitempty"`
}
