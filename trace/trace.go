// Package trace emits structured workflow events. The engine produces one
// event per transition and per capability call boundary; sinks decide where
// they go (slog, a JSONL file, NATS, Prometheus). The engine only produces
// events, it never reads them back.
package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the engine.
const (
	EventTicketAccepted    = "ticket.accepted"
	EventTransition        = "transition"
	EventCapabilityCall    = "capability.call"
	EventCapabilityFailure = "capability.failure"
	EventRouterDecision    = "router.decision"
	EventRouterAnomaly     = "router.anomaly"
	EventTicketDone        = "ticket.done"
)

// Event is one structured trace record.
type Event struct {
	EventID   string         `json:"event_id"`
	SessionID string         `json:"session_id"`
	TicketID  string         `json:"ticket_id"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Sink consumes trace events. Implementations must be safe for concurrent
// use; the engine runs one goroutine per ticket.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// Emitter fans events out to sinks. Sink failures are logged and swallowed:
// tracing must never fail a ticket.
type Emitter struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewEmitter creates an emitter over the given sinks.
func NewEmitter(logger *slog.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sinks: sinks, logger: logger}
}

// Emit stamps and delivers one event.
func (e *Emitter) Emit(ctx context.Context, sessionID, ticketID, name string, extra map[string]any) {
	ev := Event{
		EventID:   uuid.New().String(),
		SessionID: sessionID,
		TicketID:  ticketID,
		Event:     name,
		Timestamp: time.Now().UTC(),
		Extra:     extra,
	}
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, ev); err != nil {
			e.logger.Warn("trace sink failed",
				"event", name,
				"session_id", sessionID,
				"error", err)
		}
	}
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s *SlogSink) Emit(_ context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(ev.Event,
		"event_id", ev.EventID,
		"session_id", ev.SessionID,
		"ticket_id", ev.TicketID,
		"extra", ev.Extra)
	return nil
}
