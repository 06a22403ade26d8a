// Package engine drives the ticket workflow state machine. It sequences the
// intake, classification, resolution, and escalation capabilities, merges
// each step's output into the ticket state, enforces the resolve retry
// bound, persists state after every transition, and emits trace events at
// each boundary. Every ticket that enters the engine reaches DONE with
// either an answer or an escalation package.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/storage"
	"github.com/c360studio/udahub/ticket"
	"github.com/c360studio/udahub/trace"
)

// ErrSessionBusy is returned when a session already has an in-flight run.
// Concurrent invocations for the same session are rejected, never
// interleaved.
var ErrSessionBusy = errors.New("session already has an in-flight run")

// Config holds the engine's policy knobs.
type Config struct {
	// MaxResolveAttempts bounds SUPERVISE -> RESOLVE transitions per ticket.
	MaxResolveAttempts int

	// ResolvedThreshold is the minimum confidence for a solved attempt to
	// end the ticket.
	ResolvedThreshold float64

	// CallTimeout bounds each capability call. A call that exceeds it is
	// treated as a capability failure, which bounds worst-case ticket
	// latency.
	CallTimeout time.Duration
}

// DefaultConfig returns the default engine policy.
func DefaultConfig() Config {
	return Config{
		MaxResolveAttempts: 2,
		ResolvedThreshold:  0.6,
		CallTimeout:        60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxResolveAttempts <= 0 {
		c.MaxResolveAttempts = DefaultConfig().MaxResolveAttempts
	}
	if c.ResolvedThreshold <= 0 {
		c.ResolvedThreshold = DefaultConfig().ResolvedThreshold
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultConfig().CallTimeout
	}
	return c
}

// Engine is the workflow orchestrator. One Engine serves many concurrent
// tickets; within one ticket, steps run strictly sequentially.
type Engine struct {
	client capability.Client
	store  storage.Store
	tracer *trace.Emitter
	cfg    Config
	logger *slog.Logger

	sessions *sessionLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine.
func New(client capability.Client, store storage.Store, tracer *trace.Emitter, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		store:    store,
		tracer:   tracer,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		sessions: newSessionLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = trace.NewEmitter(e.logger)
	}
	return e
}

// Run processes a ticket to completion. If the ticket carries a session ID
// with persisted state, the run resumes from the last completed transition;
// otherwise a new session is created. The returned state is terminal unless
// the context was cancelled or persistence failed, in which case it is the
// consistent snapshot of the last completed transition.
func (e *Engine) Run(ctx context.Context, t ticket.Ticket) (*ticket.State, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	st := ticket.NewState(t)
	if !e.sessions.acquire(st.SessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, st.SessionID)
	}
	defer e.sessions.release(st.SessionID)

	// A provided session ID may refer to a ticket already mid-flight.
	if t.SessionID != "" {
		existing, err := e.store.Load(ctx, t.SessionID)
		switch {
		case err == nil:
			return e.drive(ctx, existing)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load session %s: %w", t.SessionID, err)
		}
	}

	if err := e.save(ctx, st); err != nil {
		return nil, err
	}
	e.emit(ctx, st, trace.EventTicketAccepted, map[string]any{
		"channel": t.Channel,
		"tags":    t.Tags,
	})
	return e.drive(ctx, st)
}

// Resume continues a previously started ticket from its persisted state.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*ticket.State, error) {
	if !e.sessions.acquire(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}
	defer e.sessions.release(sessionID)

	st, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return e.drive(ctx, st)
}

// drive advances the state machine one transition at a time until DONE.
func (e *Engine) drive(ctx context.Context, st *ticket.State) (*ticket.State, error) {
	for st.Status != ticket.StatusDone {
		if err := ctx.Err(); err != nil {
			// The last completed transition is already persisted, so the
			// session can resume exactly where it stopped.
			return st, err
		}
		if err := e.step(ctx, st); err != nil {
			return st, err
		}
	}
	return st, nil
}

// step executes exactly one transition: invoke one capability (or the
// router), merge its result, persist, and emit trace events.
func (e *Engine) step(ctx context.Context, st *ticket.State) error {
	switch st.Status {
	case ticket.StatusIntake:
		var res ticket.IntakeResult
		err := e.invoke(ctx, st, capability.StepIntake, IntakeRequest{Ticket: st.Ticket}, &res)
		if err != nil {
			if isCancellation(ctx, err) {
				return err
			}
			e.recordFailedAttempt(st, capability.StepIntake, err)
		} else if err := st.SetIntake(&res); err != nil {
			e.logger.Warn("intake result dropped", "session_id", st.SessionID, "error", err)
		}
		return e.transition(ctx, st, ticket.StatusClassify)

	case ticket.StatusClassify:
		var res ticket.Classification
		err := e.invoke(ctx, st, capability.StepClassify, ClassifyRequest{
			Ticket: st.Ticket,
			Intake: st.Intake,
		}, &res)
		if err != nil {
			if isCancellation(ctx, err) {
				return err
			}
			e.recordFailedAttempt(st, capability.StepClassify, err)
		} else if err := st.SetClassification(&res); err != nil {
			e.logger.Warn("classification result dropped", "session_id", st.SessionID, "error", err)
		}
		return e.transition(ctx, st, ticket.StatusSupervise)

	case ticket.StatusSupervise:
		return e.supervise(ctx, st)

	case ticket.StatusResolve:
		var attempt ticket.ResolutionAttempt
		err := e.invoke(ctx, st, capability.StepResolve, ResolveRequest{
			Ticket:         st.Ticket,
			Intake:         st.Intake,
			Classification: st.Classification,
			Attempt:        len(st.ResolutionHistory) + 1,
		}, &attempt)
		if err != nil {
			if isCancellation(ctx, err) {
				return err
			}
			attempt = failedAttempt(capability.StepResolve, err)
		}
		st.AppendAttempt(attempt)
		return e.transition(ctx, st, ticket.StatusSupervise)

	case ticket.StatusEscalate:
		var esc ticket.Escalation
		err := e.invoke(ctx, st, capability.StepEscalate, EscalateRequest{
			Ticket:         st.Ticket,
			Intake:         st.Intake,
			Classification: st.Classification,
			LatestAttempt:  st.LatestAttempt(),
		}, &esc)
		if err != nil {
			if isCancellation(ctx, err) {
				return err
			}
			// The handoff must happen even when the escalation capability
			// is down; fall back to a package built from known state.
			esc = fallbackEscalation(st)
		}
		if err := st.SetEscalation(&esc); err != nil {
			e.logger.Warn("escalation package dropped", "session_id", st.SessionID, "error", err)
		}
		if err := e.transition(ctx, st, ticket.StatusDone); err != nil {
			return err
		}
		e.emitDone(ctx, st, "escalated")
		return nil

	default:
		return fmt.Errorf("unknown status %q for session %s", st.Status, st.SessionID)
	}
}

// supervise evaluates the router and applies its decision.
func (e *Engine) supervise(ctx context.Context, st *ticket.State) error {
	d := Decide(st, Policy{
		ResolvedThreshold:  e.cfg.ResolvedThreshold,
		MaxResolveAttempts: e.cfg.MaxResolveAttempts,
	})

	st.AppendDecision(string(d.Next), d.Reason)

	event := trace.EventRouterDecision
	if d.Anomaly {
		event = trace.EventRouterAnomaly
		e.logger.Error("supervisor reached defensive fallback",
			"session_id", st.SessionID,
			"ticket_id", st.Ticket.ID,
			"status", st.Status)
	}
	e.emit(ctx, st, event, map[string]any{
		"next":   string(d.Next),
		"reason": d.Reason,
	})

	switch d.Next {
	case NextResolver:
		return e.transition(ctx, st, ticket.StatusResolve)
	case NextEscalation:
		return e.transition(ctx, st, ticket.StatusEscalate)
	default:
		if err := e.transition(ctx, st, ticket.StatusDone); err != nil {
			return err
		}
		e.emitDone(ctx, st, "resolved")
		return nil
	}
}

// invoke calls one capability with the configured timeout, emitting trace
// events at the call boundary.
func (e *Engine) invoke(ctx context.Context, st *ticket.State, name string, req, resp any) error {
	e.emit(ctx, st, trace.EventCapabilityCall, map[string]any{"capability": name})

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	err := e.client.Invoke(cctx, name, req, resp)
	if err == nil {
		return nil
	}
	if isCancellation(ctx, err) {
		return err
	}

	f, ok := capability.AsFailure(err)
	if !ok {
		f = capability.Unavailable(name, err.Error())
	}
	e.emit(ctx, st, trace.EventCapabilityFailure, map[string]any{
		"capability": f.Capability,
		"kind":       string(f.Kind),
		"detail":     f.Detail,
	})
	return f
}

// transition applies one status change, persists the snapshot, and emits the
// transition event. Persistence failure is fatal to the invocation; the
// caller must retry the whole step.
func (e *Engine) transition(ctx context.Context, st *ticket.State, to ticket.Status) error {
	from := st.Status
	if err := st.Transition(to); err != nil {
		return fmt.Errorf("session %s: %w", st.SessionID, err)
	}
	if err := e.save(ctx, st); err != nil {
		return err
	}
	e.emit(ctx, st, trace.EventTransition, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	return nil
}

func (e *Engine) save(ctx context.Context, st *ticket.State) error {
	if err := e.store.Save(ctx, st.SessionID, st); err != nil {
		return fmt.Errorf("persist session %s: %w", st.SessionID, err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, st *ticket.State, event string, extra map[string]any) {
	e.tracer.Emit(ctx, st.SessionID, st.Ticket.ID, event, extra)
}

func (e *Engine) emitDone(ctx context.Context, st *ticket.State, outcome string) {
	extra := map[string]any{
		"outcome":  outcome,
		"attempts": len(st.ResolutionHistory),
	}
	if a := st.LatestAttempt(); a != nil {
		extra["confidence"] = a.Confidence
	}
	e.emit(ctx, st, trace.EventTicketDone, extra)
}

// recordFailedAttempt converts a capability failure into a needs_escalation
// resolution entry so the router escalates instead of the ticket crashing.
func (e *Engine) recordFailedAttempt(st *ticket.State, name string, err error) {
	st.AppendAttempt(failedAttempt(name, err))
}

func failedAttempt(name string, err error) ticket.ResolutionAttempt {
	detail := err.Error()
	if f, ok := capability.AsFailure(err); ok {
		detail = fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return ticket.ResolutionAttempt{
		Status:        ticket.AttemptNeedsEscalation,
		Confidence:    0.0,
		NotesForHuman: fmt.Sprintf("the %s step failed and the ticket was routed to a human", name),
		FailureDetail: detail,
	}
}

// fallbackEscalation builds a handoff package from state already on hand.
func fallbackEscalation(st *ticket.State) ticket.Escalation {
	summary := st.Ticket.Content
	if st.Intake != nil && st.Intake.Summary != "" {
		summary = st.Intake.Summary
	}
	steps := []string{"review the ticket manually"}
	if a := st.LatestAttempt(); a != nil && a.FailureDetail != "" {
		steps = append(steps, "investigate capability failure: "+a.FailureDetail)
	}
	return ticket.Escalation{
		SummaryForHuman:             summary,
		RecommendedDepartment:       "support",
		ProposedNextSteps:           steps,
		IncludePriorResolutionNotes: len(st.ResolutionHistory) > 0,
	}
}

// isCancellation reports whether err stems from the caller's own context,
// as opposed to a per-call timeout.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
