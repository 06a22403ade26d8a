package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one capability invocation. It receives the serialized
// request and returns a response value that will be serialized back to the
// caller. Returning a *Failure passes the typed failure through unchanged;
// any other error is reported as an unavailable failure.
type Handler func(ctx context.Context, req json.RawMessage) (any, error)

// Mux routes capability invocations to registered handlers. It is the
// in-process implementation of Client used when all steps run inside one
// binary; the JSON boundary keeps handlers honest about the wire contract.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewMux creates an empty capability mux.
func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mux{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Handle registers a handler for a capability name, replacing any previous
// registration.
func (m *Mux) Handle(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = h
}

// Invoke implements Client.
func (m *Mux) Invoke(ctx context.Context, name string, req, resp any) error {
	m.mu.RLock()
	h, ok := m.handlers[name]
	m.mu.RUnlock()
	if !ok {
		return Unavailable(name, "no handler registered")
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h(ctx, raw)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		// A deadline is the capability timeout; plain cancellation belongs
		// to the caller and is propagated so no partial result is merged.
		if ctx.Err() == context.DeadlineExceeded {
			return Timeout(name, "capability call deadline exceeded")
		}
		return ctx.Err()
	case out := <-done:
		if out.err != nil {
			if f, ok := AsFailure(out.err); ok {
				return f
			}
			return Unavailable(name, out.err.Error())
		}
		return decodeInto(name, out.result, resp)
	}
}

// decodeInto copies a handler result into the caller's response value via a
// JSON round trip.
func decodeInto(name string, result, resp any) error {
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return InvalidResponse(name, fmt.Sprintf("encode response: %v", err))
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return InvalidResponse(name, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

// Typed adapts a strongly typed handler function into a Handler. A request
// that does not decode into Req is reported as an invalid_response failure
// on the capability's own name.
func Typed[Req, Resp any](name string, fn func(context.Context, Req) (Resp, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req Req
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, InvalidResponse(name, fmt.Sprintf("decode request: %v", err))
		}
		return fn(ctx, req)
	}
}
