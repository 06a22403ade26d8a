package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/udahub/capability"
)

// DefaultRequestTimeout bounds a single tool request when the caller's
// context carries no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Requester performs request-reply calls to tool services over NATS and
// maps transport errors to capability failures.
type Requester struct {
	nc      *nats.Conn
	timeout time.Duration
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithTimeout sets the per-request timeout used when the context has no
// deadline.
func WithTimeout(d time.Duration) RequesterOption {
	return func(r *Requester) { r.timeout = d }
}

// NewRequester creates a Requester on an existing NATS connection.
func NewRequester(nc *nats.Conn, opts ...RequesterOption) *Requester {
	r := &Requester{nc: nc, timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// request sends req to subject and decodes the reply envelope into out.
// out may be nil when the caller only cares about success.
func (r *Requester) request(ctx context.Context, name, subject string, req, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	msg, err := r.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		switch {
		case errors.Is(err, nats.ErrNoResponders):
			return capability.Unavailable(name, fmt.Sprintf("no responders on %s", subject))
		case errors.Is(err, context.DeadlineExceeded):
			return capability.Timeout(name, fmt.Sprintf("request to %s timed out", subject))
		case errors.Is(err, context.Canceled):
			return err
		default:
			return capability.Unavailable(name, fmt.Sprintf("request to %s: %v", subject, err))
		}
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return capability.InvalidResponse(name, fmt.Sprintf("malformed reply from %s: %v", subject, err))
	}
	if env.Error != "" {
		return capability.Unavailable(name, env.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return capability.InvalidResponse(name, fmt.Sprintf("decode reply from %s: %v", subject, err))
	}
	return nil
}
