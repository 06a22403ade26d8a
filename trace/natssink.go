package trace

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultTraceSubjectPrefix is the subject prefix for published trace events.
const DefaultTraceSubjectPrefix = "udahub.trace"

// NATSSink publishes trace events to NATS so external telemetry pipelines
// can consume them. Events are published to <prefix>.<event name>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink creates a sink publishing under the given subject prefix.
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultTraceSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// Emit implements Sink.
func (s *NATSSink) Emit(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", s.prefix, ev.Event)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish trace event to %s: %w", subject, err)
	}
	return nil
}
