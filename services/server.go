// Package services implements the tool services behind the NATS tool
// subjects: knowledge base, account lookups, and long-term memory. Each
// service answers request-reply messages with an Envelope reply and is
// backed by SQLite.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/udahub/capability/tools"
)

// queueGroup lets multiple tool service instances share load.
const queueGroup = "udahub-tools"

// handlerFunc processes one decoded request and returns the reply payload.
type handlerFunc func(data []byte) (any, error)

// Server subscribes the tool services to their subjects.
type Server struct {
	nc     *nats.Conn
	logger *slog.Logger

	kb      *KBService
	account *AccountService
	memory  *MemoryService

	subs []*nats.Subscription
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a tool server over the given services. Any service may
// be nil, in which case its subjects are not registered.
func NewServer(nc *nats.Conn, kb *KBService, account *AccountService, memory *MemoryService, opts ...ServerOption) *Server {
	s := &Server{
		nc:      nc,
		logger:  slog.Default(),
		kb:      kb,
		account: account,
		memory:  memory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes all configured services. Call Stop to drain.
func (s *Server) Start() error {
	type binding struct {
		subject string
		handler handlerFunc
	}
	var bindings []binding

	if s.kb != nil {
		bindings = append(bindings,
			binding{tools.SubjectKBSearch, s.kb.handleSearch},
			binding{tools.SubjectKBGet, s.kb.handleGet},
		)
	}
	if s.account != nil {
		bindings = append(bindings,
			binding{tools.SubjectAccountGetUser, s.account.handleGetUser},
			binding{tools.SubjectAccountReservations, s.account.handleGetReservations},
		)
	}
	if s.memory != nil {
		bindings = append(bindings,
			binding{tools.SubjectMemoryWrite, s.memory.handleWrite},
			binding{tools.SubjectMemorySearch, s.memory.handleSearch},
			binding{tools.SubjectMemoryReadAll, s.memory.handleReadAll},
		)
	}

	for _, b := range bindings {
		sub, err := s.nc.QueueSubscribe(b.subject, queueGroup, s.respond(b.subject, b.handler))
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribe %s: %w", b.subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("tool services started", "subjects", len(s.subs))
	return nil
}

// Stop unsubscribes all subjects.
func (s *Server) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	s.subs = nil
}

// respond wraps a handler with envelope encoding and error reporting.
func (s *Server) respond(subject string, h handlerFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		result, err := h(msg.Data)

		var env tools.Envelope
		if err != nil {
			s.logger.Warn("tool request failed", "subject", subject, "error", err)
			env.Error = err.Error()
		} else {
			data, merr := json.Marshal(result)
			if merr != nil {
				env.Error = fmt.Sprintf("encode reply: %v", merr)
			} else {
				env.Data = data
			}
		}

		reply, err := json.Marshal(env)
		if err != nil {
			s.logger.Error("encode envelope failed", "subject", subject, "error", err)
			return
		}
		if err := msg.Respond(reply); err != nil {
			s.logger.Warn("reply failed", "subject", subject, "error", err)
		}
	}
}
