// Package tools provides NATS request-reply clients for the support tool
// services: knowledge base search, account lookups, and long-term memory.
// Agents call these during resolution and escalation.
package tools

import (
	"encoding/json"
	"time"
)

// Subjects for the tool services. One subject per operation.
const (
	SubjectKBSearch            = "udahub.tools.kb.search"
	SubjectKBGet               = "udahub.tools.kb.get"
	SubjectAccountGetUser      = "udahub.tools.account.get_user"
	SubjectAccountReservations = "udahub.tools.account.get_user_reservations"
	SubjectMemoryWrite         = "udahub.tools.memory.write"
	SubjectMemorySearch        = "udahub.tools.memory.search"
	SubjectMemoryReadAll       = "udahub.tools.memory.read_all"
)

// Article is a knowledge base article, optionally annotated with a
// relevance score by search.
type Article struct {
	ArticleID string  `json:"article_id"`
	AccountID string  `json:"account_id,omitempty"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Tags      string  `json:"tags,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// KBSearchRequest asks for articles matching a query.
type KBSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// KBGetRequest fetches a single article by id.
type KBGetRequest struct {
	ArticleID string `json:"article_id"`
}

// ExternalUser is the customer record from the external product database.
type ExternalUser struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// CoreUser is the customer record from the hub's own database.
type CoreUser struct {
	UserID         string `json:"user_id"`
	AccountID      string `json:"account_id"`
	ExternalUserID string `json:"external_user_id"`
	UserName       string `json:"user_name,omitempty"`
}

// AccountView combines external and core records for one customer.
type AccountView struct {
	ExternalUser     *ExternalUser `json:"external_user"`
	CoreUser         *CoreUser     `json:"core_user"`
	ReservationCount int           `json:"reservation_count"`
	TicketCount      int           `json:"ticket_count"`
}

// AccountRequest identifies a customer by external user id.
type AccountRequest struct {
	ExternalUserID string `json:"external_user_id"`
}

// Reservation is one booking with basic experience info attached.
type Reservation struct {
	ReservationID      string `json:"reservation_id"`
	UserID             string `json:"user_id"`
	ExperienceID       string `json:"experience_id"`
	Status             string `json:"status"`
	ExperienceTitle    string `json:"experience_title,omitempty"`
	ExperienceLocation string `json:"experience_location,omitempty"`
}

// MemoryEntry is one long-term memory record for a customer.
type MemoryEntry struct {
	MemoryID       string         `json:"memory_id"`
	ExternalUserID string         `json:"external_user_id"`
	TicketID       string         `json:"ticket_id,omitempty"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MemoryWriteRequest stores a new memory entry.
type MemoryWriteRequest struct {
	ExternalUserID string         `json:"external_user_id"`
	Content        string         `json:"content"`
	TicketID       string         `json:"ticket_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MemorySearchRequest searches a customer's memories by keyword.
type MemorySearchRequest struct {
	ExternalUserID string `json:"external_user_id"`
	Query          string `json:"query"`
	Limit          int    `json:"limit,omitempty"`
}

// MemoryReadAllRequest lists a customer's recent memories.
type MemoryReadAllRequest struct {
	ExternalUserID string `json:"external_user_id"`
	Limit          int    `json:"limit,omitempty"`
}

// Envelope is the wire format for tool replies. Data holds the
// operation-specific payload; Error is set when the service failed.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
