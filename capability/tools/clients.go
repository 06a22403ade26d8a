package tools

import (
	"context"

	"github.com/nats-io/nats.go"
)

// KBClient queries the knowledge base service.
type KBClient struct {
	r *Requester
}

// NewKBClient creates a knowledge base client.
func NewKBClient(nc *nats.Conn, opts ...RequesterOption) *KBClient {
	return &KBClient{r: NewRequester(nc, opts...)}
}

// Search returns articles matching the query, best first.
func (c *KBClient) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	var articles []Article
	err := c.r.request(ctx, "kb_search", SubjectKBSearch, KBSearchRequest{Query: query, Limit: limit}, &articles)
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// Get fetches one article by id. Returns nil when the article does not exist.
func (c *KBClient) Get(ctx context.Context, articleID string) (*Article, error) {
	var article *Article
	err := c.r.request(ctx, "kb_get", SubjectKBGet, KBGetRequest{ArticleID: articleID}, &article)
	if err != nil {
		return nil, err
	}
	return article, nil
}

// AccountClient looks up customer accounts and reservations.
type AccountClient struct {
	r *Requester
}

// NewAccountClient creates an account client.
func NewAccountClient(nc *nats.Conn, opts ...RequesterOption) *AccountClient {
	return &AccountClient{r: NewRequester(nc, opts...)}
}

// GetUser returns the combined external and core view for a customer.
func (c *AccountClient) GetUser(ctx context.Context, externalUserID string) (*AccountView, error) {
	var view AccountView
	err := c.r.request(ctx, "account_get_user", SubjectAccountGetUser, AccountRequest{ExternalUserID: externalUserID}, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GetReservations lists a customer's reservations with experience info.
func (c *AccountClient) GetReservations(ctx context.Context, externalUserID string) ([]Reservation, error) {
	var reservations []Reservation
	err := c.r.request(ctx, "account_get_user_reservations", SubjectAccountReservations, AccountRequest{ExternalUserID: externalUserID}, &reservations)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// MemoryClient stores and retrieves long-term customer memories.
type MemoryClient struct {
	r *Requester
}

// NewMemoryClient creates a memory client.
func NewMemoryClient(nc *nats.Conn, opts ...RequesterOption) *MemoryClient {
	return &MemoryClient{r: NewRequester(nc, opts...)}
}

// Write stores a memory entry and returns the saved record.
func (c *MemoryClient) Write(ctx context.Context, req MemoryWriteRequest) (*MemoryEntry, error) {
	var entry MemoryEntry
	if err := c.r.request(ctx, "memory_write", SubjectMemoryWrite, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Search finds a customer's memories matching a query, most recent first.
func (c *MemoryClient) Search(ctx context.Context, req MemorySearchRequest) ([]MemoryEntry, error) {
	var entries []MemoryEntry
	if err := c.r.request(ctx, "memory_search", SubjectMemorySearch, req, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadAll lists a customer's recent memories without filtering.
func (c *MemoryClient) ReadAll(ctx context.Context, req MemoryReadAllRequest) ([]MemoryEntry, error) {
	var entries []MemoryEntry
	if err := c.r.request(ctx, "memory_read_all", SubjectMemoryReadAll, req, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
