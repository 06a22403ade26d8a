package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/capability/tools"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/scoring"
	"github.com/c360studio/udahub/ticket"
)

// KnowledgeBase is the search surface the resolver needs.
// *tools.KBClient satisfies it.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, limit int) ([]tools.Article, error)
}

// Accounts looks up customer context. *tools.AccountClient satisfies it.
type Accounts interface {
	GetUser(ctx context.Context, externalUserID string) (*tools.AccountView, error)
	GetReservations(ctx context.Context, externalUserID string) ([]tools.Reservation, error)
}

// MemoryStore reads and writes long-term customer memories.
// *tools.MemoryClient satisfies it.
type MemoryStore interface {
	Write(ctx context.Context, req tools.MemoryWriteRequest) (*tools.MemoryEntry, error)
	Search(ctx context.Context, req tools.MemorySearchRequest) ([]tools.MemoryEntry, error)
}

// defaultKBLimit is how many articles the resolver retrieves per attempt.
const defaultKBLimit = 5

// ResolverAgent attempts to answer a ticket from the knowledge base. The
// confidence verdict comes from the scorer, not the model: the model only
// drafts the reply once the scorer says the articles cover the issue.
type ResolverAgent struct {
	llm      LLMClient
	kb       KnowledgeBase
	accounts Accounts
	memory   MemoryStore
	cfg      scoring.Config
	kbLimit  int
	logger   *slog.Logger
}

// ResolverOption configures a ResolverAgent.
type ResolverOption func(*ResolverAgent)

// WithAccounts enables account context enrichment.
func WithAccounts(a Accounts) ResolverOption {
	return func(r *ResolverAgent) { r.accounts = a }
}

// WithMemory enables prior-resolution memory lookups and writes.
func WithMemory(m MemoryStore) ResolverOption {
	return func(r *ResolverAgent) { r.memory = m }
}

// WithScoringConfig overrides the scoring policy.
func WithScoringConfig(cfg scoring.Config) ResolverOption {
	return func(r *ResolverAgent) { r.cfg = cfg }
}

// WithKBLimit overrides how many articles are retrieved per attempt.
func WithKBLimit(n int) ResolverOption {
	return func(r *ResolverAgent) {
		if n > 0 {
			r.kbLimit = n
		}
	}
}

// NewResolverAgent creates a resolver over an LLM client and a knowledge
// base. Account and memory enrichment are optional.
func NewResolverAgent(client LLMClient, kb KnowledgeBase, logger *slog.Logger, opts ...ResolverOption) *ResolverAgent {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ResolverAgent{
		llm:     client,
		kb:      kb,
		cfg:     scoring.DefaultConfig(),
		kbLimit: defaultKBLimit,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs one resolution attempt.
func (a *ResolverAgent) Handle(ctx context.Context, req engine.ResolveRequest) (ticket.ResolutionAttempt, error) {
	query := req.Ticket.Content
	if req.Intake != nil && req.Intake.NormalizedIssue != "" {
		query = req.Intake.NormalizedIssue
	}

	articles, err := a.kb.Search(ctx, query, a.kbLimit)
	if err != nil {
		return ticket.ResolutionAttempt{}, err
	}

	result := scoring.Score(query, scoreDocs(query, articles), a.cfg)

	attempt := ticket.ResolutionAttempt{
		Status:     result.Status,
		Confidence: result.Confidence,
		Signals:    result.Signals,
	}
	for _, art := range articles {
		attempt.UsedArticles = append(attempt.UsedArticles, art.ArticleID)
	}

	if result.Status != ticket.AttemptSolved {
		attempt.NotesForHuman = a.lowConfidenceNotes(result, len(articles), req.Attempt)
		return attempt, nil
	}

	answer, notes, err := a.draftAnswer(ctx, req, query, articles)
	if err != nil {
		return ticket.ResolutionAttempt{}, err
	}
	attempt.Answer = answer
	attempt.NotesForHuman = notes

	a.writeMemory(ctx, req, answer)
	return attempt, nil
}

// scoreDocs converts KB search hits into scorer documents. Raw hit counts
// are normalized against the query's word count so they land in [0,1].
func scoreDocs(query string, articles []tools.Article) []scoring.Document {
	words := float64(len(strings.Fields(query)))
	if words == 0 {
		words = 1
	}
	docs := make([]scoring.Document, 0, len(articles))
	for _, art := range articles {
		docs = append(docs, scoring.Document{
			ID:    art.ArticleID,
			Text:  art.Title + "\n" + art.Content,
			Score: art.Score / words,
		})
	}
	return docs
}

func (a *ResolverAgent) lowConfidenceNotes(result scoring.Result, hits, attempt int) string {
	if hits == 0 {
		return "knowledge base returned no matching articles"
	}
	return fmt.Sprintf("attempt %d: confidence %.2f below resolution threshold", attempt, result.Confidence)
}

// draftAnswer asks the model to write the customer reply grounded on the
// retrieved articles, plus whatever account and memory context is available.
func (a *ResolverAgent) draftAnswer(ctx context.Context, req engine.ResolveRequest, query string, articles []tools.Article) (answer, notes string, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer issue: %s\n\n", query)

	b.WriteString("Knowledge base articles:\n")
	for _, art := range articles {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", art.ArticleID, art.Title, art.Content)
	}

	if ctxText := a.accountContext(ctx, req.Ticket.OwnerID); ctxText != "" {
		b.WriteString("Account context:\n")
		b.WriteString(ctxText)
		b.WriteString("\n")
	}
	if memText := a.memoryContext(ctx, req.Ticket.OwnerID, query); memText != "" {
		b.WriteString("Prior resolutions for this customer:\n")
		b.WriteString(memText)
		b.WriteString("\n")
	}
	b.WriteString("Return ONLY JSON.")

	resp, err := complete(ctx, a.llm, capability.StepResolve, llm.Request{
		Capability: model.CapabilityResolution.String(),
		Messages: []llm.Message{
			{Role: "system", Content: resolverSystemPrompt},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return "", "", err
	}

	var out struct {
		Answer        string `json:"answer"`
		NotesForHuman string `json:"notes_for_human"`
	}
	if err := decodeJSON(capability.StepResolve, resp.Content, &out); err != nil {
		return "", "", err
	}
	if out.Answer == "" {
		return "", "", capability.InvalidResponse(capability.StepResolve, "model returned empty answer")
	}
	return out.Answer, out.NotesForHuman, nil
}

// accountContext fetches customer context best-effort. Failures are logged
// and skipped so enrichment never blocks a resolution.
func (a *ResolverAgent) accountContext(ctx context.Context, ownerID string) string {
	if a.accounts == nil || ownerID == "" {
		return ""
	}

	var b strings.Builder
	view, err := a.accounts.GetUser(ctx, ownerID)
	if err != nil {
		a.logger.Warn("account lookup failed", "owner_id", ownerID, "error", err)
		return ""
	}
	if view.ExternalUser != nil {
		fmt.Fprintf(&b, "- customer: %s, %d reservations, %d prior tickets\n",
			view.ExternalUser.Name, view.ReservationCount, view.TicketCount)
	}

	reservations, err := a.accounts.GetReservations(ctx, ownerID)
	if err != nil {
		a.logger.Warn("reservation lookup failed", "owner_id", ownerID, "error", err)
	} else {
		for _, r := range reservations {
			fmt.Fprintf(&b, "- reservation %s: %s (%s)\n", r.ReservationID, r.ExperienceTitle, r.Status)
		}
	}
	return b.String()
}

// memoryContext searches prior memories best-effort.
func (a *ResolverAgent) memoryContext(ctx context.Context, ownerID, query string) string {
	if a.memory == nil || ownerID == "" {
		return ""
	}
	entries, err := a.memory.Search(ctx, tools.MemorySearchRequest{
		ExternalUserID: ownerID,
		Query:          query,
		Limit:          3,
	})
	if err != nil {
		a.logger.Warn("memory search failed", "owner_id", ownerID, "error", err)
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n", e.Content)
	}
	return b.String()
}

// writeMemory records a successful resolution for future tickets.
// Best-effort: a write failure never fails the attempt.
func (a *ResolverAgent) writeMemory(ctx context.Context, req engine.ResolveRequest, answer string) {
	if a.memory == nil || req.Ticket.OwnerID == "" {
		return
	}

	issueType := ""
	if req.Classification != nil {
		issueType = req.Classification.IssueType
	}
	_, err := a.memory.Write(ctx, tools.MemoryWriteRequest{
		ExternalUserID: req.Ticket.OwnerID,
		TicketID:       req.Ticket.ID,
		Content:        fmt.Sprintf("Resolved %s ticket: %s", issueType, answer),
		Metadata:       map[string]any{"issue_type": issueType},
	})
	if err != nil {
		a.logger.Warn("memory write failed", "ticket_id", req.Ticket.ID, "error", err)
	}
}
