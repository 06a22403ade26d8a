package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/c360studio/udahub/capability/tools"
)

// defaultReadAllLimit caps unfiltered memory listings.
const defaultReadAllLimit = 50

// MemoryService stores long-term customer memories in SQLite.
type MemoryService struct {
	db *sql.DB
}

// NewMemoryService opens (or creates) the memory database at path.
func NewMemoryService(path string) (*MemoryService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &MemoryService{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MemoryService) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_entries (
			id               TEXT PRIMARY KEY,
			external_user_id TEXT NOT NULL,
			ticket_id        TEXT NOT NULL DEFAULT '',
			content          TEXT NOT NULL,
			metadata         TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate memory db: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_memory_user ON memory_entries(external_user_id)`)
	if err != nil {
		return fmt.Errorf("migrate memory db: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *MemoryService) Close() error {
	return s.db.Close()
}

// Write stores a new memory entry and returns the saved record.
func (s *MemoryService) Write(req tools.MemoryWriteRequest) (*tools.MemoryEntry, error) {
	if strings.TrimSpace(req.ExternalUserID) == "" {
		return nil, fmt.Errorf("external_user_id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	entry := &tools.MemoryEntry{
		MemoryID:       uuid.New().String(),
		ExternalUserID: req.ExternalUserID,
		TicketID:       req.TicketID,
		Content:        req.Content,
		Metadata:       req.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	var metadata string
	if req.Metadata != nil {
		data, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO memory_entries (id, external_user_id, ticket_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.MemoryID, entry.ExternalUserID, entry.TicketID, entry.Content,
		metadata, entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert memory entry: %w", err)
	}
	return entry, nil
}

// Search finds a customer's memories matching a query, most recent first.
func (s *MemoryService) Search(req tools.MemorySearchRequest) ([]tools.MemoryEntry, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return []tools.MemoryEntry{}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.Query(`
		SELECT id, external_user_id, ticket_id, content, metadata, created_at
		FROM memory_entries
		WHERE external_user_id = ? AND content LIKE ? COLLATE NOCASE
		ORDER BY created_at DESC
		LIMIT ?`,
		req.ExternalUserID, "%"+q+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search memory entries: %w", err)
	}
	defer rows.Close()
	return scanMemoryEntries(rows)
}

// ReadAll lists a customer's recent memories, most recent first.
func (s *MemoryService) ReadAll(req tools.MemoryReadAllRequest) ([]tools.MemoryEntry, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultReadAllLimit
	}

	rows, err := s.db.Query(`
		SELECT id, external_user_id, ticket_id, content, metadata, created_at
		FROM memory_entries
		WHERE external_user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		req.ExternalUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("read memory entries: %w", err)
	}
	defer rows.Close()
	return scanMemoryEntries(rows)
}

func scanMemoryEntries(rows *sql.Rows) ([]tools.MemoryEntry, error) {
	entries := []tools.MemoryEntry{}
	for rows.Next() {
		var e tools.MemoryEntry
		var metadata, createdAt string
		if err := rows.Scan(&e.MemoryID, &e.ExternalUserID, &e.TicketID, &e.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory entry: %w", err)
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory entries: %w", err)
	}
	return entries, nil
}

func (s *MemoryService) handleWrite(data []byte) (any, error) {
	var req tools.MemoryWriteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode memory write request: %w", err)
	}
	return s.Write(req)
}

func (s *MemoryService) handleSearch(data []byte) (any, error) {
	var req tools.MemorySearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode memory search request: %w", err)
	}
	return s.Search(req)
}

func (s *MemoryService) handleReadAll(data []byte) (any, error) {
	var req tools.MemoryReadAllRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode memory read request: %w", err)
	}
	return s.ReadAll(req)
}
