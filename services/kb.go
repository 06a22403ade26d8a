package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/c360studio/udahub/capability/tools"
)

// defaultSearchLimit caps search results when the request does not set one.
const defaultSearchLimit = 5

// KBService serves knowledge base articles from SQLite.
type KBService struct {
	db *sql.DB
}

// NewKBService opens (or creates) the knowledge base at path.
func NewKBService(path string) (*KBService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	s := &KBService{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *KBService) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS knowledge (
			article_id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("migrate knowledge db: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *KBService) Close() error {
	return s.db.Close()
}

// AddArticle inserts or replaces one article. Used for seeding.
func (s *KBService) AddArticle(a tools.Article) error {
	_, err := s.db.Exec(`
		INSERT INTO knowledge (article_id, account_id, title, content, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET
			account_id = excluded.account_id,
			title      = excluded.title,
			content    = excluded.content,
			tags       = excluded.tags`,
		a.ArticleID, a.AccountID, a.Title, a.Content, a.Tags)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.ArticleID, err)
	}
	return nil
}

// Search matches articles by keyword. Each article is scored by how many
// query words appear in its title, content, or tags; results come back
// best first with title as the tie-break.
func (s *KBService) Search(query string, limit int) ([]tools.Article, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []tools.Article{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.Query(`SELECT article_id, account_id, title, content, tags FROM knowledge`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	words := strings.Fields(strings.ToLower(q))

	var scored []tools.Article
	for rows.Next() {
		var a tools.Article
		if err := rows.Scan(&a.ArticleID, &a.AccountID, &a.Title, &a.Content, &a.Tags); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		text := strings.ToLower(a.Title + "\n" + a.Content + "\n" + a.Tags)
		hits := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		a.Score = float64(hits)
		scored = append(scored, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Title < scored[j].Title
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Get returns one article by id, or nil when absent.
func (s *KBService) Get(articleID string) (*tools.Article, error) {
	var a tools.Article
	err := s.db.QueryRow(`
		SELECT article_id, account_id, title, content, tags
		FROM knowledge WHERE article_id = ?`, articleID).
		Scan(&a.ArticleID, &a.AccountID, &a.Title, &a.Content, &a.Tags)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", articleID, err)
	}
	return &a, nil
}

func (s *KBService) handleSearch(data []byte) (any, error) {
	var req tools.KBSearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode kb search request: %w", err)
	}
	return s.Search(req.Query, req.Limit)
}

func (s *KBService) handleGet(data []byte) (any, error) {
	var req tools.KBGetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode kb get request: %w", err)
	}
	return s.Get(req.ArticleID)
}
