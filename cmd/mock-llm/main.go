// Package main implements a mock LLM server for offline development.
// It serves OpenAI-compatible /v1/chat/completions responses so the full
// ticket workflow can run without a real model: point the ollama endpoint
// at this server and every agent gets a deterministic, contract-shaped reply.
//
// Usage:
//
//	mock-llm -port 11434
//	mock-llm -fixtures /path/to/fixtures -port 11434
//
// The built-in responses are selected by sniffing the system prompt for the
// agent role (intake, classifier, resolver, escalation). Fixture files named
// by role (e.g. "classifier.json") override the built-in response for that
// role, which lets a dev script force immediate escalation or low urgency.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// builtinResponses are contract-shaped replies for each agent role.
var builtinResponses = map[string]string{
	"intake": `{
  "summary": "Customer reports a problem with their account.",
  "normalized_issue": "customer cannot complete an action on their account",
  "sentiment": "neutral",
  "suspected_language": "en"
}`,
	"classifier": `{
  "issue_type": "technical",
  "urgency": "medium",
  "complexity": "medium",
  "should_escalate_immediately": false,
  "rationale": "Routine technical question with no urgency markers."
}`,
	"resolver": `{
  "answer": "Based on our help articles, please follow the steps in the linked guide. If the problem persists, reply to this message and we will escalate.",
  "notes_for_human": "Mock resolver reply."
}`,
	"escalation": `{
  "summary_for_human": "Customer issue could not be resolved automatically.",
  "recommended_department": "support",
  "proposed_next_steps": ["Review the ticket history", "Contact the customer"],
  "include_prior_resolution_notes": true
}`,
}

// roleMarkers map a system-prompt substring to an agent role.
var roleMarkers = []struct {
	marker string
	role   string
}{
	{"intake agent", "intake"},
	{"classifier agent", "classifier"},
	{"resolver agent", "resolver"},
	{"escalation agent", "escalation"},
}

type server struct {
	responses map[string]string
	calls     atomic.Int64

	// Per-role call counters for test assertions.
	roleCallsMu sync.Mutex
	roleCalls   map[string]int64
}

func newServer(responses map[string]string) *server {
	return &server{
		responses: responses,
		roleCalls: make(map[string]int64),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory with per-role override files (intake.json, ...)")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	responses := make(map[string]string, len(builtinResponses))
	for role, content := range builtinResponses {
		responses[role] = content
	}

	if *fixtureDir != "" {
		overrides, err := loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		for role, content := range overrides {
			responses[role] = content
			log.Printf("Fixture override for role %q", role)
		}
	}

	s := newServer(responses)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)

	role := detectRole(req.Messages)
	content, ok := s.responses[role]
	if !ok {
		log.Printf("[call %d] WARNING: could not detect agent role, returning error", callNum)
		http.Error(w, "could not detect agent role from system prompt", http.StatusNotFound)
		return
	}

	s.roleCallsMu.Lock()
	s.roleCalls[role]++
	s.roleCallsMu.Unlock()

	log.Printf("[call %d] model=%s role=%s", callNum, req.Model, role)

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.roleCallsMu.Lock()
	callsByRole := make(map[string]int64, len(s.roleCalls))
	for role, n := range s.roleCalls {
		callsByRole[role] = n
	}
	s.roleCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":   s.calls.Load(),
		"calls_by_role": callsByRole,
	})
}

// detectRole identifies the requesting agent from the system prompt.
func detectRole(messages []chatMessage) string {
	for _, msg := range messages {
		if msg.Role != "system" {
			continue
		}
		lower := strings.ToLower(msg.Content)
		for _, rm := range roleMarkers {
			if strings.Contains(lower, rm.marker) {
				return rm.role
			}
		}
	}
	return ""
}

// loadFixtures reads per-role override files: <role>.json in dir.
func loadFixtures(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		role := strings.TrimSuffix(name, ".json")
		if _, known := builtinResponses[role]; !known {
			return nil, fmt.Errorf("unknown role fixture %q (want one of intake, classifier, resolver, escalation)", name)
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", name)
		}
		overrides[role] = string(data)
	}

	if len(overrides) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return overrides, nil
}
