// Package scoring turns knowledge-search signals into a resolution verdict.
// It is a pure function of the query and the ranked result set so the same
// inputs always produce the same confidence, independently of the engine.
package scoring

import (
	"strings"

	"github.com/c360studio/udahub/ticket"
)

// Document is one ranked knowledge-search result. Score is the semantic
// similarity reported by the search backend, expected in [0,1] but clamped
// here so out-of-range backends cannot push confidence outside [0,1].
type Document struct {
	ID    string
	Text  string
	Score float64
}

// Weights control the confidence combination. They are policy, not
// structure: deployments tune them in configuration.
type Weights struct {
	TopScore       float64 `yaml:"top_score" json:"top_score"`
	SalientOverlap float64 `yaml:"salient_overlap" json:"salient_overlap"`
	LexicalOverlap float64 `yaml:"lexical_overlap" json:"lexical_overlap"`
}

// DefaultWeights returns the default confidence weighting.
func DefaultWeights() Weights {
	return Weights{
		TopScore:       0.5,
		SalientOverlap: 0.3,
		LexicalOverlap: 0.2,
	}
}

// Config parameterizes the scorer.
type Config struct {
	Weights Weights `yaml:"weights" json:"weights"`

	// ResolvedThreshold is the minimum confidence for a solved verdict.
	ResolvedThreshold float64 `yaml:"resolved_threshold" json:"resolved_threshold"`

	// MinSalientLen is the minimum token length to count as salient.
	MinSalientLen int `yaml:"min_salient_len" json:"min_salient_len"`
}

// DefaultConfig returns the default scoring policy.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		ResolvedThreshold: 0.6,
		MinSalientLen:     3,
	}
}

// Result is the scorer's verdict for one resolution attempt.
type Result struct {
	Status     ticket.AttemptStatus
	Confidence float64
	Signals    ticket.ScoringSignals
}

// stopWords are query tokens that carry no retrieval signal.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "our": {}, "you": {}, "your": {},
	"it": {}, "its": {}, "to": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"for": {}, "with": {}, "about": {}, "as": {}, "by": {}, "from": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "can": {}, "cant": {},
	"cannot": {}, "do": {}, "does": {}, "did": {}, "dont": {}, "not": {},
	"no": {}, "have": {}, "has": {}, "had": {}, "how": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"would": {}, "should": {}, "could": {}, "get": {}, "got": {}, "am": {},
	"please": {}, "help": {},
}

// Score computes a confidence value and verdict for a query against ranked
// search results. An empty result set is never guessed around: it always
// yields needs_escalation with zero confidence.
func Score(query string, docs []Document, cfg Config) Result {
	if len(docs) == 0 {
		return Result{
			Status:     ticket.AttemptNeedsEscalation,
			Confidence: 0.0,
		}
	}

	top := docs[0]
	topScore := clamp01(top.Score)

	queryTokens := tokenize(query)
	docTokens := tokenSet(tokenize(top.Text))

	lexical := overlapRatio(queryTokens, docTokens)

	salient := salientTokens(queryTokens, cfg.MinSalientLen)
	var salientHits []string
	for _, tok := range salient {
		if _, ok := docTokens[tok]; ok {
			salientHits = append(salientHits, tok)
		}
	}
	salientOverlap := 0.0
	if len(salient) > 0 {
		salientOverlap = float64(len(salientHits)) / float64(len(salient))
	}

	confidence := clamp01(cfg.Weights.TopScore*topScore +
		cfg.Weights.SalientOverlap*salientOverlap +
		cfg.Weights.LexicalOverlap*lexical)

	status := ticket.AttemptNotSolved
	if confidence >= cfg.ResolvedThreshold && len(salientHits) > 0 {
		status = ticket.AttemptSolved
	}

	return Result{
		Status:     status,
		Confidence: confidence,
		Signals: ticket.ScoringSignals{
			TopScore:       topScore,
			LexicalOverlap: lexical,
			SalientOverlap: salientOverlap,
			SalientTokens:  salient,
			SalientHits:    salientHits,
		},
	}
}

// tokenize lowercases and splits text on non-alphanumeric runes, returning
// deduplicated tokens in first-seen order.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// salientTokens filters stop words and short tokens from the query.
func salientTokens(tokens []string, minLen int) []string {
	if minLen <= 0 {
		minLen = DefaultConfig().MinSalientLen
	}
	var out []string
	for _, t := range tokens {
		if len(t) < minLen {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// overlapRatio is |query ∩ doc| / |query| over deduplicated tokens.
func overlapRatio(query []string, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for _, t := range query {
		if _, ok := doc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
