package scoring

import (
	"math"
	"testing"

	"github.com/c360studio/udahub/ticket"
)

func TestEmptyResultSetNeverSolves(t *testing.T) {
	got := Score("cannot log in", nil, DefaultConfig())

	if got.Status != ticket.AttemptNeedsEscalation {
		t.Errorf("status = %s, want needs_escalation", got.Status)
	}
	if got.Confidence != 0.0 {
		t.Errorf("confidence = %f, want 0.0", got.Confidence)
	}
}

func TestHighSimilarityWithSalientHitsSolves(t *testing.T) {
	// Query has four salient tokens (password, reset, email, broken); the
	// top document contains three of them at similarity 0.9, so confidence
	// is at least 0.5*0.9 + 0.3*0.75 = 0.675 before the lexical term.
	docs := []Document{
		{
			ID:    "A1",
			Text:  "If the password reset email does not arrive, check your spam folder and request a new reset link.",
			Score: 0.9,
		},
		{ID: "A2", Text: "Unrelated billing article.", Score: 0.4},
	}

	got := Score("password reset email broken", docs, DefaultConfig())

	if got.Status != ticket.AttemptSolved {
		t.Fatalf("status = %s, want solved (confidence %f)", got.Status, got.Confidence)
	}
	if got.Confidence < 0.6 {
		t.Errorf("confidence = %f, want >= 0.6", got.Confidence)
	}
	if got.Signals.TopScore != 0.9 {
		t.Errorf("top score = %f, want 0.9", got.Signals.TopScore)
	}
	if math.Abs(got.Signals.SalientOverlap-0.75) > 1e-9 {
		t.Errorf("salient overlap = %f, want 0.75", got.Signals.SalientOverlap)
	}
	if len(got.Signals.SalientTokens) != 4 {
		t.Errorf("salient tokens = %v, want 4 tokens", got.Signals.SalientTokens)
	}
	if len(got.Signals.SalientHits) != 3 {
		t.Errorf("salient hits = %v, want 3 hits", got.Signals.SalientHits)
	}
}

func TestLowConfidenceNotSolved(t *testing.T) {
	docs := []Document{
		{ID: "A1", Text: "Completely unrelated text about gift cards.", Score: 0.2},
	}

	got := Score("password reset email broken", docs, DefaultConfig())

	if got.Status != ticket.AttemptNotSolved {
		t.Errorf("status = %s, want not_solved", got.Status)
	}
	if got.Confidence >= DefaultConfig().ResolvedThreshold {
		t.Errorf("confidence = %f, want below threshold", got.Confidence)
	}
}

func TestNoSalientHitsBlocksSolvedVerdict(t *testing.T) {
	// Even with a suspiciously high similarity score the verdict stays
	// not_solved when none of the salient query tokens appear in the text.
	docs := []Document{
		{ID: "A1", Text: "zzz yyy xxx", Score: 1.0},
	}

	got := Score("password reset email broken", docs, DefaultConfig())

	if got.Status == ticket.AttemptSolved {
		t.Errorf("status = solved with zero salient hits, confidence %f", got.Confidence)
	}
}

func TestConfidenceClamped(t *testing.T) {
	tests := []struct {
		name  string
		score float64
	}{
		{"similarity above one", 7.5},
		{"negative similarity", -3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := []Document{
				{ID: "A1", Text: "password reset email broken", Score: tt.score},
			}
			got := Score("password reset email broken", docs, DefaultConfig())
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence = %f, want within [0,1]", got.Confidence)
			}
			if got.Signals.TopScore < 0 || got.Signals.TopScore > 1 {
				t.Errorf("top score = %f, want within [0,1]", got.Signals.TopScore)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	docs := []Document{
		{ID: "A1", Text: "reset your password from the login page", Score: 0.7},
	}
	first := Score("how do i reset my password", docs, DefaultConfig())
	second := Score("how do i reset my password", docs, DefaultConfig())

	if first.Confidence != second.Confidence || first.Status != second.Status {
		t.Errorf("scorer is not deterministic: %+v vs %+v", first, second)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"mixed case and punctuation", "Can't log-in!", []string{"can", "t", "log", "in"}},
		{"deduplicates", "reset reset reset", []string{"reset"}},
		{"empty", "  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
