package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

func fusedCandidate(id string, vectorScore float64, content string) domain.FusedCandidate {
	return domain.FusedCandidate{
		Candidate: domain.Candidate{
			ID:          id,
			Title:       id + ".md",
			Content:     content,
			VectorScore: vectorScore,
		},
		FusionScore: vectorScore,
	}
}

func TestThresholdFilterStrictTier(t *testing.T) {
	in := []domain.FusedCandidate{
		fusedCandidate("a", 0.9, "alpha"),
		fusedCandidate("b", 0.5, "beta"),
		fusedCandidate("c", 0.3, "gamma"),
	}

	out := thresholdFilter(in, 0.55)
	if len(out) != 1 {
		t.Fatalf("expected strict tier to keep 1 candidate, got %d", len(out))
	}
	if out[0].ID != "a" {
		t.Fatalf("expected candidate a, got %s", out[0].ID)
	}
}

func TestThresholdFilterRelaxedTier(t *testing.T) {
	in := []domain.FusedCandidate{
		fusedCandidate("a", 0.5, "alpha"),
		fusedCandidate("b", 0.2, "beta"),
	}

	// Strict 0.55 keeps nothing; relaxed 0.385 keeps a.
	out := thresholdFilter(in, 0.55)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("expected relaxed tier to keep only a, got %+v", out)
	}
}

func TestThresholdFilterRawTopNFallback(t *testing.T) {
	in := []domain.FusedCandidate{
		fusedCandidate("low", 0.3, "alpha"),
		fusedCandidate("lower", 0.2, "beta"),
	}

	out := thresholdFilter(in, 0.55)
	if len(out) != 2 {
		t.Fatalf("expected fallback to return both candidates, got %d", len(out))
	}
	if out[0].ID != "low" || out[1].ID != "lower" {
		t.Fatalf("expected descending score order [low lower], got [%s %s]", out[0].ID, out[1].ID)
	}
}

func TestThresholdFilterNeverEmptyOnNonEmptyInput(t *testing.T) {
	in := []domain.FusedCandidate{fusedCandidate("only", 0.01, "alpha")}
	if out := thresholdFilter(in, 0.99); len(out) == 0 {
		t.Fatal("non-empty input must survive the three-tier fallback")
	}
}

func TestDeduplicateKeepsFirstAndHoldsDiversityInvariant(t *testing.T) {
	first := "golang backend services with postgres and kubernetes experience"
	nearDup := "golang backend services with postgres plus kubernetes experience"
	distinct := "classical piano performance awards during university years"

	in := []domain.FusedCandidate{
		fusedCandidate("a", 0.9, first),
		fusedCandidate("b", 0.8, nearDup),
		fusedCandidate("c", 0.7, distinct),
	}

	out := deduplicate(in, 0.85)
	if len(out) != 2 {
		t.Fatalf("expected near-duplicate dropped, got %d candidates", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "c" {
		t.Fatalf("expected [a c], got [%s %s]", out[0].ID, out[1].ID)
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			sim := tokenJaccard(contentTokens(out[i].Content), contentTokens(out[j].Content))
			if sim >= 0.85 {
				t.Fatalf("pair (%s,%s) violates diversity threshold: %v", out[i].ID, out[j].ID, sim)
			}
		}
	}
}

func TestRerankBlendsScoresAndTruncates(t *testing.T) {
	completions := &fakeCompletion{
		generate: func(_ context.Context, _ string, _ domain.GenerationOptions) (string, error) {
			return "1.0", nil
		},
	}
	filter := NewRelevanceFilter(completions, 2, testLogger())

	in := []domain.FusedCandidate{
		fusedCandidate("a", 0.2, "alpha"),
		fusedCandidate("b", 0.8, "beta"),
		fusedCandidate("c", 0.6, "gamma"),
	}

	out := filter.Rerank(context.Background(), "question", in, 2)
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2 chunks, got %d", len(out))
	}
	if out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("expected [b c] by combined score, got [%s %s]", out[0].ID, out[1].ID)
	}
	if out[0].FusionScore != (0.8+1.0)/2 {
		t.Fatalf("expected combined score 0.9, got %v", out[0].FusionScore)
	}
}

func TestRerankFailedScoringUsesNeutral(t *testing.T) {
	completions := &fakeCompletion{
		generate: func(_ context.Context, _ string, _ domain.GenerationOptions) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	filter := NewRelevanceFilter(completions, 2, testLogger())

	in := []domain.FusedCandidate{fusedCandidate("a", 0.7, "alpha")}
	out := filter.Rerank(context.Background(), "question", in, 5)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].FusionScore != (0.7+0.5)/2 {
		t.Fatalf("expected neutral 0.5 blend, got %v", out[0].FusionScore)
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"0.8", 0.8, true},
		{"Relevance: 0.75 out of 1", 0.75, true},
		{"1", 1, true},
		{"5", 1, true},
		{"no score here", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := parseScore(tc.raw)
		if tc.ok && err != nil {
			t.Fatalf("parseScore(%q): unexpected error %v", tc.raw, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("parseScore(%q): expected error", tc.raw)
			}
			if !domain.IsKind(err, domain.ErrMalformedOutput) {
				t.Fatalf("parseScore(%q): expected malformed-output kind, got %v", tc.raw, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("parseScore(%q): expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestContentTokensMeasureWordLengthInRunes(t *testing.T) {
	tokens := contentTokens("Где ты работал в Москве?")

	if _, ok := tokens["где"]; ok {
		t.Fatal("expected 3-rune word to be dropped")
	}
	if _, ok := tokens["ты"]; ok {
		t.Fatal("expected 2-rune word to be dropped")
	}
	if _, ok := tokens["работал"]; !ok {
		t.Fatalf("expected long word to be kept, got %v", tokens)
	}
	if _, ok := tokens["москве"]; !ok {
		t.Fatalf("expected lowercased long word to be kept, got %v", tokens)
	}
}
