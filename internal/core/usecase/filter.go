package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

// RelevanceFilter narrows a fused candidate set down to the context
// that actually reaches the composer: threshold with fallback tiers,
// near-duplicate removal, then an optional model-assisted rerank.
type RelevanceFilter struct {
	completions ports.CompletionService
	concurrency int
	logger      *slog.Logger
}

func NewRelevanceFilter(completions ports.CompletionService, concurrency int, logger *slog.Logger) *RelevanceFilter {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelevanceFilter{completions: completions, concurrency: concurrency, logger: logger}
}

// thresholdFilter keeps candidates scoring at or above minScore by
// vector score. When the strict tier is empty it relaxes to 70% of the
// threshold, and when that is empty too it falls back to the top
// min(3, len) candidates by vector score so downstream stages always
// have something to work with.
func thresholdFilter(candidates []domain.FusedCandidate, minScore float64) []domain.FusedCandidate {
	pass := func(threshold float64) []domain.FusedCandidate {
		var kept []domain.FusedCandidate
		for _, c := range candidates {
			if c.VectorScore >= threshold {
				kept = append(kept, c)
			}
		}
		return kept
	}

	if kept := pass(minScore); len(kept) > 0 {
		return kept
	}
	if kept := pass(minScore * 0.7); len(kept) > 0 {
		return kept
	}

	fallback := make([]domain.FusedCandidate, len(candidates))
	copy(fallback, candidates)
	sort.SliceStable(fallback, func(a, b int) bool {
		return fallback[a].VectorScore > fallback[b].VectorScore
	})
	n := 3
	if len(fallback) < n {
		n = len(fallback)
	}
	return fallback[:n]
}

// deduplicate drops candidates whose token overlap with an already
// kept candidate meets or exceeds the diversity threshold. Earlier
// candidates win, so the input ordering decides which duplicate
// survives.
func deduplicate(candidates []domain.FusedCandidate, diversityThreshold float64) []domain.FusedCandidate {
	var kept []domain.FusedCandidate
	var keptTokens []map[string]struct{}

	for _, candidate := range candidates {
		tokens := contentTokens(candidate.Content)
		duplicate := false
		for _, existing := range keptTokens {
			if tokenJaccard(tokens, existing) >= diversityThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, candidate)
		keptTokens = append(keptTokens, tokens)
	}
	return kept
}

// Rerank scores each candidate against the question with the
// completion model and blends that with the vector score. Variants are
// scored concurrently under the worker cap; a failed or unparseable
// scoring call falls back to a neutral 0.5 so one bad response cannot
// sink the stage. The result is truncated to maxChunks.
func (f *RelevanceFilter) Rerank(ctx context.Context, question string, candidates []domain.FusedCandidate, maxChunks int) []domain.FusedCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	llmScores := make([]float64, len(candidates))
	for i := range llmScores {
		llmScores[i] = 0.5
	}
	sem := semaphore.NewWeighted(int64(f.concurrency))
	var wg sync.WaitGroup

	for i := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("rerank_panic", "panic", r, "candidate", candidates[idx].ID)
				}
			}()

			score, err := f.scoreRelevance(ctx, question, candidates[idx].Content)
			if err != nil {
				f.logger.Warn("rerank_score_failed", "candidate", candidates[idx].ID, "error", err)
				return
			}
			llmScores[idx] = score
		}(i)
	}
	wg.Wait()

	reranked := make([]domain.FusedCandidate, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].FusionScore = (reranked[i].VectorScore + llmScores[i]) / 2
	}
	sort.SliceStable(reranked, func(a, b int) bool {
		return reranked[a].FusionScore > reranked[b].FusionScore
	})

	if maxChunks > 0 && len(reranked) > maxChunks {
		reranked = reranked[:maxChunks]
	}
	return reranked
}

func (f *RelevanceFilter) scoreRelevance(ctx context.Context, question, content string) (float64, error) {
	prompt := fmt.Sprintf(`Rate how relevant the following context is to the question on a scale from 0.0 to 1.0.
Respond with a single number and nothing else.

Question: %s

Context:
%s

Relevance score:`, question, content)

	raw, err := f.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.0, MaxTokens: 8})
	if err != nil {
		return 0, err
	}
	return parseScore(raw)
}

var scoreRE = regexp.MustCompile(`\d*\.?\d+`)

// parseScore extracts the first decimal number from a model reply and
// clamps it into [0,1].
func parseScore(raw string) (float64, error) {
	match := scoreRE.FindString(raw)
	if match == "" {
		return 0, domain.WrapError(domain.ErrMalformedOutput, "parse relevance score", fmt.Errorf("no number in reply %q", raw))
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, domain.WrapError(domain.ErrMalformedOutput, "parse relevance score", err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// contentTokens lowercases the text and keeps alphanumeric words longer
// than three characters.
func contentTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var b strings.Builder
	runes := 0
	flush := func() {
		if runes > 3 {
			tokens[b.String()] = struct{}{}
		}
		b.Reset()
		runes = 0
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func tokenJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var intersection int
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
