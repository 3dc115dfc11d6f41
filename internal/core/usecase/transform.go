package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

// QueryTransformer rewrites the user question into retrieval-friendly
// variants. Every stage is a pure function of (query, config): on
// completion failure it hands back the input unchanged and reports ok=false
// instead of returning an error.
type QueryTransformer struct {
	completions ports.CompletionService
	logger      *slog.Logger
}

func NewQueryTransformer(completions ports.CompletionService, logger *slog.Logger) *QueryTransformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryTransformer{
		completions: completions,
		logger:      logger,
	}
}

// Enhance expands the question with synonyms and profile domain terms.
func (t *QueryTransformer) Enhance(ctx context.Context, question string) (string, bool) {
	prompt := fmt.Sprintf(`Rewrite the following question about a professional profile so it retrieves better from a vector database.
Add synonyms and domain terms for the key concepts, keep the core meaning intact, and return only the rewritten question.

Question: %s

Rewritten question:`, question)

	out, err := t.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.3})
	if err != nil {
		t.logger.Warn("query_enhancement_failed", "error", err)
		return question, false
	}
	enhanced := firstNonEmptyLine(out)
	if enhanced == "" {
		return question, false
	}
	return enhanced, true
}

// StepBack generates a broader question that retrieves foundational
// context for the specific one.
func (t *QueryTransformer) StepBack(ctx context.Context, question string) (string, bool) {
	prompt := fmt.Sprintf(`Your task is to step back and paraphrase a question to a more generic step-back question, which is easier to answer.

Examples:
Question: Could the members of The Police perform lawful arrests?
Step-back question: what can the members of The Police do?
Question: Jan Sindel's was born in what country?
Step-back question: what is Jan Sindel's personal history?

Question: %s
Step-back question:`, question)

	out, err := t.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.3})
	if err != nil {
		t.logger.Warn("step_back_failed", "error", err)
		return question, false
	}
	stepBack := firstNonEmptyLine(out)
	if stepBack == "" {
		return question, false
	}
	return stepBack, true
}

// Decompose breaks a complex question into independent sub-questions.
// The stage only fires for questions IsComplexQuery accepts; on any
// failure the original question is the single variant.
func (t *QueryTransformer) Decompose(ctx context.Context, question string, maxSub int) ([]string, bool) {
	if maxSub <= 0 || !IsComplexQuery(question) {
		return []string{question}, false
	}

	prompt := fmt.Sprintf(`Break down the input question into a set of sub-problems / sub-questions that can be answered in isolation.
Return at most %d sub-questions, one per line, with no numbering or commentary.

Question: %s

Sub-questions:`, maxSub, question)

	out, err := t.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.3})
	if err != nil {
		t.logger.Warn("decomposition_failed", "error", err)
		return []string{question}, false
	}
	subs := parseQueryList(out, maxSub)
	if len(subs) == 0 {
		return []string{question}, false
	}
	return subs, true
}

// MultiQuery produces up to n alternative phrasings of the question.
func (t *QueryTransformer) MultiQuery(ctx context.Context, question string, n int) ([]string, bool) {
	if n <= 0 {
		return []string{question}, false
	}

	prompt := fmt.Sprintf(`Generate %d different versions of the given user question to retrieve relevant documents from a vector database.
By generating multiple perspectives on the user question, help overcome the limitations of distance-based similarity search.
Provide these alternative questions one per line with no numbering.

Original question: %s`, n, question)

	out, err := t.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.5})
	if err != nil {
		t.logger.Warn("multi_query_failed", "error", err)
		return []string{question}, false
	}
	variants := parseQueryList(out, n)
	if len(variants) == 0 {
		return []string{question}, false
	}
	return variants, true
}

// HypotheticalDocument writes an ideal-answer passage for the question,
// used as a pseudo-query for HyDE retrieval.
func (t *QueryTransformer) HypotheticalDocument(ctx context.Context, question string, temperature float64) (string, bool) {
	prompt := fmt.Sprintf(`Write a short passage that would perfectly answer the question below, as if it were an excerpt from a real professional profile.
Return only the passage.

Question: %s
Passage:`, question)

	out, err := t.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: temperature})
	if err != nil {
		t.logger.Warn("hyde_generation_failed", "error", err)
		return "", false
	}
	doc := strings.TrimSpace(out)
	if doc == "" {
		return "", false
	}
	return doc, true
}

var complexityKeywords = []string{
	" and ", " or ", " as well as ", " both ",
	"compare", "difference", "versus", " vs ",
	"while also", "in addition",
}

// IsComplexQuery reports whether a question is worth decomposing: it
// contains a conjunction or complexity keyword, exceeds 100 characters,
// or carries more than one terminal punctuation mark. The heuristic's
// accuracy is unverified; thresholds are kept as deployed.
func IsComplexQuery(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if len(question) > 100 {
		return true
	}
	terminals := strings.Count(question, "?") + strings.Count(question, "!") + strings.Count(question, ".")
	return terminals > 1
}

var listNumberingRE = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseQueryList splits model output into at most max trimmed,
// numbering-stripped, non-empty lines.
func parseQueryList(raw string, max int) []string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]string, 0, max)
	for _, line := range lines {
		line = listNumberingRE.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}

func firstNonEmptyLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
