package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

// ClaimVerifier revises a composed answer against its context and
// scores how well the result is grounded in it.
type ClaimVerifier struct {
	completions ports.CompletionService
	logger      *slog.Logger
}

func NewClaimVerifier(completions ports.CompletionService, logger *slog.Logger) *ClaimVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimVerifier{completions: completions, logger: logger}
}

var leakIndicators = []string{
	"based on the provided context",
	"based on the context",
	"the context states",
	"the context does not",
	"according to the context",
	"the provided documents",
	"the sources provided",
	"as an ai",
}

// Verify asks the model to drop claims the context does not support
// and reports a stability score: the token overlap between the answer
// before and after revision, so an untouched answer scores 1.0 and a
// heavy rewrite scores low. If the revision leaks meta language about
// the checking process it is discarded and the original answer is kept
// with a slightly discounted score. Verification failures fall back to
// the original answer so this stage can only refine, never lose, a
// composed reply.
func (v *ClaimVerifier) Verify(ctx context.Context, answer, contextBlock string) (string, float64) {
	prompt := fmt.Sprintf(`Review the answer below against the reference text. Remove or soften any claim the reference text does not support, keeping the same first-person voice. Do not add new information and do not mention the reference text. Return only the revised answer.

Reference text:
%s

Answer:
%s

Revised answer:`, contextBlock, answer)

	raw, err := v.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.0})
	if err != nil {
		v.logger.Warn("claim_verification_failed", "error", err)
		return answer, 1.0
	}

	revised := cleanAnswer(raw)
	if revised == "" {
		return answer, 1.0
	}
	if containsLeak(revised) {
		return answer, 0.9
	}
	return revised, faithfulnessScore(answer, revised)
}

func containsLeak(answer string) bool {
	lower := strings.ToLower(answer)
	for _, indicator := range leakIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// faithfulnessScore measures how much the revision changed the answer
// as the token-Jaccard similarity of the two texts. It is a stability
// proxy rather than direct grounding against the sources.
func faithfulnessScore(before, after string) float64 {
	if before == after {
		return 1.0
	}
	return tokenJaccard(contentTokens(before), contentTokens(after))
}
