package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

// RetrievalLimits bound a single gateway call and the variant fan-out.
type RetrievalLimits struct {
	CallTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	Concurrency    int
}

func (l RetrievalLimits) normalize() RetrievalLimits {
	out := l
	if out.CallTimeout <= 0 {
		out.CallTimeout = 10 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = 200 * time.Millisecond
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 4
	}
	return out
}

// RetrievalGateway performs one similarity search per query variant:
// embed, search, sort descending. Transient failures (wrapped as
// domain.ErrTemporary by the adapters) are retried with exponential
// backoff; anything else propagates immediately.
type RetrievalGateway struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher
	limits   RetrievalLimits
	logger   *slog.Logger
}

func NewRetrievalGateway(
	embedder ports.Embedder,
	searcher ports.VectorSearcher,
	limits RetrievalLimits,
	logger *slog.Logger,
) *RetrievalGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalGateway{
		embedder: embedder,
		searcher: searcher,
		limits:   limits.normalize(),
		logger:   logger,
	}
}

// Search returns candidates for queryText sorted by vector score
// descending.
func (g *RetrievalGateway) Search(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = 8
	}

	var candidates []domain.Candidate
	attempt := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.limits.CallTimeout)
		defer cancel()

		vector, err := g.embedder.EmbedQuery(callCtx, queryText)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		candidates, err = g.searcher.Search(callCtx, vector, topK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	}

	backoff := g.limits.InitialBackoff
	var lastErr error
	for i := 1; i <= g.limits.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			sort.SliceStable(candidates, func(a, b int) bool {
				return candidates[a].VectorScore > candidates[b].VectorScore
			})
			return candidates, nil
		}
		if !domain.IsKind(lastErr, domain.ErrTemporary) || i == g.limits.MaxAttempts {
			return nil, lastErr
		}

		g.logger.Warn("retrieval_retry",
			"attempt", i,
			"max_attempts", g.limits.MaxAttempts,
			"backoff_ms", backoff.Milliseconds(),
			"error", lastErr,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

// SearchAll fans retrieval out across the variants under the gateway's
// worker cap. Results join wait-all: a failed variant contributes an
// empty list instead of aborting the stage, and nothing is shared across
// the in-flight calls except the pre-sized result slice.
func (g *RetrievalGateway) SearchAll(ctx context.Context, variants []domain.TransformedQuery, topK int) [][]domain.Candidate {
	results := make([][]domain.Candidate, len(variants))
	sem := semaphore.NewWeighted(int64(g.limits.Concurrency))

	var wg sync.WaitGroup
	for i, variant := range variants {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, query domain.TransformedQuery) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("variant_retrieval_panic", "panic", r, "order", query.Order)
				}
			}()

			candidates, err := g.Search(ctx, query.Text, topK)
			if err != nil {
				g.logger.Warn("variant_retrieval_failed",
					"technique", query.Technique,
					"order", query.Order,
					"error", err,
				)
				return
			}
			results[idx] = candidates
		}(i, variant)
	}
	wg.Wait()
	return results
}
