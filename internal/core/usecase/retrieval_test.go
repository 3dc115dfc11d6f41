package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

func testLimits() RetrievalLimits {
	return RetrievalLimits{
		CallTimeout:    time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Concurrency:    2,
	}
}

func TestSearchSortsDescending(t *testing.T) {
	searcher := &fakeSearcher{
		search: func(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
			return []domain.Candidate{
				candidate("low", 0.2),
				candidate("high", 0.9),
				candidate("mid", 0.5),
			}, nil
		},
	}
	gateway := NewRetrievalGateway(&fakeEmbedder{}, searcher, testLimits(), testLogger())

	out, err := gateway.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ID != "high" || out[1].ID != "mid" || out[2].ID != "low" {
		t.Fatalf("expected descending score order, got [%s %s %s]", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestSearchRetriesTransientErrors(t *testing.T) {
	var calls int
	searcher := &fakeSearcher{
		search: func(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
			calls++
			if calls < 3 {
				return nil, domain.WrapError(domain.ErrTemporary, "search", errors.New("connection reset"))
			}
			return []domain.Candidate{candidate("a", 0.8)}, nil
		},
	}
	gateway := NewRetrievalGateway(&fakeEmbedder{}, searcher, testLimits(), testLogger())

	out, err := gateway.Search(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestSearchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	searcher := &fakeSearcher{
		search: func(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
			calls++
			return nil, domain.WrapError(domain.ErrTemporary, "search", errors.New("timeout"))
		},
	}
	gateway := NewRetrievalGateway(&fakeEmbedder{}, searcher, testLimits(), testLogger())

	if _, err := gateway.Search(context.Background(), "query", 1); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestSearchDoesNotRetryNonTransientErrors(t *testing.T) {
	var calls int
	searcher := &fakeSearcher{
		search: func(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
			calls++
			return nil, errors.New("collection missing")
		},
	}
	gateway := NewRetrievalGateway(&fakeEmbedder{}, searcher, testLimits(), testLogger())

	if _, err := gateway.Search(context.Background(), "query", 1); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestSearchAllFailedVariantYieldsEmptyList(t *testing.T) {
	searcher := &fakeSearcher{
		search: func(_ context.Context, vector []float32, _ int) ([]domain.Candidate, error) {
			if vector[0] == 0 {
				return nil, errors.New("broken variant")
			}
			return []domain.Candidate{candidate("ok", 0.7)}, nil
		},
	}
	embedder := &fakeEmbedder{
		embedQuery: func(_ context.Context, text string) ([]float32, error) {
			if text == "bad" {
				return []float32{0}, nil
			}
			return []float32{1}, nil
		},
	}
	gateway := NewRetrievalGateway(embedder, searcher, testLimits(), testLogger())

	variants := []domain.TransformedQuery{
		{Text: "good", Order: 0},
		{Text: "bad", Order: 1},
		{Text: "good too", Order: 2},
	}
	lists := gateway.SearchAll(context.Background(), variants, 1)
	if len(lists) != 3 {
		t.Fatalf("expected one list per variant, got %d", len(lists))
	}
	if len(lists[0]) != 1 || len(lists[2]) != 1 {
		t.Fatal("expected successful variants to return candidates")
	}
	if len(lists[1]) != 0 {
		t.Fatalf("expected failed variant to contribute an empty list, got %d", len(lists[1]))
	}
}

func TestSearchAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{
		search: func(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
			return []domain.Candidate{candidate("a", 0.5)}, nil
		},
	}
	gateway := NewRetrievalGateway(&fakeEmbedder{}, searcher, testLimits(), testLogger())

	lists := gateway.SearchAll(ctx, []domain.TransformedQuery{{Text: "q"}}, 1)
	if len(lists) != 1 || len(lists[0]) != 0 {
		t.Fatalf("expected no results under a canceled context, got %+v", lists)
	}
}
