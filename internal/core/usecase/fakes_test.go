package usecase

import (
	"context"
	"io"
	"log/slog"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompletion struct {
	generate func(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error)
}

func (f *fakeCompletion) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	return f.generate(ctx, prompt, opts)
}

type fakeEmbedder struct {
	embed      func(ctx context.Context, texts []string) ([][]float32, error)
	embedQuery func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embed(ctx, texts)
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.embedQuery != nil {
		return f.embedQuery(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

type fakeSearcher struct {
	index  func(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	search func(ctx context.Context, queryVector []float32, topK int) ([]domain.Candidate, error)
}

func (f *fakeSearcher) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	return f.index(ctx, doc, chunks, vectors)
}

func (f *fakeSearcher) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.Candidate, error) {
	return f.search(ctx, queryVector, topK)
}
