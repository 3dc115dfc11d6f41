package ports

import (
	"context"
	"io"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

// QueryProcessor is the sole contract exposed to callers of the
// retrieval pipeline. It never returns an error: failures terminate in a
// RAGResult with Err populated.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, question string, cfg domain.PipelineConfig) *domain.RAGResult
}

// DocumentIngestor is the inbound contract for profile document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, title, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
