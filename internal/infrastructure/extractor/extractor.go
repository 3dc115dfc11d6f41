// Package extractor routes a stored document to the text extractor
// matching its media type.
package extractor

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

type Selector struct {
	plaintext   ports.TextExtractor
	pdf         ports.TextExtractor
	spreadsheet ports.TextExtractor
}

func NewSelector(plaintext, pdf, spreadsheet ports.TextExtractor) *Selector {
	return &Selector{plaintext: plaintext, pdf: pdf, spreadsheet: spreadsheet}
}

func (s *Selector) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	switch mediaType(doc) {
	case "application/pdf":
		return s.pdf.Extract(ctx, doc)
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return s.spreadsheet.Extract(ctx, doc)
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return s.plaintext.Extract(ctx, doc)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "select extractor",
			fmt.Errorf("unsupported media type %q for %s", doc.MimeType, doc.Filename))
	}
}

func mediaType(doc *domain.Document) string {
	if doc.MimeType != "" {
		if parsed, _, err := mime.ParseMediaType(doc.MimeType); err == nil {
			return parsed
		}
	}
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}
