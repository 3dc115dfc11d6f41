package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/profile-rag-service/internal/config"
	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

type ingestErrFake struct {
	err error
}

func (f ingestErrFake) Upload(context.Context, string, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

type processorFake struct {
	result  *domain.RAGResult
	lastCfg domain.PipelineConfig
	calls   int
}

func (f *processorFake) ProcessQuery(_ context.Context, question string, cfg domain.PipelineConfig) *domain.RAGResult {
	f.calls++
	f.lastCfg = cfg
	if f.result != nil {
		return f.result
	}
	return &domain.RAGResult{
		Answer: "ok",
		Metadata: domain.ResultMetadata{
			OriginalQuery:     question,
			FaithfulnessScore: 1.0,
		},
	}
}

type docsErrFake struct {
	err error
}

func (f docsErrFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Title: "a", Filename: "a", MimeType: "text/plain", StoragePath: "a", Status: domain.StatusReady}, nil
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&processorFake{},
		ingestErrFake{},
		docsErrFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
		nil,
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadDocumentMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&processorFake{},
		ingestErrFake{err: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))},
		docsErrFake{},
		nil,
		nil,
	).Handler()

	body, contentType := multipartFileBody(t, "file.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryReturns500WhenPipelineFails(t *testing.T) {
	processor := &processorFake{result: &domain.RAGResult{
		Answer: "the query could not be processed",
		Err:    "pipeline panic",
	}}
	handler := NewRouter(config.Config{}, processor, ingestErrFake{}, docsErrFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]any{"question": "what happened?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/profile/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}

	var result domain.RAGResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected error detail in response body")
	}
}
