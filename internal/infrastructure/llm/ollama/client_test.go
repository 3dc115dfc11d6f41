package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

func TestCompletionSendsOptions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  an answer  "}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil, nil)
	completion := NewCompletion(client)

	out, err := completion.Generate(context.Background(), "prompt text", domain.GenerationOptions{Temperature: 0.2, MaxTokens: 64})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "an answer" {
		t.Fatalf("expected trimmed response, got %q", out)
	}
	options, _ := captured["options"].(map[string]any)
	if options["temperature"] != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", options["temperature"])
	}
	if options["num_predict"] != float64(64) {
		t.Fatalf("expected num_predict 64, got %v", options["num_predict"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil, nil)
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 wrapped as temporary, got %v", err)
	}
}

func TestGenerateRateLimitWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil, nil)
	completion := NewCompletion(client)
	_, err := completion.Generate(context.Background(), "prompt", domain.GenerationOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate-limited kind, got %v", err)
	}
}

func TestClassifierParsesJSONObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"noise {\"category\":\"experience\",\"tags\":[\"backend\"],\"summary\":\"work history\"} trailing"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil, nil)
	classifier := NewClassifier(client)
	cls, err := classifier.Classify(context.Background(), "document text")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Category != "experience" || len(cls.Tags) != 1 || cls.Summary != "work history" {
		t.Fatalf("unexpected classification: %+v", cls)
	}
}
