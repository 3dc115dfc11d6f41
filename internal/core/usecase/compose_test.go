package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

func TestBuildContextLabelsSources(t *testing.T) {
	candidates := []domain.FusedCandidate{
		{Candidate: domain.Candidate{ID: "1", Title: "Work History", Content: "Led a platform team.", Category: "experience", Tags: []string{"leadership", "backend"}}},
		{Candidate: domain.Candidate{ID: "2", Title: "Education", Content: "Studied computer science."}},
	}

	block := BuildContext(candidates, true)
	if !strings.Contains(block, "[Source 1: Work History] (category: experience, tags: leadership, backend)") {
		t.Fatalf("missing annotated label for first source:\n%s", block)
	}
	if !strings.Contains(block, "[Source 2: Education]") {
		t.Fatalf("missing label for second source:\n%s", block)
	}
	if !strings.Contains(block, "Led a platform team.") {
		t.Fatalf("missing content:\n%s", block)
	}

	plain := BuildContext(candidates, false)
	if strings.Contains(plain, "category:") {
		t.Fatalf("unannotated context must not include taxonomy:\n%s", plain)
	}
}

func TestComposeStripsBoilerplateAndMarkdown(t *testing.T) {
	completions := &fakeCompletion{
		generate: func(_ context.Context, _ string, _ domain.GenerationOptions) (string, error) {
			return "Sure, here is the answer: based on the context, **I led** a team of five engineers.", nil
		},
	}
	composer := NewAnswerComposer(completions, "I am Tylor, a software developer.", testLogger())

	answer, err := composer.Compose(context.Background(), "Did you lead a team?", "ctx", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "I led a team of five engineers." {
		t.Fatalf("unexpected cleaned answer: %q", answer)
	}
}

func TestComposePropagatesCompletionFailure(t *testing.T) {
	completions := &fakeCompletion{
		generate: func(_ context.Context, _ string, _ domain.GenerationOptions) (string, error) {
			return "", errors.New("model down")
		},
	}
	composer := NewAnswerComposer(completions, "persona", testLogger())

	if _, err := composer.Compose(context.Background(), "q", "ctx", false); err == nil {
		t.Fatal("expected error when the completion call fails")
	}
}

func TestCleanAnswerHandlesHeadersAndEmpty(t *testing.T) {
	cleaned := cleanAnswer("## My Experience\nI build services in Go.")
	if cleaned != "My Experience\nI build services in Go." {
		t.Fatalf("unexpected header handling: %q", cleaned)
	}
	if cleanAnswer("   \n\t") != "" {
		t.Fatal("whitespace-only output must clean to empty")
	}
}
