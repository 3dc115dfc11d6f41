package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
)

// AnswerComposer turns the filtered context set into a single
// first-person answer with one completion call.
type AnswerComposer struct {
	completions ports.CompletionService
	persona     string
	logger      *slog.Logger
}

func NewAnswerComposer(completions ports.CompletionService, persona string, logger *slog.Logger) *AnswerComposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerComposer{completions: completions, persona: persona, logger: logger}
}

// BuildContext renders the candidates as labeled source blocks. When
// annotate is set each block also names its category and tags so the
// model can lean on the document taxonomy.
func BuildContext(candidates []domain.FusedCandidate, annotate bool) string {
	var b strings.Builder
	for i, candidate := range candidates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d: %s]", i+1, candidate.Title)
		if annotate {
			if candidate.Category != "" {
				fmt.Fprintf(&b, " (category: %s", candidate.Category)
				if len(candidate.Tags) > 0 {
					fmt.Fprintf(&b, ", tags: %s", strings.Join(candidate.Tags, ", "))
				}
				b.WriteString(")")
			} else if len(candidate.Tags) > 0 {
				fmt.Fprintf(&b, " (tags: %s)", strings.Join(candidate.Tags, ", "))
			}
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(candidate.Content))
	}
	return b.String()
}

// Compose asks the model to answer the question in the configured
// persona using only the supplied context. The raw reply is cleaned of
// the preamble and markdown artifacts models tend to emit.
func (c *AnswerComposer) Compose(ctx context.Context, question, contextBlock string, styleFormatting bool) (string, error) {
	style := "Answer in plain flowing prose without markdown formatting, headers or bullet lists."
	if styleFormatting {
		style = "Answer in a natural conversational first-person voice, as if speaking in an interview. No markdown, no bullet lists, no headers."
	}

	prompt := fmt.Sprintf(`%s

Use only the information in the context below to answer the question. Speak in the first person. Never mention the context, the sources, or that you were given any documents. If the context does not contain the answer, say you do not have that information.
%s

Context:
%s

Question: %s

Answer:`, c.persona, style, contextBlock, question)

	raw, err := c.completions.Generate(ctx, prompt, domain.GenerationOptions{Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}

	answer := cleanAnswer(raw)
	if answer == "" {
		return "", domain.WrapError(domain.ErrMalformedOutput, "compose answer", errors.New("empty answer after cleanup"))
	}
	return answer, nil
}

var boilerplatePrefixes = []string{
	"answer:",
	"sure,",
	"sure!",
	"certainly,",
	"certainly!",
	"here is the answer:",
	"here's the answer:",
	"based on the context provided,",
	"based on the provided context,",
	"based on the context,",
	"according to the context,",
}

// cleanAnswer strips the chat preamble a model tends to prepend and
// de-markdowns the body.
func cleanAnswer(raw string) string {
	answer := strings.TrimSpace(raw)

	changed := true
	for changed {
		changed = false
		lower := strings.ToLower(answer)
		for _, prefix := range boilerplatePrefixes {
			if strings.HasPrefix(lower, prefix) {
				answer = strings.TrimSpace(answer[len(prefix):])
				changed = true
				break
			}
		}
	}

	answer = strings.ReplaceAll(answer, "**", "")
	answer = strings.ReplaceAll(answer, "__", "")

	var lines []string
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		lines = append(lines, trimmed)
	}
	answer = strings.TrimSpace(strings.Join(lines, "\n"))

	if answer != "" {
		runes := []rune(answer)
		runes[0] = unicode.ToUpper(runes[0])
		answer = string(runes)
	}
	return answer
}
