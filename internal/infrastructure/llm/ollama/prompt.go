package ollama

func buildClassificationPrompt(text string) string {
	const maxSnippet = 4000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You are a profile document classifier.
Return strict JSON object with keys:
category (string, one of: experience, education, skills, projects, personal, other), tags (array of strings), summary (string, one sentence).
No markdown, no extra keys.

Document:
` + snippet
}
