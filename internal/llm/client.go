package llm

import (
	"context"
	"strings"
)

// Client defines the minimal interface for LLM providers: one text
// completion per call. The response is opaque and untrusted; it may contain
// explanatory prose, truncated JSON, or multiple candidate objects, and is
// always routed through the response parser.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// cleanMarkdownWrapper strips markdown code fences that some models wrap
// around JSON despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
