package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/parsea-dev/parsea/internal/common"
)

// Sampling defaults. Classification needs deterministic output, so the
// temperature stays low; the token budget must cover a full extraction
// array for a multi-page statement.
const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4096
)

// Config holds configuration for the LLM classifier and its provider client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	CacheTTL    time.Duration
	RateLimit   int
}

// NewClient creates a raw completion client based on the provided
// configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}
