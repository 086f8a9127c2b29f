// Package llm provides the language model boundary for expense
// classification and statement extraction. It supports multiple providers
// (OpenAI and Anthropic), builds the prompts sent to them, and converts
// their unreliable free-text output into validated structured records via
// ordered fallback parsing strategies.
package llm
