// Package ai defines the language-model collaborators used for briefing summaries.
package ai

import "context"

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// ChatConfig holds configuration for chat completions
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatProvider defines the interface for text-to-text chat completions
type ChatProvider interface {
	// ChatCompletion sends a conversation to the LLM and returns the text response
	ChatCompletion(ctx context.Context, messages []ChatMessage, config ChatConfig) (string, error)
}

// Summarizer condenses a rendered airport briefing into a few sentences
type Summarizer interface {
	Summarize(ctx context.Context, airport, briefing string) (string, error)
}
