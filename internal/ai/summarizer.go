package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultSystemPrompt instructs the model how to summarize a briefing
const DefaultSystemPrompt = `You are an aeronautical information assistant preparing a pilot briefing.
Summarize the airport briefing you are given in at most five short sentences.
Lead with closures and unserviceable equipment affecting runways, then approach aids,
then obstacles and airspace. Quote NOTAM ids in parentheses. Do not invent information
that is not in the briefing. Use plain text without markdown.`

// ErrEmptySummary is returned when the model produced no text
var ErrEmptySummary = errors.New("model returned an empty summary")

// ChatSummarizer implements Summarizer on top of any ChatProvider
type ChatSummarizer struct {
	provider     ChatProvider
	config       ChatConfig
	systemPrompt string
}

// NewChatSummarizer creates a summarizer. An empty prompt selects DefaultSystemPrompt.
func NewChatSummarizer(provider ChatProvider, config ChatConfig, systemPrompt string) *ChatSummarizer {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	return &ChatSummarizer{provider: provider, config: config, systemPrompt: systemPrompt}
}

// LoadSystemPrompt reads a prompt file, returning "" for an empty path
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file '%s': %w", path, err)
	}
	return string(data), nil
}

// Summarize implements Summarizer
func (s *ChatSummarizer) Summarize(ctx context.Context, airport, briefing string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Briefing for %s:\n\n%s", airport, briefing)},
	}
	text, err := s.provider.ChatCompletion(ctx, messages, s.config)
	if err != nil {
		return "", fmt.Errorf("summary for %s failed: %w", airport, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}
