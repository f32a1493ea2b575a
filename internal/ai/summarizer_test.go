package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply    string
	err      error
	messages []ChatMessage
	config   ChatConfig
}

func (f *fakeProvider) ChatCompletion(_ context.Context, messages []ChatMessage, config ChatConfig) (string, error) {
	f.messages = messages
	f.config = config
	return f.reply, f.err
}

func TestChatSummarizer(t *testing.T) {
	p := &fakeProvider{reply: "  RWY 09L/27R closed (A1234/24).\n"}
	s := NewChatSummarizer(p, ChatConfig{Model: "gemini-2.5-flash"}, "")

	out, err := s.Summarize(context.Background(), "EGLL", "RWY 09L/27R CLSD")
	require.NoError(t, err)
	assert.Equal(t, "RWY 09L/27R closed (A1234/24).", out)

	require.Len(t, p.messages, 2)
	assert.Equal(t, "system", p.messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, p.messages[0].Content)
	assert.Contains(t, p.messages[1].Content, "Briefing for EGLL")
	assert.Equal(t, 512, p.config.MaxTokens)
	assert.InDelta(t, 0.2, p.config.Temperature, 1e-9)
}

func TestChatSummarizerErrors(t *testing.T) {
	s := NewChatSummarizer(&fakeProvider{reply: "   "}, ChatConfig{}, "custom")
	_, err := s.Summarize(context.Background(), "EGLL", "x")
	assert.ErrorIs(t, err, ErrEmptySummary)

	boom := errors.New("quota exceeded")
	s = NewChatSummarizer(&fakeProvider{err: boom}, ChatConfig{}, "")
	_, err = s.Summarize(context.Background(), "EGLL", "x")
	assert.ErrorIs(t, err, boom)
}

func TestLoadSystemPrompt(t *testing.T) {
	prompt, err := LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Empty(t, prompt)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("be brief"), 0o644))
	prompt, err = LoadSystemPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "be brief", prompt)

	_, err = LoadSystemPrompt(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
