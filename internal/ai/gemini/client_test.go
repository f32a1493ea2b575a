package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/internal/ai"
	"github.com/yegors/co-notam/pkg/logger"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", logger.NewNop())
	assert.Error(t, err)
}

func TestChatCompletion(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"RWY 09L/27R closed."}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "test-key", logger.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := c.ChatCompletion(context.Background(), []ai.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "RWY 09L/27R CLSD"},
	}, ai.ChatConfig{Temperature: 0.2, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "RWY 09L/27R closed.", out)

	assert.True(t, strings.HasSuffix(path, "models/"+DefaultModel+":generateContent"), path)
	assert.Contains(t, body, "systemInstruction")
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

func TestChatCompletionNeedsUserMessage(t *testing.T) {
	c, err := NewClient(context.Background(), "test-key", logger.NewNop(), WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	_, err = c.ChatCompletion(context.Background(), []ai.ChatMessage{{Role: "system", Content: "x"}}, ai.ChatConfig{})
	assert.Error(t, err)
}
