package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/pkg/logger"
)

func startHub(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, MessageTypeWelcome, welcome.Type)
	return conn
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesClients(t *testing.T) {
	s, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, s, 1)

	s.Broadcast(&Message{Type: MessageTypeNotamsUpdated, Data: map[string]any{"count": 3, "airports": []string{"EGLL"}}})

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MessageTypeNotamsUpdated, got.Type)
	assert.Equal(t, 3.0, got.Data["count"])
}

func TestFilterUpdateLimitsAirports(t *testing.T) {
	s, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeFilterUpdate, Data: map[string]any{"airports": []string{"egkk"}}}))
	require.Eventually(t, func() bool {
		for c := range snapshotClients(s) {
			if f := c.GetFilters(); f != nil && f.Airports["EGKK"] {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	s.Broadcast(&Message{Type: MessageTypeNotamsUpdated, Data: map[string]any{"airports": []string{"EGLL"}}})
	s.Broadcast(&Message{Type: MessageTypeNotamsUpdated, Data: map[string]any{"airports": []string{"EGLL", "EGKK"}, "count": 2}})

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 2.0, got.Data["count"], "EGLL-only update is filtered out")
}

func TestClientDisconnectUnregisters(t *testing.T) {
	s, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, s, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, s, 0)
}

func TestMatchesAirportsWithoutFilters(t *testing.T) {
	c := &Client{}
	assert.True(t, c.MatchesAirports([]string{"LFPG"}))

	c.UpdateFilters(parseFilters(map[string]any{"airports": []any{" lfpg ", 7}}))
	assert.True(t, c.MatchesAirports([]string{"lfpg"}))
	assert.False(t, c.MatchesAirports([]string{"EGLL"}))
}

func snapshotClients(s *Server) map[*Client]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[*Client]bool, len(s.clients))
	for c := range s.clients {
		out[c] = true
	}
	return out
}
