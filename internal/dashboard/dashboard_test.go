package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwave/internal/config"
)

func get(t *testing.T, srv *httptest.Server, path string) (string, *http.Response) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp
}

func TestServesIndex(t *testing.T) {
	srv := httptest.NewServer(New("mac.local", 9001).Handler())
	defer srv.Close()

	body, resp := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "AirWave Dashboard")
	assert.Contains(t, body, `src="config.js"`)
}

func TestConfigJSGenerated(t *testing.T) {
	s := New("mac.local", 9001)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, resp := get(t, srv, "/config.js")
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `host: "mac.local"`)
	assert.Contains(t, body, "wsPort: 9001")

	s.SetBroker("other.local", 9002)
	body, _ = get(t, srv, "/config.js")
	assert.Contains(t, body, `host: "other.local"`)
	assert.Contains(t, body, "wsPort: 9002")
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New("mac.local", 0).Handler())
	defer srv.Close()

	body, resp := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestWebsocketFeed(t *testing.T) {
	s := New("mac.local", 9001)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The client map is updated under the upgrader; give it a beat.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Broadcast("home/gestures", []byte(`{"type":"SWIPE_UP"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev feedEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "home/gestures", ev.Topic)
	assert.JSONEq(t, `{"type":"SWIPE_UP"}`, string(ev.Payload))
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	s := New("mac.local", 9001)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()

	// Reader loop notices the close and removes the client.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 0
	}, time.Second, 10*time.Millisecond)

	s.Broadcast("home/mood", []byte(`{"mood":"calm"}`))
}

func TestWatchReloadsConfig(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)

	cfg := config.DefaultConfig()
	cfg.MQTTBroker = "first.local"
	require.NoError(t, cfg.Save(path))

	s := New("first.local", 9001)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() { watchDone <- s.Watch(ctx, path) }()

	// Let the watcher install before writing.
	time.Sleep(100 * time.Millisecond)

	cfg.MQTTBroker = "second.local"
	require.NoError(t, cfg.Save(path))

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.broker == "second.local"
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-watchDone)
}
