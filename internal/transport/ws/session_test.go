package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/domain/dispatch"
	"jewelfinder-go/internal/platform/config"
)

func newMirrorServer(t *testing.T, upstream http.HandlerFunc) (*app.Service, string) {
	t.Helper()
	collaborator := httptest.NewServer(upstream)
	t.Cleanup(collaborator.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = collaborator.URL
	logger := testLogger(t)

	svc := app.NewService(app.Deps{
		Config: cfg,
		Logger: logger,
		Dispatcher: dispatch.NewClient(dispatch.ClientOptions{
			BaseURL: collaborator.URL,
			Timeout: 5 * time.Second,
			Logger:  logger,
		}),
	})
	t.Cleanup(func() { _ = svc.Close() })

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws/session", NewSessionHandler(svc, logger).Handle)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return svc, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/session"
}

// readUntil scans mirror frames until match says stop. Fan-out is async so
// frame order between transitions is not guaranteed.
func readUntil(t *testing.T, conn *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg serverMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		if match(msg) {
			return msg
		}
	}
	t.Fatal("expected frame never arrived")
	return serverMessage{}
}

func snapshotPhase(msg serverMessage) string {
	data, ok := msg.Data.(map[string]any)
	if !ok {
		return ""
	}
	phase, _ := data["phase"].(string)
	return phase
}

func TestSessionMirror_SendsCurrentStateOnConnect(t *testing.T) {
	_, url := newMirrorServer(t, func(w http.ResponseWriter, r *http.Request) {})
	conn := dialVoice(t, url)

	msg := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "session" })
	assert.Equal(t, "idle", snapshotPhase(msg))
}

func TestSessionMirror_PushesSearchTransitions(t *testing.T) {
	svc, url := newMirrorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "a", "image_path": "/a.jpg"}]`))
	})
	conn := dialVoice(t, url)

	// initial state frame
	readUntil(t, conn, func(m serverMessage) bool { return m.Type == "session" })

	_, err := svc.SearchText(context.Background(), "gold ring")
	require.NoError(t, err)

	msg := readUntil(t, conn, func(m serverMessage) bool {
		return m.Type == "session" && snapshotPhase(m) == "results"
	})
	data := msg.Data.(map[string]any)
	assert.Equal(t, "gold ring", data["query"])
}

func TestSessionMirror_ForwardsFinalTranscript(t *testing.T) {
	svc, url := newMirrorServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/voice/transcribe":
			w.Write([]byte(`{"text": "ruby earrings"}`))
		case "/search/text":
			w.Write([]byte(`[]`))
		}
	})
	conn := dialVoice(t, url)
	readUntil(t, conn, func(m serverMessage) bool { return m.Type == "session" })

	require.NoError(t, svc.StartVoice("audio/webm"))
	_, err := svc.PushVoice(context.Background(), []byte("chunk"))
	require.NoError(t, err)
	_, _, err = svc.StopVoice(context.Background())
	require.NoError(t, err)

	msg := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "transcript" })
	assert.Equal(t, "ruby earrings", msg.Text)
}
