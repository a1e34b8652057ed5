package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/domain/events"
	"jewelfinder-go/internal/domain/session"
	"jewelfinder-go/internal/platform/logging"
)

// SessionHandler mirrors session transitions and voice transcripts to the
// browser: it subscribes to the event bus for the lifetime of the socket so
// state changes triggered over any transport reach every connected UI.
type SessionHandler struct {
	svc    *app.Service
	logger *logging.Logger
}

func NewSessionHandler(svc *app.Service, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &SessionHandler{svc: svc, logger: logger}
}

func (h *SessionHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnTag("WS", "session mirror upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg serverMessage) {
		payload, err := sonic.Marshal(msg)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	onSession := func(snap session.Snapshot) {
		send(serverMessage{Type: "session", Data: snap})
	}
	onTranscript := func(event events.TranscriptEvent) {
		send(serverMessage{Type: "transcript", Text: event.Text, Data: event})
	}

	bus := h.svc.Bus()
	if err := bus.SubscribeSession(onSession); err != nil {
		h.logger.WarnTag("WS", "session subscribe failed: %v", err)
		return
	}
	defer bus.UnsubscribeSession(onSession)
	if err := bus.SubscribeTranscript(onTranscript); err != nil {
		h.logger.WarnTag("WS", "transcript subscribe failed: %v", err)
		return
	}
	defer bus.UnsubscribeTranscript(onTranscript)

	// current state first so a late joiner is not blank until the next change
	send(serverMessage{Type: "session", Data: h.svc.Snapshot()})
	h.logger.InfoTag("WS", "session mirror opened from %s", c.ClientIP())

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the mirror is one-way; the read loop only notices the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
