package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/platform/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Control frames from the browser. Audio arrives as binary frames between
// start and stop.
type controlMessage struct {
	Type string `json:"type"`
	MIME string `json:"mime,omitempty"`
}

type serverMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// VoiceHandler streams microphone audio over a websocket: binary frames are
// buffered and fed to the live recognizer, interim transcripts flow back,
// and stop triggers the authoritative transcription plus the text search.
type VoiceHandler struct {
	svc    *app.Service
	logger *logging.Logger
}

func NewVoiceHandler(svc *app.Service, logger *logging.Logger) *VoiceHandler {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &VoiceHandler{svc: svc, logger: logger}
}

func (h *VoiceHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnTag("WS", "upgrade failed: %v", err)
		return
	}

	// microphone released whatever way the socket dies
	defer func() {
		h.svc.CancelVoice()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var writeMu sync.Mutex
	send := func(msg serverMessage) {
		payload, err := sonic.Marshal(msg)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.DebugTag("WS", "write failed: %v", err)
		}
	}

	h.logger.InfoTag("WS", "voice channel opened from %s", c.ClientIP())

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.DebugTag("WS", "voice channel dropped: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.BinaryMessage:
			interim, err := h.svc.PushVoice(c.Request.Context(), payload)
			if err != nil {
				send(serverMessage{Type: "error", Error: err.Error()})
				continue
			}
			if interim != "" {
				send(serverMessage{Type: "interim", Text: interim})
			}

		case websocket.TextMessage:
			var ctrl controlMessage
			if err := sonic.Unmarshal(payload, &ctrl); err != nil {
				send(serverMessage{Type: "error", Error: "bad control frame"})
				continue
			}
			if done := h.handleControl(c, ctrl, send); done {
				return
			}
		}
	}
}

// handleControl executes one control frame. Returns true when the channel
// should close.
func (h *VoiceHandler) handleControl(c *gin.Context, ctrl controlMessage,
	send func(serverMessage)) bool {
	switch ctrl.Type {
	case "start":
		if err := h.svc.StartVoice(ctrl.MIME); err != nil {
			send(serverMessage{Type: "error", Error: err.Error()})
			return false
		}
		send(serverMessage{Type: "started"})

	case "restart":
		if err := h.svc.RestartVoice(); err != nil {
			send(serverMessage{Type: "error", Error: err.Error()})
			return false
		}
		send(serverMessage{Type: "started"})

	case "stop":
		snap, text, err := h.svc.StopVoice(c.Request.Context())
		if err != nil {
			send(serverMessage{Type: "error", Error: err.Error()})
			return true
		}
		send(serverMessage{Type: "final", Text: text})
		send(serverMessage{Type: "result", Data: snap})
		return true

	case "cancel":
		h.svc.CancelVoice()
		send(serverMessage{Type: "cancelled"})
		return true

	default:
		send(serverMessage{Type: "error", Error: "unknown control type"})
	}
	return false
}
