package events

import (
	"github.com/asaskevich/EventBus"

	"jewelfinder-go/internal/domain/session"
	"jewelfinder-go/internal/platform/logging"
)

// Topics published on the bus.
const (
	TopicSessionUpdated  = "session.updated"
	TopicVoiceTranscript = "voice.transcript"
)

// TranscriptEvent announces transcript progress from a voice capture.
type TranscriptEvent struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
}

// Bus fans session and voice updates out to interested transports. The
// websocket layer subscribes to mirror state changes to the browser.
type Bus struct {
	bus    EventBus.Bus
	logger *logging.Logger
}

func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Bus{bus: EventBus.New(), logger: logger}
}

func (b *Bus) PublishSession(snap session.Snapshot) {
	b.bus.Publish(TopicSessionUpdated, snap)
}

func (b *Bus) PublishTranscript(event TranscriptEvent) {
	b.bus.Publish(TopicVoiceTranscript, event)
}

func (b *Bus) SubscribeSession(fn func(session.Snapshot)) error {
	return b.bus.SubscribeAsync(TopicSessionUpdated, fn, false)
}

func (b *Bus) UnsubscribeSession(fn func(session.Snapshot)) {
	if err := b.bus.Unsubscribe(TopicSessionUpdated, fn); err != nil {
		b.logger.DebugTag("SESSION", "unsubscribe: %v", err)
	}
}

func (b *Bus) SubscribeTranscript(fn func(TranscriptEvent)) error {
	return b.bus.SubscribeAsync(TopicVoiceTranscript, fn, false)
}

func (b *Bus) UnsubscribeTranscript(fn func(TranscriptEvent)) {
	if err := b.bus.Unsubscribe(TopicVoiceTranscript, fn); err != nil {
		b.logger.DebugTag("VOICE", "unsubscribe: %v", err)
	}
}

// WaitAsync blocks until queued async callbacks have drained. Used on
// shutdown and in tests.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
