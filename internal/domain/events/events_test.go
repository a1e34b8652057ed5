package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/domain/session"
	"jewelfinder-go/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestBus_SessionFanout(t *testing.T) {
	bus := NewBus(testLogger(t))

	var mu sync.Mutex
	var got []session.Snapshot
	handler := func(snap session.Snapshot) {
		mu.Lock()
		got = append(got, snap)
		mu.Unlock()
	}
	require.NoError(t, bus.SubscribeSession(handler))

	bus.PublishSession(session.Snapshot{ID: "s1", Phase: session.PhasePending})
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestBus_TranscriptFanoutAndUnsubscribe(t *testing.T) {
	bus := NewBus(testLogger(t))

	var mu sync.Mutex
	count := 0
	handler := func(TranscriptEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	require.NoError(t, bus.SubscribeTranscript(handler))

	bus.PublishTranscript(TranscriptEvent{SessionID: "s1", Text: "gold"})
	bus.WaitAsync()

	bus.UnsubscribeTranscript(handler)
	bus.PublishTranscript(TranscriptEvent{SessionID: "s1", Text: "gold ring", Final: true})
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}
