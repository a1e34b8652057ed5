package capture

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// Transcriber converts a complete recording into text. The dispatcher's
// remote endpoint is the authoritative implementation.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.Asset) (string, error)
}

// LiveRecognizer produces incremental transcripts while audio is still
// streaming in. It is optional; without one the session only has the
// remote path.
type LiveRecognizer interface {
	Feed(ctx context.Context, chunk []byte) (string, error)
	Close() error
}

// RecognizerFactory builds a live recognizer for one recording. A factory
// may return (nil, nil) when no live facility is configured.
type RecognizerFactory func() (LiveRecognizer, error)

// VoiceState tracks where a recording session is in its lifecycle.
type VoiceState string

const (
	VoiceIdle         VoiceState = "idle"
	VoiceRecording    VoiceState = "recording"
	VoiceTranscribing VoiceState = "transcribing"
	VoiceDone         VoiceState = "done"
	VoiceFailed       VoiceState = "failed"
)

// VoiceSession owns one microphone capture. The remote transcription of the
// full recording is authoritative; the incremental local transcript stands
// in only when the remote path fails. Close releases the capture resources
// on every exit path and is safe to call more than once.
type VoiceSession struct {
	mu         sync.Mutex
	state      VoiceState
	chunks     [][]byte
	mimeType   string
	interim    string
	final      string
	transcribe Transcriber
	factory    RecognizerFactory
	recognizer LiveRecognizer
	logger     *logging.Logger
	closed     bool
}

// VoiceOptions configures a voice session.
type VoiceOptions struct {
	Transcriber Transcriber
	Factory     RecognizerFactory
	Logger      *logging.Logger
}

func NewVoiceSession(opts VoiceOptions) *VoiceSession {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &VoiceSession{
		state:      VoiceIdle,
		transcribe: opts.Transcriber,
		factory:    opts.Factory,
		logger:     logger,
	}
}

// Start begins capturing. The live recognizer is created here; a factory
// error is logged and the session continues remote-only rather than
// blocking the recording.
func (s *VoiceSession) Start(mimeType string) error {
	const op = "capture:voice.start"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.KindVoice, op, "session already closed")
	}
	if s.state == VoiceRecording || s.state == VoiceTranscribing {
		return errors.New(errors.KindVoice, op, "capture already in progress")
	}

	if mimeType == "" {
		mimeType = "audio/webm"
	}
	s.mimeType = mimeType
	s.chunks = nil
	s.interim = ""
	s.final = ""

	if s.factory != nil {
		recognizer, err := s.factory()
		if err != nil {
			s.logger.WarnTag("VOICE", "live recognizer unavailable, remote-only: %v", err)
		}
		s.recognizer = recognizer
	}

	s.state = VoiceRecording
	s.logger.InfoTag("VOICE", "capture started (%s, live=%v)", mimeType, s.recognizer != nil)
	return nil
}

// PushAudio appends a recorded chunk and, when a live recognizer is
// present, advances the incremental transcript. Recognizer failures never
// fail the push; the chunk is already buffered for the remote path.
func (s *VoiceSession) PushAudio(ctx context.Context, chunk []byte) error {
	const op = "capture:voice.push"

	s.mu.Lock()
	if s.state != VoiceRecording {
		s.mu.Unlock()
		return errors.New(errors.KindVoice, op, "not recording")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.chunks = append(s.chunks, buf)
	recognizer := s.recognizer
	s.mu.Unlock()

	if recognizer == nil || len(chunk) == 0 {
		return nil
	}

	text, err := recognizer.Feed(ctx, chunk)
	if err != nil {
		s.logger.WarnTag("VOICE", "live recognition hiccup: %v", err)
		return nil
	}
	if text = strings.TrimSpace(text); text != "" {
		s.mu.Lock()
		s.interim = text
		s.mu.Unlock()
	}
	return nil
}

// Stop finalizes the recording: the assembled audio goes to the remote
// transcriber first, and only if that fails does the interim local
// transcript stand in. Capture resources are released before returning,
// whatever the outcome.
func (s *VoiceSession) Stop(ctx context.Context) (string, error) {
	const op = "capture:voice.stop"

	s.mu.Lock()
	if s.state != VoiceRecording {
		s.mu.Unlock()
		return "", errors.New(errors.KindVoice, op, "not recording")
	}
	s.state = VoiceTranscribing
	audio := s.assembleLocked()
	interim := s.interim
	s.mu.Unlock()

	s.releaseRecognizer()

	info, err := InspectAudio(audio)
	if err != nil {
		s.setOutcome(VoiceFailed, "")
		return "", err
	}
	s.logger.DebugTag("VOICE", "recording assembled: %d bytes (%s)", info.Bytes, info.MIME)

	text, err := s.transcribe.Transcribe(ctx, audio)
	if err == nil && strings.TrimSpace(text) != "" {
		final := strings.TrimSpace(text)
		s.setOutcome(VoiceDone, final)
		s.logger.InfoTag("VOICE", "remote transcription accepted (%d chars)", len(final))
		return final, nil
	}
	if err != nil {
		s.logger.WarnTag("VOICE", "remote transcription failed: %v", err)
	}

	if interim != "" {
		s.setOutcome(VoiceDone, interim)
		s.logger.InfoTag("VOICE", "falling back to live transcript (%d chars)", len(interim))
		return interim, nil
	}

	s.setOutcome(VoiceFailed, "")
	return "", errors.Wrap(errors.KindVoice, op, "transcription failed with no fallback", err)
}

// Restart discards the current recording and transcripts so the user can
// try again within the same session.
func (s *VoiceSession) Restart() error {
	const op = "capture:voice.restart"

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.KindVoice, op, "session already closed")
	}
	mimeType := s.mimeType
	s.state = VoiceIdle
	s.chunks = nil
	s.interim = ""
	s.final = ""
	s.mu.Unlock()

	s.releaseRecognizer()
	return s.Start(mimeType)
}

// Close releases the microphone and recognizer. Idempotent; called on every
// exit path including abandonment.
func (s *VoiceSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.state == VoiceRecording || s.state == VoiceTranscribing {
		s.state = VoiceIdle
	}
	s.mu.Unlock()

	s.releaseRecognizer()
	s.logger.DebugTag("VOICE", "capture resources released")
	return nil
}

// State returns the current lifecycle state.
func (s *VoiceSession) State() VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the best text so far: the final transcript once one
// exists, otherwise the live interim.
func (s *VoiceSession) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final != "" {
		return s.final
	}
	return s.interim
}

func (s *VoiceSession) assembleLocked() media.Asset {
	var buf bytes.Buffer
	for _, chunk := range s.chunks {
		buf.Write(chunk)
	}
	return media.Asset{Data: buf.Bytes(), MIME: s.mimeType, Name: "recording.webm"}
}

func (s *VoiceSession) setOutcome(state VoiceState, final string) {
	s.mu.Lock()
	s.state = state
	s.final = final
	s.mu.Unlock()
}

func (s *VoiceSession) releaseRecognizer() {
	s.mu.Lock()
	recognizer := s.recognizer
	s.recognizer = nil
	s.mu.Unlock()

	if recognizer != nil {
		if err := recognizer.Close(); err != nil {
			s.logger.WarnTag("VOICE", "recognizer close: %v", err)
		}
	}
}
