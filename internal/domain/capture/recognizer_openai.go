package capture

import (
	"bytes"
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"jewelfinder-go/internal/platform/logging"
)

// minFlushBytes is how much buffered audio warrants another interim pass.
const minFlushBytes = 48 << 10

// openaiRecognizer produces interim transcripts by re-transcribing the
// accumulated audio whenever enough new bytes arrive. Whisper has no true
// streaming mode, so each pass covers the whole recording so far.
type openaiRecognizer struct {
	mu        sync.Mutex
	client    *openai.Client
	model     string
	audio     bytes.Buffer
	sinceLast int
	last      string
	logger    *logging.Logger
}

// OpenAIRecognizerConfig configures the Whisper-backed live recognizer.
type OpenAIRecognizerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIRecognizerFactory builds live recognizers backed by the OpenAI
// transcription API. Without an API key there is no live facility and the
// factory returns (nil, nil) recognizers.
func NewOpenAIRecognizerFactory(cfg OpenAIRecognizerConfig, logger *logging.Logger) RecognizerFactory {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	if cfg.APIKey == "" {
		logger.InfoTag("VOICE", "no recognizer API key, live transcription disabled")
		return func() (LiveRecognizer, error) { return nil, nil }
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return func() (LiveRecognizer, error) {
		return &openaiRecognizer{client: client, model: model, logger: logger}, nil
	}
}

func (r *openaiRecognizer) Feed(ctx context.Context, chunk []byte) (string, error) {
	r.mu.Lock()
	r.audio.Write(chunk)
	r.sinceLast += len(chunk)
	if r.sinceLast < minFlushBytes {
		last := r.last
		r.mu.Unlock()
		return last, nil
	}
	r.sinceLast = 0
	snapshot := make([]byte, r.audio.Len())
	copy(snapshot, r.audio.Bytes())
	r.mu.Unlock()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		Reader:   bytes.NewReader(snapshot),
		FilePath: "live.webm",
	})
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.last = resp.Text
	r.mu.Unlock()
	return resp.Text, nil
}

func (r *openaiRecognizer) Close() error {
	r.mu.Lock()
	r.audio.Reset()
	r.sinceLast = 0
	r.mu.Unlock()
	return nil
}
