package config

import (
	"time"

	"jewelfinder-go/internal/platform/logging"
)

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:        "0.0.0.0",
			Port:      8080,
			StaticDir: "./web",
		},
		Log: logging.LogCfg{
			LogLevel: "info",
			LogDir:   "data/logs",
			LogFile:  "gateway.log",
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			// 5 minutes, tolerates cold-start latency while the collaborator
			// loads its models.
			Timeout: 300 * time.Second,
		},
		Normalizer: NormalizerConfig{
			MaxEdge: 1024,
			Quality: 80,
		},
		Sketch: SketchConfig{
			Width:       640,
			Height:      400,
			StrokeWidth: 4,
		},
		Voice: VoiceConfig{
			Recognizer: RecognizerConfig{
				Type:  "openai",
				Model: "whisper-1",
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/jewelfinder.db",
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  10 * time.Minute,
		},
	}
}
