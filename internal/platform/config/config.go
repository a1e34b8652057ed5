package config

import (
	"time"

	"jewelfinder-go/internal/platform/logging"
)

// Config is the full gateway configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        logging.LogCfg   `yaml:"log"`
	API        APIConfig        `yaml:"api"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Sketch     SketchConfig     `yaml:"sketch"`
	Voice      VoiceConfig      `yaml:"voice"`
	History    HistoryConfig    `yaml:"history"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig describes the local gateway listener that hosts the browser UI.
type ServerConfig struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// APIConfig points at the remote search collaborator service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NormalizerConfig bounds client-side image normalization before transport.
type NormalizerConfig struct {
	MaxEdge int `yaml:"max_edge"`
	Quality int `yaml:"quality"`
}

// SketchConfig sizes the server-side sketch canvas.
type SketchConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	StrokeWidth float64 `yaml:"stroke_width"`
}

// VoiceConfig controls the recorded-audio path and the optional live
// recognizer that feeds interim transcripts.
type VoiceConfig struct {
	Recognizer RecognizerConfig `yaml:"recognizer"`
}

// RecognizerConfig configures the best-effort incremental speech recognizer.
// An empty APIKey means no live facility is available in the environment.
type RecognizerConfig struct {
	Type    string `yaml:"type"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// HistoryConfig controls the local sqlite search-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CacheConfig selects the result-cache backend.
type CacheConfig struct {
	Type  string           `yaml:"type"`
	TTL   time.Duration    `yaml:"ttl"`
	Redis RedisCacheConfig `yaml:"redis"`
}

type RedisCacheConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}
