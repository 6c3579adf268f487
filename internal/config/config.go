package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the live shopping-assistant bridge.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	GeminiAPIKey            string
	GeminiWSBaseURL         string
	GeminiModel             string
	GeminiSystemInstruction string
	GeminiVoice             string

	TTSAPIKey        string
	TTSBaseURL       string
	TTSLanguageCode  string
	TTSVoiceName     string
	TTSAudioEncoding string

	SearchMode  string
	SearchURL   string
	DatabaseURL string

	ToolTimeout            time.Duration
	CreateSessionTimeout   time.Duration
	EndSessionTimeout      time.Duration
	FallbackCompletionText string
	AudioChunkSize         int
	InboundQueueSize       int
}

const defaultSystemInstruction = "You are an intelligent assistant that helps users find products, " +
	"answer questions, and provide helpful information. You can search for products when asked. " +
	"When responding with audio, keep your responses concise and natural."

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "gondola"),
		AllowAnyOrigin:   false,

		GeminiAPIKey:            stringsTrimSpace("GEMINI_API_KEY"),
		GeminiWSBaseURL:         envOrDefault("GEMINI_WS_BASE_URL", "wss://generativelanguage.googleapis.com"),
		GeminiModel:             envOrDefault("GEMINI_LIVE_MODEL", "gemini-2.0-flash-live-001"),
		GeminiSystemInstruction: envOrDefault("GEMINI_LIVE_INSTRUCTIONS", defaultSystemInstruction),
		GeminiVoice:             envOrDefault("GEMINI_LIVE_VOICE", "Kore"),

		TTSAPIKey:        stringsTrimSpace("TTS_API_KEY"),
		TTSBaseURL:       envOrDefault("TTS_BASE_URL", "https://texttospeech.googleapis.com"),
		TTSLanguageCode:  envOrDefault("TTS_LANGUAGE_CODE", "en-US"),
		TTSVoiceName:     envOrDefault("TTS_VOICE_NAME", "en-US-Neural2-F"),
		TTSAudioEncoding: envOrDefault("TTS_AUDIO_ENCODING", "MP3"),

		SearchMode:  envOrDefault("SEARCH_MODE", "auto"),
		SearchURL:   stringsTrimSpace("SEARCH_URL"),
		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		ToolTimeout:            10 * time.Second,
		CreateSessionTimeout:   10 * time.Second,
		EndSessionTimeout:      5 * time.Second,
		FallbackCompletionText: envOrDefault("APP_FALLBACK_COMPLETION_TEXT", "Here you go!"),
		AudioChunkSize:         4096,
		InboundQueueSize:       64,
		ShutdownTimeout:        15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("APP_TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CreateSessionTimeout, err = durationFromEnv("APP_CREATE_SESSION_TIMEOUT", cfg.CreateSessionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EndSessionTimeout, err = durationFromEnv("APP_END_SESSION_TIMEOUT", cfg.EndSessionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioChunkSize, err = intFromEnv("APP_AUDIO_CHUNK_SIZE", cfg.AudioChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.InboundQueueSize, err = intFromEnv("APP_INBOUND_QUEUE_SIZE", cfg.InboundQueueSize)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_TOOL_TIMEOUT must be positive")
	}
	if cfg.CreateSessionTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_CREATE_SESSION_TIMEOUT must be positive")
	}
	if cfg.EndSessionTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_END_SESSION_TIMEOUT must be positive")
	}
	if cfg.AudioChunkSize <= 0 {
		return Config{}, fmt.Errorf("APP_AUDIO_CHUNK_SIZE must be positive")
	}
	if cfg.InboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("APP_INBOUND_QUEUE_SIZE must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SearchMode)) {
	case "auto", "http", "postgres", "mock":
	default:
		return Config{}, fmt.Errorf("invalid SEARCH_MODE: %q (expected auto|http|postgres|mock)", cfg.SearchMode)
	}
	switch strings.ToUpper(strings.TrimSpace(cfg.TTSAudioEncoding)) {
	case "MP3", "LINEAR16", "OGG_OPUS":
	default:
		return Config{}, fmt.Errorf("invalid TTS_AUDIO_ENCODING: %q (expected MP3|LINEAR16|OGG_OPUS)", cfg.TTSAudioEncoding)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
