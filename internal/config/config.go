package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice-identity service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DatabaseURL string

	// VoiceBackend selects the enrollment/identification backend:
	// auto, local, cloud or mock.
	VoiceBackend string

	AzureSpeechKey      string
	AzureSpeechRegion   string
	AzureSpeechEndpoint string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	FFmpegPath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "hearth"),
		VoiceBackend:        strings.ToLower(envOrDefault("VOICE_BACKEND", "auto")),
		DatabaseURL:         envTrimmed("DATABASE_URL"),
		AzureSpeechKey:      envTrimmed("AZURE_SPEECH_KEY"),
		AzureSpeechRegion:   envTrimmed("AZURE_SPEECH_REGION"),
		AzureSpeechEndpoint: envTrimmed("AZURE_SPEECH_ENDPOINT"),
		OpenAIAPIKey:        envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:       envTrimmed("OPENAI_BASE_URL"),
		OpenAIModel:         envTrimmed("OPENAI_MODEL"),
		FFmpegPath:          envOrDefault("FFMPEG_PATH", "ffmpeg"),
		ShutdownTimeout:     15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	switch cfg.VoiceBackend {
	case "auto", "local", "cloud", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_BACKEND must be auto, local, cloud or mock")
	}
	if cfg.VoiceBackend == "cloud" && cfg.AzureSpeechKey == "" {
		return Config{}, fmt.Errorf("VOICE_BACKEND=cloud requires AZURE_SPEECH_KEY")
	}
	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
