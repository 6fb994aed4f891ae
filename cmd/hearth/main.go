package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hearthside/hearth/internal/audio"
	"github.com/hearthside/hearth/internal/config"
	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/httpapi"
	"github.com/hearthside/hearth/internal/identity"
	"github.com/hearthside/hearth/internal/observability"
	"github.com/hearthside/hearth/internal/recall"
	"github.com/hearthside/hearth/internal/stories"
	"github.com/hearthside/hearth/internal/storage"
	"github.com/hearthside/hearth/internal/summarize"
	"github.com/hearthside/hearth/internal/voiceid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer store.Close()

	storeMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		storeMode = "postgres"
	}
	log.Printf("store: %s", storeMode)

	var (
		provider voiceid.Provider
		backend  string
	)

	tryCloud := func() bool {
		if strings.TrimSpace(cfg.AzureSpeechKey) == "" {
			return false
		}
		p, err := voiceid.NewCloudProvider(voiceid.CloudConfig{
			Endpoint: cfg.AzureSpeechEndpoint,
			Region:   cfg.AzureSpeechRegion,
			Key:      cfg.AzureSpeechKey,
		})
		if err != nil {
			log.Printf("cloud voice backend unavailable: %v", err)
			return false
		}
		provider = p
		backend = "cloud"
		log.Printf("voice backend: azure speaker recognition")
		return true
	}

	switch cfg.VoiceBackend {
	case "cloud":
		if !tryCloud() {
			log.Fatalf("VOICE_BACKEND=cloud but azure credentials are incomplete")
		}
	case "local":
		provider = voiceid.NewEngineProvider(voiceid.NewLocalEngine())
		backend = "local"
		log.Printf("voice backend: local spectral engine")
	case "mock":
		provider = voiceid.NewEngineProvider(voiceid.NewMockEngine())
		backend = "mock"
		log.Printf("voice backend: mock")
	case "auto":
		if tryCloud() {
			break
		}
		provider = voiceid.NewEngineProvider(voiceid.NewLocalEngine())
		backend = "local"
		log.Printf("voice backend: local spectral engine (no azure key)")
	}

	var (
		summarizer continuity.Summarizer
		titles     stories.TitleGenerator
	)
	if client, err := summarize.NewClient(summarize.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	}); err == nil {
		summarizer = client
		titles = client
		log.Printf("summarizer: chat completions (%s)", cfg.OpenAIModel)
	} else if !errors.Is(err, summarize.ErrNotConfigured) {
		log.Fatalf("summarizer init failed: %v", err)
	} else {
		log.Printf("summarizer: heuristic labels (no api key)")
	}

	var transcoder audio.Transcoder
	if t, err := audio.NewFFmpegTranscoder(cfg.FFmpegPath); err == nil {
		transcoder = t
	} else {
		log.Printf("ffmpeg unavailable, accepting WAV and raw PCM only: %v", err)
	}
	adapter := audio.NewAdapter(transcoder)

	identities := identity.NewService(store, provider, metrics)
	sessions := continuity.NewService(store, summarizer, recall.Deriver{})
	storySvc := stories.NewService(store, store, identities, titles, metrics)

	api := httpapi.New(cfg, adapter, identities, sessions, storySvc, metrics, backend, storeMode)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
