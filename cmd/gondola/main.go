package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpellerano/gondola/internal/bridge"
	"github.com/rpellerano/gondola/internal/catalog"
	"github.com/rpellerano/gondola/internal/config"
	"github.com/rpellerano/gondola/internal/httpapi"
	"github.com/rpellerano/gondola/internal/live"
	"github.com/rpellerano/gondola/internal/observability"
	"github.com/rpellerano/gondola/internal/session"
	"github.com/rpellerano/gondola/internal/tools"
	"github.com/rpellerano/gondola/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	searcher, err := catalog.NewSearcher(ctx, cfg.SearchMode, cfg.SearchURL, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("catalog init failed: %v", err)
	}
	if c, ok := searcher.(interface{ Close() error }); ok {
		defer c.Close()
	}
	log.Printf("catalog searcher: %T", searcher)

	executor := tools.NewExecutor(searcher, cfg.ToolTimeout)

	var synth tts.Synthesizer
	if cfg.TTSAPIKey != "" {
		synth, err = tts.NewGoogleSynthesizer(tts.GoogleConfig{
			APIKey:        cfg.TTSAPIKey,
			BaseURL:       cfg.TTSBaseURL,
			LanguageCode:  cfg.TTSLanguageCode,
			VoiceName:     cfg.TTSVoiceName,
			AudioEncoding: cfg.TTSAudioEncoding,
		})
		if err != nil {
			log.Fatalf("tts init failed: %v", err)
		}
		log.Printf("synthesizer: google cloud tts (%s)", cfg.TTSAudioEncoding)
	} else {
		synth = &tts.MockSynthesizer{}
		log.Printf("synthesizer: mock (no TTS_API_KEY)")
	}

	var dialer live.Dialer
	if cfg.GeminiAPIKey != "" {
		dialer, err = live.NewGeminiDialer(live.GeminiConfig{
			APIKey:            cfg.GeminiAPIKey,
			WSBaseURL:         cfg.GeminiWSBaseURL,
			Model:             cfg.GeminiModel,
			SystemInstruction: cfg.GeminiSystemInstruction,
			Voice:             cfg.GeminiVoice,
			Tools:             executor.Declarations(),
		})
		if err != nil {
			log.Fatalf("gemini dialer init failed: %v", err)
		}
		log.Printf("upstream: gemini live (%s)", cfg.GeminiModel)
	} else {
		dialer = &live.MockDialer{}
		log.Printf("upstream: mock (no GEMINI_API_KEY)")
	}

	registry := session.NewRegistry(cfg.InboundQueueSize)
	sched := bridge.NewScheduler(0)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go sched.Run(runCtx)

	svc := bridge.NewService(bridge.Options{
		CreateSessionTimeout:   cfg.CreateSessionTimeout,
		EndSessionTimeout:      cfg.EndSessionTimeout,
		FallbackCompletionText: cfg.FallbackCompletionText,
		AudioChunkSize:         cfg.AudioChunkSize,
	}, registry, dialer, executor, synth, metrics, sched)

	api := httpapi.New(cfg, svc, synth, metrics)
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
	svc.Shutdown(shutdownCtx)
	runCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
