// Command memoryd is the main entry point for the tiered-retrieval memory
// service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/tieredmem/internal/api"
	"github.com/MrWong99/tieredmem/internal/config"
	"github.com/MrWong99/tieredmem/internal/embedding"
	"github.com/MrWong99/tieredmem/internal/health"
	"github.com/MrWong99/tieredmem/internal/ingest"
	"github.com/MrWong99/tieredmem/internal/llm"
	"github.com/MrWong99/tieredmem/internal/maintenance"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/observe"
	"github.com/MrWong99/tieredmem/internal/store"
	_ "github.com/MrWong99/tieredmem/internal/store/embedded"
	_ "github.com/MrWong99/tieredmem/internal/store/postgres"
	embedprovider "github.com/MrWong99/tieredmem/pkg/provider/embeddings"
	llmprovider "github.com/MrWong99/tieredmem/pkg/provider/llm"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("memoryd starting",
		"backend", cfg.Store.Backend,
		"embedding_provider", cfg.Embedding.Provider,
		"llm_provider", cfg.LLM.Provider,
		"http_addr", cfg.Server.HTTPAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "tieredmem"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise store", "err", err)
		return 1
	}
	defer st.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		slog.Error("failed to initialise embedding provider", "err", err)
		return 1
	}

	llmProv, err := buildLLM(cfg)
	if err != nil {
		slog.Warn("LLM provider unavailable — classification/conflict checks fall back to rule-based logic", "err", err)
		llmProv = nil
	}

	ingestPipe := ingest.New(st, embedder, llmProv, ingest.Config{
		ConflictStrategy:    model.ConflictStrategy(cfg.Ingest.ConflictStrategy),
		UseLLMClassify:      llmProv != nil,
		UseLLMConflict:      llmProv != nil,
		RecordProvenance:    true,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
	})

	maint := maintenance.New(st, embedder, llmProv, maintenance.Config{
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		UseLLMSummaries:     llmProv != nil,
	})

	metrics := observe.DefaultMetrics()

	healthHandler := health.New(health.StoreChecker(st), health.EmbedderChecker(embedder))

	srv := api.New(st, ingestPipe, maint, embedder, llmProv, metrics, healthHandler)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return store.Open(ctx, store.BackendPostgres, cfg.Store.PostgresDSN, cfg.Embedding.Dimensions)
	case config.BackendEmbedded:
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("memoryd: create data dir: %w", err)
		}
		dsn := cfg.Store.DataDir + "/memory.db"
		return store.Open(ctx, store.BackendEmbedded, dsn, cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("memoryd: unknown backend %q", cfg.Store.Backend)
	}
}

func buildEmbedder(cfg *config.Config) (embedprovider.Provider, error) {
	return embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
	})
}

func buildLLM(cfg *config.Config) (llmprovider.Provider, error) {
	if cfg.LLM.Provider == "" {
		return nil, errors.New("MEMORY_LLM_PROVIDER not configured")
	}
	return llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
	})
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
