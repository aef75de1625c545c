package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/docintel"
	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/llm"
	"github.com/brunobiangulo/docintel/parser"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := config.Default()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		err = json.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
	}
	cfg.ApplyEnv()

	backends, err := buildBackends(cfg)
	if err != nil {
		slog.Error("building backends", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("DOCINTEL_API_KEY")
	corsOrigins := os.Getenv("DOCINTEL_CORS_ORIGINS")

	engine, err := docintel.New(cfg, *backends)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("POST /compare", h.handleCompare)
	mux.HandleFunc("POST /update", h.handleUpdate)
	mux.HandleFunc("POST /update-all", h.handleUpdateAll)
	mux.HandleFunc("POST /process-pending", h.handleProcessPending)
	mux.HandleFunc("DELETE /documents/{id}", h.handleDeleteDocument)
	mux.HandleFunc("GET /documents", h.handleListDocuments)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ingest can run long
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// buildBackends wires concrete backend implementations from cfg: a
// LocalOCR for document parsing, and llm.Provider-backed embedder and
// vision clients for whichever providers cfg names. Reranking has no
// default provider and is left nil; Search falls back to its unreranked
// path when Options.Rerank isn't set.
func buildBackends(cfg config.Config) (*docintel.Backends, error) {
	ocrBackend := backend.NewLocalOCR()
	if cfg.OCR.APIKey != "" {
		ocrBackend = ocrBackend.WithLlamaParse(parser.LlamaParseConfig{
			APIKey:  cfg.OCR.APIKey,
			BaseURL: cfg.OCR.BaseURL,
		})
	}

	embedProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embed.Provider,
		Model:    cfg.Embed.Model,
		BaseURL:  cfg.Embed.BaseURL,
		APIKey:   cfg.Embed.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("embed provider: %w", err)
	}

	visionProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.VLM.Provider,
		Model:    cfg.VLM.Model,
		BaseURL:  cfg.VLM.BaseURL,
		APIKey:   cfg.VLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vlm provider: %w", err)
	}
	visionClient, ok := visionProvider.(llm.VisionProvider)
	if !ok {
		return nil, fmt.Errorf("vlm provider %q does not support vision", cfg.VLM.Provider)
	}

	return &docintel.Backends{
		OCR:      ocrBackend,
		VLM:      backend.NewLLMVision(visionClient, cfg.VLM.Model),
		Embedder: backend.NewLLMEmbedder(embedProvider, cfg.EmbeddingDim),
	}, nil
}
