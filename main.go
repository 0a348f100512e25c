package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/config"
	"github.com/ainotes/backend/internal/agent"
	"github.com/ainotes/backend/internal/llm"
	"github.com/ainotes/backend/internal/store"
	transport "github.com/ainotes/backend/internal/transport/http"
	"github.com/ainotes/backend/internal/transport/ws"
	"github.com/ainotes/backend/policy"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseURL).
		Str("llm_base_url", cfg.LLM.BaseURL).
		Msg("starting backend")

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, 120*time.Second)

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	deps := agent.ExecutorDeps{
		Client: llmClient,
		Store:  db,
		Params: agent.ModelParams{
			Model:            cfg.LLM.Model,
			Temperature:      cfg.LLM.Temperature,
			TopP:             cfg.LLM.TopP,
			FrequencyPenalty: cfg.LLM.FrequencyPenalty,
			MaxTokens:        cfg.LLM.MaxTokens,
		},
		Policy:             policyEngine,
		MaxToolOutputChars: cfg.Agent.MaxToolOutputChars,
		NoteTools:          agent.NoteToolConfig{PatchSimilarity: cfg.Agent.PatchSimilarity},
		Log:                log,
	}

	classifier := agent.NewClassifier(llmClient, cfg.LLM.Model, log)
	dispatcher := agent.NewDispatcher(
		agent.NewNotesExecutor(deps),
		agent.NewTaskExecutor(deps),
		agent.NewEventExecutor(deps),
	)
	processor := agent.NewProcessor(classifier, dispatcher, db, cfg.Agent.PendingTTL, log)
	chat := agent.NewChatExecutor(deps, cfg.Agent.MaxIterations)

	handler := transport.NewHandler(processor, chat, db, log)
	server := transport.NewServer(handler)

	wsHandler := ws.NewHandler(processor, ws.NewConnectionManager(), log)
	wsHandler.RegisterRoutes(server)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.HTTPPort).Msg("backend started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("backend stopped")
}
