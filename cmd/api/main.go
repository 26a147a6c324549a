// Package main is the entry point for the conversation API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/config"
	"github.com/capitalize-ai/campuschat/internal/handler"
	"github.com/capitalize-ai/campuschat/internal/llm"
	natsclient "github.com/capitalize-ai/campuschat/internal/nats"
	"github.com/capitalize-ai/campuschat/internal/service"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("store", cfg.Store))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "campuschat-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var (
		store  service.ConversationStore
		events service.EventLog
		checks []handler.Check
	)
	switch cfg.Store {
	case "nats":
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		kvStore, err := natsclient.NewConversationStore(ctx, natsClient)
		if err != nil {
			log.Fatal("failed to open conversation store", zap.Error(err))
		}

		store, events = kvStore, streamManager
		checks = append(checks, handler.Check{Name: "NATS", Ready: natsClient.IsConnected})
	case "memory":
		store, events = service.NewMemoryStore(), service.NewMemoryEventLog()
	default:
		log.Fatal("unknown STORE, expected memory or nats", zap.String("store", cfg.Store))
	}

	llmClient, err := llm.FromKeys(llm.Provider(cfg.DefaultLLM), cfg.AnthropicAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		log.Warn("failed to create LLM client, assistant replies disabled", zap.Error(err))
		llmClient = nil
	}
	if llmClient == nil {
		log.Info("no LLM configured, assistant replies disabled")
	} else {
		log.Info("assistant replies enabled", zap.String("provider", llmClient.Name()))
	}

	conversationSvc := service.NewConversationService(store, events, log)
	messageSvc := service.NewMessageService(conversationSvc, llmClient, log)

	router := handler.NewRouter(handler.RouterConfig{
		Conversations:     conversationSvc,
		Messages:          messageSvc,
		Health:            handler.NewHealthHandler(checks...),
		Logger:            log,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, authentication disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
