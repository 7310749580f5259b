// Package main contains the entrypoint for the chat service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/api"
	"github.com/PbVrCt/serverless-chat-demo/internal/app"
	"github.com/PbVrCt/serverless-chat-demo/internal/app/tasks"
	"github.com/PbVrCt/serverless-chat-demo/internal/chat"
	"github.com/PbVrCt/serverless-chat-demo/internal/completion"
	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/database"
	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
	"github.com/PbVrCt/serverless-chat-demo/internal/logger"
	"github.com/PbVrCt/serverless-chat-demo/internal/metrics"
	"github.com/PbVrCt/serverless-chat-demo/internal/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component (config, logger, store, secrets, completion,
// identity, metrics, HTTP API, scheduler), blocks until shutdown and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	store, closeStore, err := database.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open message store", "backend", cfg.Store.Backend, "error", err)
		return 1
	}
	defer closeStore()

	secretProvider, err := secrets.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize secret provider", "backend", cfg.Secrets.Backend, "error", err)
		return 1
	}

	completer, err := completion.New(cfg.Completion, log)
	if err != nil {
		log.Error("Failed to initialize completion provider", "provider", cfg.Completion.Provider, "error", err)
		return 1
	}

	resolver, err := identity.NewResolver(cfg.Auth)
	if err != nil {
		log.Error("Failed to initialize identity resolver", "signing_method", cfg.Auth.SigningMethod, "error", err)
		return 1
	}

	m := metrics.New()
	svc := chat.NewService(store, secretProvider, completer, chat.Options{
		Persona:           cfg.Completion.Persona,
		SecretName:        cfg.Secrets.Name,
		MaxContextTokens:  cfg.Completion.MaxContextTokens,
		CompletionTimeout: cfg.Completion.Timeout,
		Metrics:           m,
	}, log)

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(svc, resolver, store, m, cfg.Server.RequestTimeout, log)

	sched, err := app.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	log.Info("Starting chat service...",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Backend,
		"secrets", cfg.Secrets.Backend,
		"completion", cfg.Completion.Provider,
		"model", cfg.Completion.Model)

	runErr := app.New(log, cfg.Server, router, sched).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Chat service stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Chat service stopped gracefully.")
	return 0
}
