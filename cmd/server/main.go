package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"github.com/leowmjw/go-timeline-annotations/pkg/http"
	"github.com/leowmjw/go-timeline-annotations/pkg/temporal"
)

// envOr reads a TIMELINE_* variable, falling back to def
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(envOr(key, "")); err == nil {
		return d
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(envOr(key, "")); err == nil {
		return n
	}
	return def
}

func main() {
	// A missing .env is fine; flags and the environment still apply
	envErr := godotenv.Load()

	var (
		httpAddr     = flag.String("http-addr", envOr("TIMELINE_HTTP_ADDR", ":8080"), "HTTP server address")
		temporalAddr = flag.String("temporal-addr", envOr("TIMELINE_TEMPORAL_ADDR", "localhost:7233"), "Temporal server address")
		namespace    = flag.String("namespace", envOr("TIMELINE_NAMESPACE", "default"), "Temporal namespace")
		taskQueue    = flag.String("task-queue", envOr("TIMELINE_TASK_QUEUE", temporal.DefaultTaskQueue), "Temporal task queue")
		definitions  = flag.String("definitions", envOr("TIMELINE_DEFINITIONS", ""), "Directory of definitions to preload")
		idleTimeout  = flag.Duration("idle-timeout", envDuration("TIMELINE_IDLE_TIMEOUT", 0), "Close timelines after this long without commands (0 keeps them open)")
		journalLimit = flag.Int("journal-limit", envInt("TIMELINE_JOURNAL_LIMIT", temporal.DefaultJournalLimit), "Command outcomes kept per timeline")
		logLevel     = flag.String("log-level", envOr("TIMELINE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	var logHandler slog.Handler
	switch *logLevel {
	case "debug":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	case "warn":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})
	case "error":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	default:
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("Failed to load .env", "error", envErr)
	}

	logger.Info("Starting timeline annotation service",
		"http_addr", *httpAddr,
		"temporal_addr", *temporalAddr,
		"namespace", *namespace,
		"task_queue", *taskQueue,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stored definitions, served to workflows by the load-definition activity
	store := temporal.NewMemoryDefinitionStore()
	if *definitions != "" {
		names, err := temporal.PreloadDefinitions(ctx, store, *definitions)
		if err != nil {
			logger.Error("Failed to preload definitions", "dir", *definitions, "error", err)
			os.Exit(1)
		}
		logger.Info("Preloaded definitions", "dir", *definitions, "names", names)
	}

	// Create Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort:  *temporalAddr,
		Namespace: *namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	// Create activities
	activities := temporal.NewActivities(logger, store)

	// Create Temporal worker
	w := worker.New(temporalClient, *taskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(temporal.AnnotationWorkflow)

	// Register activities
	w.RegisterActivityWithOptions(activities.LoadDefinitionActivity, activity.RegisterOptions{
		Name: temporal.LoadDefinitionActivityName,
	})

	server := http.NewServer(logger, temporalClient, *httpAddr,
		http.WithTaskQueue(*taskQueue),
		http.WithIdleTimeout(*idleTimeout),
		http.WithJournalLimit(*journalLimit),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Temporal worker", "task_queue", *taskQueue)
		if err := w.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		w.Stop()
		return nil
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Timeline annotation service failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Timeline annotation service stopped")
}
