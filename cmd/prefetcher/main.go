package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/routemap/internal/adapters/backend"
	"github.com/samirrijal/routemap/internal/adapters/postgres"
	"github.com/samirrijal/routemap/internal/adapters/valkey"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/core/usecases"
	"github.com/samirrijal/routemap/internal/pkg/config"
	"github.com/samirrijal/routemap/internal/pkg/logging"
	"github.com/samirrijal/routemap/internal/workflows"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: prefetcher <worker|start <route|space> <id,id,...>>")
	}
	_ = godotenv.Load()

	cfg, err := config.Load("routemap-prefetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	queue := cfg.Temporal.TaskQueue
	if queue == "" {
		queue = workflows.TaskQueue
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(cfg, c, queue)
	case "start":
		if len(os.Args) < 4 {
			log.Fatal("usage: prefetcher start <route|space> <id,id,...>")
		}
		start(c, queue, os.Args[2], os.Args[3])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runWorker(cfg *config.Config, c client.Client, queue string) {
	ctx := context.Background()

	// Warming only makes sense against the shared cache the API reads.
	if cfg.Valkey.Addr == "" {
		log.Fatal("valkey.addr is required for the prefetch worker")
	}
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	timeout := time.Duration(cfg.Source.TimeoutMS) * time.Millisecond
	var source ports.CoordinateSource
	if cfg.Source.Kind == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		source = postgres.NewPayloadSource(postgres.NewPayloadRepo(db))
	} else {
		source = backend.New(cfg.Source.BaseURL, timeout)
	}

	payloads := usecases.NewPayloadService(source, cache, usecases.PayloadOptions{
		SourceName:     cfg.Source.Kind,
		CacheTTL:       cfg.Cache.TTL,
		MaxConcurrency: cfg.Source.MaxConcurrency,
		Timeout:        timeout,
	})

	w := worker.New(c, queue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.PrefetchWorkflow)
	w.RegisterActivity(&workflows.PrefetchActivities{Payloads: payloads})

	slog.Info("prefetch worker started", "queue", queue, "source", cfg.Source.Kind)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func start(c client.Client, queue, channel, ids string) {
	ch, err := domain.ParseChannel(channel)
	if err != nil {
		log.Fatalf("channel: %v", err)
	}
	var fileIDs []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			fileIDs = append(fileIDs, id)
		}
	}

	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("prefetch-%s-%s", ch, uuid.NewString()),
		TaskQueue: queue,
	}, workflows.PrefetchWorkflow, workflows.PrefetchInput{Channel: ch, FileIDs: fileIDs})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}

	var summary workflows.PrefetchSummary
	if err := run.Get(ctx, &summary); err != nil {
		log.Fatalf("workflow %s: %v", run.GetID(), err)
	}
	fmt.Printf("batches=%d fetched=%d points=%d failed=%d\n",
		summary.Batches, summary.Fetched, summary.Points, len(summary.Failed))
	for _, id := range summary.Failed {
		fmt.Printf("FAILED  %s\n", id)
	}
}
