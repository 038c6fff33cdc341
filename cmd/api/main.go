package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routemap/internal/adapters/backend"
	"github.com/samirrijal/routemap/internal/adapters/http"
	"github.com/samirrijal/routemap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/routemap/internal/adapters/nats"
	"github.com/samirrijal/routemap/internal/adapters/postgres"
	"github.com/samirrijal/routemap/internal/adapters/provider"
	"github.com/samirrijal/routemap/internal/adapters/valkey"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
	"github.com/samirrijal/routemap/internal/core/palette"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/core/usecases"
	"github.com/samirrijal/routemap/internal/pkg/config"
	"github.com/samirrijal/routemap/internal/pkg/logging"
	"github.com/samirrijal/routemap/internal/pkg/metrics"
	"github.com/samirrijal/routemap/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load("routemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Payload source
	var (
		source ports.CoordinateSource
		db     *postgres.DB
	)
	timeout := time.Duration(cfg.Source.TimeoutMS) * time.Millisecond
	switch cfg.Source.Kind {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go reportPoolStats(ctx, db)
		source = postgres.NewPayloadSource(postgres.NewPayloadRepo(db))
	default:
		source = backend.New(cfg.Source.BaseURL, timeout)
	}

	// Cache: in-process LRU, backed by Valkey when reachable
	local, err := memory.New(cfg.Cache.LocalSize)
	if err != nil {
		log.Fatalf("local cache: %v", err)
	}
	var (
		cache  ports.CacheService = local
		shared *valkey.Cache
	)
	if cfg.Valkey.Addr != "" {
		shared, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, using local cache only", "error", err)
		} else {
			defer shared.Close()
			// keep local copies short so invalidations elsewhere propagate
			cache = memory.NewTiered(local, shared, min(cfg.Cache.TTL, 30))
		}
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, command batches will not be published", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	var natsConn *nats.Conn
	if pub != nil {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
		}
	}

	// Use cases
	payloadSvc := usecases.NewPayloadService(source, cache, usecases.PayloadOptions{
		SourceName:     cfg.Source.Kind,
		CacheTTL:       cfg.Cache.TTL,
		MaxConcurrency: cfg.Source.MaxConcurrency,
		Timeout:        timeout,
	})

	opts, err := overlayOptions(cfg)
	if err != nil {
		log.Fatalf("overlay config: %v", err)
	}
	var streamOpts []provider.Option
	if cfg.Overlay.EncodePolylines {
		streamOpts = append(streamOpts, provider.WithEncodedPolylines())
	}
	surfaceSvc := usecases.NewSurfaceService(payloadSvc, publisher, func(p domain.Provider) ports.CommandRecorder {
		return provider.NewStream(p, streamOpts...)
	}, opts)

	// Selection events from other services
	if pub != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("selection subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeSelections(ctx, surfaceSvc.HandleSelectionEvent); err != nil {
				slog.Warn("subscribe selections failed", "error", err)
			}
		}
	}

	deps := &http.Dependencies{
		Surfaces:        surfaceSvc,
		Payloads:        payloadSvc,
		Conversions:     usecases.NewConversionService(),
		NATS:            natsConn,
		DB:              db,
		Cache:           shared,
		DefaultProvider: domain.Provider(cfg.Overlay.DefaultProvider),
		OpenAPIPath:     "api/openapi.yaml",
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // payload bodies can be long polylines
		AppName:      "routemap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "source", cfg.Source.Kind, "policy", opts.Policy)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// overlayOptions translates the overlay and providers sections into reconciler options.
func overlayOptions(cfg *config.Config) (overlay.Options, error) {
	pal, err := palette.New(cfg.Overlay.Palette)
	if err != nil {
		return overlay.Options{}, err
	}
	viewports := make(map[domain.Provider]overlay.ViewportMode, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		p, err := domain.ParseProvider(name)
		if err != nil {
			return overlay.Options{}, err
		}
		viewports[p] = overlay.ViewportMode(pc.Viewport)
	}
	return overlay.Options{
		Policy:        overlay.Policy(cfg.Overlay.Policy),
		Palette:       pal,
		LineWidth:     cfg.Overlay.LineWidth,
		MinFitRadiusM: cfg.Overlay.MinFitRadiusM,
		EmptyViewport: overlay.EmptyViewport(cfg.Overlay.EmptyViewport),
		DefaultCenter: domain.Coordinate{
			Lat: cfg.Overlay.DefaultCenter.Lat,
			Lng: cfg.Overlay.DefaultCenter.Lng,
		},
		ProviderViewports: viewports,
	}, nil
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
