package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/routemap/internal/adapters/postgres"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/payload"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/pkg/config"
	"github.com/samirrijal/routemap/internal/pkg/logging"
)

const batchSize = 500

// payloadExts are the file extensions picked up from the input directory.
var payloadExts = []string{".json", ".txt", ".geojson"}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: ingestor <route|space> <dir>")
	}
	_ = godotenv.Load()

	cfg, err := config.Load("routemap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ch, err := domain.ParseChannel(os.Args[1])
	if err != nil {
		log.Fatalf("channel: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	files, err := payloadFiles(os.Args[2])
	if err != nil {
		log.Fatalf("scan %s: %v", os.Args[2], err)
	}
	slog.Info("ingesting payloads", "channel", ch, "files", len(files))

	stored, skipped := load(ctx, ch, files)

	repo := postgres.NewPayloadRepo(db)
	for start := 0; start < len(stored); start += batchSize {
		end := min(start+batchSize, len(stored))
		if err := repo.UpsertBatch(ctx, stored[start:end]); err != nil {
			log.Fatalf("upsert batch %d-%d: %v", start, end, err)
		}
	}

	total, err := repo.Count(ctx, ch)
	if err != nil {
		slog.Warn("count failed", "error", err)
	}
	slog.Info("ingestion complete", "channel", ch, "written", len(stored), "skipped", skipped, "total", total)
}

func payloadFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(payloadExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// load reads and validates every file. Files without a single usable
// coordinate are skipped, partially malformed ones are kept as-is since
// the read path drops bad entries anyway.
func load(ctx context.Context, ch domain.Channel, files []string) ([]ports.StoredPayload, int) {
	var (
		mu      sync.Mutex
		stored  = make([]ports.StoredPayload, 0, len(files))
		skipped int
	)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, path := range files {
		g.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				slog.Error("read payload", "file", path, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			pts, st := payload.ParseStats(payload.Decode(raw))

			mu.Lock()
			defer mu.Unlock()
			if len(pts) == 0 {
				slog.Warn("no usable coordinates", "file", path, "dropped", st.Dropped)
				skipped++
				return nil
			}
			if st.Dropped > 0 {
				slog.Debug("dropped malformed entries", "file", path, "dropped", st.Dropped)
			}
			stored = append(stored, ports.StoredPayload{
				Channel:    ch,
				FileID:     fileID(path),
				Raw:        raw,
				PointCount: len(pts),
			})
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(stored, func(a, b ports.StoredPayload) int { return strings.Compare(a.FileID, b.FileID) })
	return stored, skipped
}

func fileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
