package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/samirrijal/routemap/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}
	_ = godotenv.Load()

	cfg, err := config.Load("routemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		files, err := migrationFiles(false)
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		apply(ctx, pool, files)
	case "down":
		files, err := migrationFiles(true)
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		slices.Reverse(files)
		apply(ctx, pool, files)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// migrationFiles returns the up (NNN_name.sql) or down (NNN_name.down.sql)
// scripts in lexical order.
func migrationFiles(down bool) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range all {
		if strings.HasSuffix(f, ".down.sql") == down {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("%d migrations applied", len(files))
}
