package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/payload"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/pkg/metrics"
	"github.com/samirrijal/routemap/internal/pkg/telemetry"
)

// PayloadOptions tunes PayloadService.
type PayloadOptions struct {
	SourceName     string // metrics label, e.g. "http" or "postgres"
	CacheTTL       int    // seconds; 0 disables caching
	MaxConcurrency int
	Timeout        time.Duration // per fetch
}

// PayloadService turns entity ids into canonical point lists, caching parsed results.
type PayloadService struct {
	source ports.CoordinateSource
	cache  ports.CacheService
	opts   PayloadOptions
}

// NewPayloadService creates a new PayloadService. cache may be nil.
func NewPayloadService(source ports.CoordinateSource, cache ports.CacheService, opts PayloadOptions) *PayloadService {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.SourceName == "" {
		opts.SourceName = "source"
	}
	return &PayloadService{source: source, cache: cache, opts: opts}
}

func cacheKey(ch domain.Channel, id string) string {
	return fmt.Sprintf("payload:%s:%s", ch, id)
}

// Points returns the canonical points of one entity.
func (s *PayloadService) Points(ctx context.Context, ch domain.Channel, id string) ([]domain.Coordinate, error) {
	if pts, ok := s.cached(ctx, ch, id); ok {
		return pts, nil
	}
	return s.fetch(ctx, ch, id)
}

// FetchBatch resolves every id concurrently. An id whose fetch fails maps to an
// empty point list; the batch itself never fails.
func (s *PayloadService) FetchBatch(ctx context.Context, ch domain.Channel, ids []string) map[string][]domain.Coordinate {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchBatch,
		trace.WithAttributes(attribute.String("channel", string(ch)), attribute.Int("ids", len(ids))))
	defer span.End()

	out := make(map[string][]domain.Coordinate, len(ids))
	misses := s.fromCache(ctx, ch, ids, out)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, id := range misses {
		g.Go(func() error {
			pts, err := s.fetch(gctx, ch, id)
			if err != nil {
				slog.WarnContext(ctx, "payload fetch failed", "channel", ch, "id", id, "error", err)
				pts = []domain.Coordinate{}
			}
			mu.Lock()
			out[id] = pts
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// PrefetchResult summarizes a cache warm-up run.
type PrefetchResult struct {
	Fetched int      `json:"fetched"`
	Points  int      `json:"points"`
	Failed  []string `json:"failed,omitempty"`
}

// Prefetch fetches and caches ids, bypassing cached entries. It reports an error
// when any id failed so callers can retry.
func (s *PayloadService) Prefetch(ctx context.Context, ch domain.Channel, ids []string) (PrefetchResult, error) {
	var (
		res PrefetchResult
		mu  sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			pts, err := s.fetch(gctx, ch, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, id)
				return nil
			}
			res.Fetched++
			res.Points += len(pts)
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Failed) > 0 {
		return res, fmt.Errorf("prefetch %s: %d of %d ids failed", ch, len(res.Failed), len(ids))
	}
	return res, nil
}

// Invalidate drops the cached points of one entity.
func (s *PayloadService) Invalidate(ctx context.Context, ch domain.Channel, id string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey(ch, id))
}

func (s *PayloadService) fetch(ctx context.Context, ch domain.Channel, id string) ([]domain.Coordinate, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchPayload,
		trace.WithAttributes(attribute.String("channel", string(ch)), attribute.String("file_id", id)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.source.FetchPayload(ctx, ch, id)
	metrics.PayloadFetchDuration.WithLabelValues(s.opts.SourceName).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrPayloadNotFound) {
			metrics.PayloadFetchErrors.WithLabelValues(s.opts.SourceName).Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	p := payload.Decode(raw)
	pts, st := payload.ParseStats(p)
	if st.Dropped > 0 {
		metrics.PayloadEntriesDropped.WithLabelValues(string(p.Kind)).Add(float64(st.Dropped))
		slog.DebugContext(ctx, "payload entries dropped", "channel", ch, "id", id, "kind", p.Kind, "dropped", st.Dropped)
	}

	if s.cache != nil && s.opts.CacheTTL > 0 {
		if data, err := json.Marshal(pts); err == nil {
			_ = s.cache.Set(ctx, cacheKey(ch, id), data, s.opts.CacheTTL)
		}
	}
	return pts, nil
}

func (s *PayloadService) cached(ctx context.Context, ch domain.Channel, id string) ([]domain.Coordinate, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cacheKey(ch, id))
	if err != nil || data == nil {
		metrics.CacheMisses.WithLabelValues("payload").Inc()
		return nil, false
	}
	var pts []domain.Coordinate
	if err := json.Unmarshal(data, &pts); err != nil {
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("payload").Inc()
	return payload.Parse(payload.Points(pts)), true
}

// fromCache fills out with cached entries and returns the ids still to fetch.
func (s *PayloadService) fromCache(ctx context.Context, ch domain.Channel, ids []string, out map[string][]domain.Coordinate) []string {
	if s.cache == nil {
		return ids
	}
	batch, ok := s.cache.(ports.BatchCache)
	if !ok {
		var misses []string
		for _, id := range ids {
			if pts, hit := s.cached(ctx, ch, id); hit {
				out[id] = pts
				continue
			}
			misses = append(misses, id)
		}
		return misses
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(ch, id)
	}
	found, err := batch.GetMany(ctx, keys)
	if err != nil {
		slog.WarnContext(ctx, "payload cache mget failed", "error", err)
		return ids
	}

	var misses []string
	for i, id := range ids {
		var pts []domain.Coordinate
		if data, hit := found[keys[i]]; hit && json.Unmarshal(data, &pts) == nil {
			metrics.CacheHits.WithLabelValues("payload").Inc()
			out[id] = payload.Parse(payload.Points(pts))
			continue
		}
		metrics.CacheMisses.WithLabelValues("payload").Inc()
		misses = append(misses, id)
	}
	return misses
}
