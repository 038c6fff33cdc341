package memory

import (
	"context"
	"log/slog"

	"github.com/samirrijal/routemap/internal/core/ports"
)

// Tiered reads through a local cache before a shared one and writes to both.
// Errors from the shared tier are logged and treated as misses.
type Tiered struct {
	local    *Cache
	shared   ports.BatchCache
	localTTL int
}

// NewTiered layers local in front of shared. Entries copied from the shared tier
// live localTTL seconds locally.
func NewTiered(local *Cache, shared ports.BatchCache, localTTL int) *Tiered {
	return &Tiered{local: local, shared: shared, localTTL: localTTL}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if v, _ := t.local.Get(ctx, key); v != nil {
		return v, nil
	}
	v, err := t.shared.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "shared cache get failed", "key", key, "error", err)
		return nil, nil
	}
	if v != nil {
		_ = t.local.Set(ctx, key, v, t.localTTL)
	}
	return v, nil
}

func (t *Tiered) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out, _ := t.local.GetMany(ctx, keys)
	var missing []string
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	shared, err := t.shared.GetMany(ctx, missing)
	if err != nil {
		slog.WarnContext(ctx, "shared cache mget failed", "keys", len(missing), "error", err)
		return out, nil
	}
	for k, v := range shared {
		out[k] = v
		_ = t.local.Set(ctx, k, v, t.localTTL)
	}
	return out, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	_ = t.local.Set(ctx, key, value, ttlSeconds)
	return t.shared.Set(ctx, key, value, ttlSeconds)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.local.Delete(ctx, key)
	return t.shared.Delete(ctx, key)
}
