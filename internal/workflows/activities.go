package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
)

// Prefetcher fetches payloads into the cache.
type Prefetcher interface {
	Prefetch(ctx context.Context, ch domain.Channel, ids []string) (usecases.PrefetchResult, error)
}

// PrefetchActivities holds the activity implementations for the prefetch workflow.
type PrefetchActivities struct {
	Payloads Prefetcher
}

// FetchAndCache prefetches one batch. It fails only when nothing in the batch
// could be fetched, so Temporal retries outages but not individual bad ids.
func (a *PrefetchActivities) FetchAndCache(ctx context.Context, ch domain.Channel, ids []string) (usecases.PrefetchResult, error) {
	res, err := a.Payloads.Prefetch(ctx, ch, ids)
	if err != nil && res.Fetched == 0 {
		return res, err
	}
	activity.GetLogger(ctx).Info("batch prefetched",
		"channel", ch, "fetched", res.Fetched, "points", res.Points, "failed", len(res.Failed))
	return res, nil
}
