package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
)

// TaskQueue is the default task queue of the prefetch worker.
const TaskQueue = "payload-prefetch"

const defaultBatchSize = 50

// PrefetchInput is the input for the prefetch workflow.
type PrefetchInput struct {
	Channel   domain.Channel
	FileIDs   []string
	BatchSize int
	// RetryDelay is waited before ids that failed in the first pass are tried once more.
	RetryDelay time.Duration
}

// PrefetchSummary reports what a prefetch run warmed.
type PrefetchSummary struct {
	Batches int
	Fetched int
	Points  int
	Failed  []string
}

func (s *PrefetchSummary) add(r usecases.PrefetchResult) {
	s.Batches++
	s.Fetched += r.Fetched
	s.Points += r.Points
}

// PrefetchWorkflow warms the payload cache for a list of file ids. Ids are
// fetched in batches; a batch in which nothing could be fetched is retried by
// Temporal, ids that failed individually get one more pass after RetryDelay.
func PrefetchWorkflow(ctx workflow.Context, input PrefetchInput) (PrefetchSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting prefetch workflow", "channel", input.Channel, "ids", len(input.FileIDs))

	size := input.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	delay := input.RetryDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var summary PrefetchSummary
	var retry []string

	// First pass
	for _, batch := range chunk(input.FileIDs, size) {
		var res usecases.PrefetchResult
		if err := workflow.ExecuteActivity(ctx, "FetchAndCache", input.Channel, batch).Get(ctx, &res); err != nil {
			logger.Warn("prefetch batch failed", "size", len(batch), "error", err)
			retry = append(retry, batch...)
			continue
		}
		summary.add(res)
		retry = append(retry, res.Failed...)
	}

	if len(retry) == 0 {
		logger.Info("Prefetch complete", "fetched", summary.Fetched)
		return summary, nil
	}

	// Second pass over whatever failed
	if err := workflow.Sleep(ctx, delay); err != nil {
		return summary, err
	}
	for _, batch := range chunk(retry, size) {
		var res usecases.PrefetchResult
		if err := workflow.ExecuteActivity(ctx, "FetchAndCache", input.Channel, batch).Get(ctx, &res); err != nil {
			summary.Failed = append(summary.Failed, batch...)
			continue
		}
		summary.add(res)
		summary.Failed = append(summary.Failed, res.Failed...)
	}

	logger.Info("Prefetch complete", "fetched", summary.Fetched, "failed", len(summary.Failed))
	return summary, nil
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
