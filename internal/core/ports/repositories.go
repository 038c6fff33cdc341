package ports

import (
	"context"
	"time"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// StoredPayload is a raw coordinate payload as persisted by the ingestor.
type StoredPayload struct {
	Channel    domain.Channel
	FileID     string
	Raw        []byte
	PointCount int
	UpdatedAt  time.Time
}

// PayloadRepository persists raw coordinate payloads per channel.
type PayloadRepository interface {
	Get(ctx context.Context, channel domain.Channel, fileID string) (*StoredPayload, error)
	GetMany(ctx context.Context, channel domain.Channel, fileIDs []string) (map[string]StoredPayload, error)
	Upsert(ctx context.Context, p *StoredPayload) error
	UpsertBatch(ctx context.Context, ps []StoredPayload) error
	Count(ctx context.Context, channel domain.Channel) (int, error)
}
