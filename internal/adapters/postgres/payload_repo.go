package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/ports"
)

// PayloadRepo implements ports.PayloadRepository over the route_payloads and
// space_payloads tables.
type PayloadRepo struct {
	db *DB
}

func NewPayloadRepo(db *DB) *PayloadRepo {
	return &PayloadRepo{db: db}
}

func tableFor(ch domain.Channel) (string, error) {
	switch ch {
	case domain.ChannelRoute:
		return "route_payloads", nil
	case domain.ChannelSpace:
		return "space_payloads", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownChannel, ch)
}

func (r *PayloadRepo) Get(ctx context.Context, ch domain.Channel, fileID string) (*ports.StoredPayload, error) {
	table, err := tableFor(ch)
	if err != nil {
		return nil, err
	}
	p := &ports.StoredPayload{Channel: ch}
	err = r.db.Pool.QueryRow(ctx,
		`SELECT file_id, raw, point_count, updated_at FROM `+table+` WHERE file_id = $1`,
		fileID,
	).Scan(&p.FileID, &p.Raw, &p.PointCount, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPayloadNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PayloadRepo) GetMany(ctx context.Context, ch domain.Channel, fileIDs []string) (map[string]ports.StoredPayload, error) {
	table, err := tableFor(ch)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT file_id, raw, point_count, updated_at FROM `+table+` WHERE file_id = ANY($1)`,
		fileIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]ports.StoredPayload, len(fileIDs))
	for rows.Next() {
		p := ports.StoredPayload{Channel: ch}
		if err := rows.Scan(&p.FileID, &p.Raw, &p.PointCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.FileID] = p
	}
	return out, rows.Err()
}

func upsertSQL(table string) string {
	return `
		INSERT INTO ` + table + ` (file_id, raw, point_count, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (file_id) DO UPDATE
		SET raw = EXCLUDED.raw, point_count = EXCLUDED.point_count, updated_at = NOW()
	`
}

func (r *PayloadRepo) Upsert(ctx context.Context, p *ports.StoredPayload) error {
	table, err := tableFor(p.Channel)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, upsertSQL(table), p.FileID, p.Raw, p.PointCount)
	return err
}

// UpsertBatch writes many payloads using pgx.Batch.
func (r *PayloadRepo) UpsertBatch(ctx context.Context, ps []ports.StoredPayload) error {
	batch := &pgx.Batch{}
	for _, p := range ps {
		table, err := tableFor(p.Channel)
		if err != nil {
			return err
		}
		batch.Queue(upsertSQL(table), p.FileID, p.Raw, p.PointCount)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func (r *PayloadRepo) Count(ctx context.Context, ch domain.Channel) (int, error) {
	table, err := tableFor(ch)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}

// PayloadSource serves coordinate payloads straight from the repository.
type PayloadSource struct {
	repo ports.PayloadRepository
}

// NewPayloadSource implements ports.CoordinateSource over a PayloadRepository.
func NewPayloadSource(repo ports.PayloadRepository) *PayloadSource {
	return &PayloadSource{repo: repo}
}

func (s *PayloadSource) FetchPayload(ctx context.Context, ch domain.Channel, fileID string) ([]byte, error) {
	p, err := s.repo.Get(ctx, ch, fileID)
	if err != nil {
		return nil, err
	}
	return p.Raw, nil
}
