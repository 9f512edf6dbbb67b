package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository hands out monotonically increasing values per partition key.
// Order numbers and event sequences both draw from it.
type Repository interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// DB matches the single method from *pgxpool.Pool that we use.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &repo{db: db}
}

func (r *repo) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, `
		INSERT INTO sequences (partition_key, last_value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (partition_key)
		DO UPDATE SET last_value = sequences.last_value + 1, updated_at = now()
		RETURNING last_value
	`, partitionKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
