package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (Variant, error)
	UpsertProduct(ctx context.Context, p Product) error
	UpsertVariant(ctx context.Context, v Variant) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetVariant(ctx context.Context, variantID uuid.UUID) (Variant, error) {
	var v Variant
	row := r.pool.QueryRow(ctx, `
		SELECT v.id, v.product_id, v.sku, v.name, v.price_cents, v.is_active,
		       p.name, p.is_active
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`, variantID)
	err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.PriceCents,
		&v.IsActive, &v.ProductName, &v.ProductActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, ErrNotFound
		}
		return Variant{}, fmt.Errorf("select variant: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) UpsertProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, name, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, updated_at = now()
	`, p.ID, p.Name, p.IsActive)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertVariant writes catalog fields only. Stock columns belong to the
// inventory ledger and are never touched here.
func (r *PostgresRepository) UpsertVariant(ctx context.Context, v Variant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO product_variants (id, product_id, sku, name, price_cents, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku, name = EXCLUDED.name,
		    price_cents = EXCLUDED.price_cents, is_active = EXCLUDED.is_active,
		    updated_at = now()
	`, v.ID, v.ProductID, v.SKU, v.Name, v.PriceCents, v.IsActive)
	if err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}
