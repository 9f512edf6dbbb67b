package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrVariantUnavailable  = errors.New("variant is not available")
	ErrConcurrencyConflict = errors.New("concurrent cart update, retry the operation")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DBTX is the querying subset shared by the pool and a transaction.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	GetView(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int, priceCents int64) error
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	RemoveItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	Items(ctx context.Context, userID uuid.UUID) ([]Item, error)
	ItemCount(ctx context.Context, userID uuid.UUID) (int, error)

	// Transaction-scoped operations used by checkout.
	ItemsForCheckout(ctx context.Context, tx DBTX, userID uuid.UUID) ([]Item, error)
	ClearTx(ctx context.Context, tx DBTX, userID uuid.UUID) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ensureCart creates the user's cart on first use. The upsert keeps lazy
// creation idempotent under the per-user unique constraint.
func (r *PostgresRepository) ensureCart(ctx context.Context, tx DBTX, userID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id
	`, uuid.New(), userID).Scan(&cartID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensure cart: %w", err)
	}
	return cartID, nil
}

// lockCart serializes mutations of one user's cart. Carts of different users
// live on different rows and do not contend.
func (r *PostgresRepository) lockCart(ctx context.Context, tx DBTX, userID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lock cart: %w", err)
	}
	return cartID, nil
}

func (r *PostgresRepository) GetView(ctx context.Context, userID uuid.UUID) (*View, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := r.ensureCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{CartID: cartID, UserID: userID, Items: []ViewItem{}}
	rows, err := tx.Query(ctx, `
		SELECT i.id, i.variant_id, p.name, v.name, v.sku, i.quantity, i.price_at_add_cents
		FROM cart_items i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.cart_id = $1
		ORDER BY i.created_at
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it ViewItem
		if err := rows.Scan(&it.ItemID, &it.VariantID, &it.ProductName, &it.VariantName,
			&it.VariantSKU, &it.Quantity, &it.PriceAtAddCents); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		it.SubtotalCents = it.PriceAtAddCents * int64(it.Quantity)
		view.Items = append(view.Items, it)
		view.TotalItems += it.Quantity
		view.SubtotalCents += it.SubtotalCents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return view, nil
}

func (r *PostgresRepository) AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int, priceCents int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := r.ensureCart(ctx, tx, userID)
	if err != nil {
		return err
	}
	if _, err := r.lockCart(ctx, tx, userID); err != nil {
		return err
	}

	// Merging an existing line keeps its original price_at_add; only a brand
	// new line stores the snapshot passed in.
	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, price_at_add_cents)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, variant_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
	`, uuid.New(), cartID, variantID, quantity, priceCents)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := r.lockCart(ctx, tx, userID)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE id = $1 AND cart_id = $2
	`, itemID, cartID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RemoveItem is a no-op success when the item is already gone.
func (r *PostgresRepository) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return r.RemoveItems(ctx, userID, []uuid.UUID{itemID})
}

func (r *PostgresRepository) RemoveItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := r.lockCart(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND id = ANY($2)`, cartID, itemIDs)
	if err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.ClearTx(ctx, tx, userID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ClearTx empties the cart but keeps the cart row; checkout clears, it does
// not delete.
func (r *PostgresRepository) ClearTx(ctx context.Context, tx DBTX, userID uuid.UUID) error {
	cartID, err := r.lockCart(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Items(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	return r.items(ctx, r.pool, userID, false)
}

// ItemsForCheckout locks the cart row for the duration of the caller's
// transaction so no cart mutation can interleave with checkout.
func (r *PostgresRepository) ItemsForCheckout(ctx context.Context, tx DBTX, userID uuid.UUID) ([]Item, error) {
	return r.items(ctx, tx, userID, true)
}

func (r *PostgresRepository) items(ctx context.Context, q DBTX, userID uuid.UUID, lock bool) ([]Item, error) {
	var cartID uuid.UUID
	var err error
	if lock {
		cartID, err = r.lockCart(ctx, q, userID)
	} else {
		err = q.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, cart_id, variant_id, quantity, price_at_add_cents
		FROM cart_items WHERE cart_id = $1
		ORDER BY created_at
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity, &it.PriceAtAddCents); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) ItemCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.quantity), 0)
		FROM cart_items i
		JOIN carts c ON c.id = i.cart_id
		WHERE c.user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return count, nil
}
