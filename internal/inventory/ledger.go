package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DBTX is the querying subset shared by the pool and a pgx transaction, so
// the same statement helpers serve standalone calls and checkout's
// transaction-scoped calls.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Ledger is the single writer of variant stock counters. Reserve is a single
// conditional UPDATE guarded by the availability invariant, so concurrent
// reserves against the same variant can never jointly exceed capacity.
type Ledger struct {
	pool DBPool
}

func NewLedger(pool DBPool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Stock(ctx context.Context, variantID uuid.UUID) (VariantStock, error) {
	var s VariantStock
	row := l.pool.QueryRow(ctx,
		`SELECT id, stock, reserved_stock FROM product_variants WHERE id = $1`, variantID)
	if err := row.Scan(&s.VariantID, &s.Stock, &s.Reserved); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VariantStock{}, ErrNotFound
		}
		return VariantStock{}, fmt.Errorf("select stock: %w", err)
	}
	return s, nil
}

func (l *Ledger) AvailableStock(ctx context.Context, variantID uuid.UUID) (int, error) {
	s, err := l.Stock(ctx, variantID)
	if err != nil {
		return 0, err
	}
	return s.Available(), nil
}

// SetStock sets the physical count for a variant, used by admin/seed flows.
// Refuses to drop stock below the currently reserved quantity.
func (l *Ledger) SetStock(ctx context.Context, variantID uuid.UUID, stock int) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE product_variants
		SET stock = $2, updated_at = now()
		WHERE id = $1 AND reserved_stock <= $2
	`, variantID, stock)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.Stock(ctx, variantID); err != nil {
			return err
		}
		return fmt.Errorf("stock %d below reserved quantity for variant %s", stock, variantID)
	}
	return nil
}

// Reserve takes a single-line reservation in its own transaction.
func (l *Ledger) Reserve(ctx context.Context, orderID, variantID uuid.UUID, quantity int) (Reservation, error) {
	var res Reservation
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reservations, err := l.ReserveBatch(ctx, tx, orderID, []Line{{VariantID: variantID, Quantity: quantity}})
	if err != nil {
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return reservations[0], nil
}

// ReserveBatch reserves every line or none. It runs against the caller's
// transaction: on a shortfall the returned error names all failing variants
// and the caller's rollback undoes any increments already applied.
func (l *Ledger) ReserveBatch(ctx context.Context, tx DBTX, orderID uuid.UUID, lines []Line) ([]Reservation, error) {
	reservations := make([]Reservation, 0, len(lines))
	var short []ShortLine

	for _, line := range lines {
		if len(short) > 0 {
			// Already failing; only collect availability for the report.
			s, err := l.shortInfo(ctx, tx, line)
			if err != nil {
				return nil, err
			}
			if s.Available < s.Requested {
				short = append(short, s)
			}
			continue
		}

		tag, err := tx.Exec(ctx, `
			UPDATE product_variants
			SET reserved_stock = reserved_stock + $2, updated_at = now()
			WHERE id = $1 AND stock - reserved_stock >= $2
		`, line.VariantID, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("reserve variant %s: %w", line.VariantID, err)
		}
		if tag.RowsAffected() == 0 {
			s, err := l.shortInfo(ctx, tx, line)
			if err != nil {
				return nil, err
			}
			short = append(short, s)
			continue
		}

		res := Reservation{
			Token:     uuid.New(),
			OrderID:   orderID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			State:     StateHeld,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO stock_reservations (id, order_id, variant_id, quantity, state)
			VALUES ($1, $2, $3, $4, $5)
		`, res.Token, res.OrderID, res.VariantID, res.Quantity, res.State)
		if err != nil {
			return nil, fmt.Errorf("insert reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	if len(short) > 0 {
		return nil, &InsufficientStockError{Short: short}
	}
	return reservations, nil
}

func (l *Ledger) shortInfo(ctx context.Context, tx DBTX, line Line) (ShortLine, error) {
	var stock, reserved int
	row := tx.QueryRow(ctx,
		`SELECT stock, reserved_stock FROM product_variants WHERE id = $1`, line.VariantID)
	if err := row.Scan(&stock, &reserved); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ShortLine{}, fmt.Errorf("variant %s: %w", line.VariantID, ErrNotFound)
		}
		return ShortLine{}, fmt.Errorf("select stock: %w", err)
	}
	return ShortLine{VariantID: line.VariantID, Requested: line.Quantity, Available: stock - reserved}, nil
}

// Commit permanently consumes a held reservation: stock and reserved_stock
// drop together. Committing a token that is not held is a no-op.
func (l *Ledger) Commit(ctx context.Context, token uuid.UUID) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := l.CommitTx(ctx, tx, token); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) CommitTx(ctx context.Context, tx DBTX, token uuid.UUID) error {
	return l.settleToken(ctx, tx, token, StateCommitted)
}

// Release returns a held reservation's quantity to availability: only
// reserved_stock drops. Releasing a token that is not held is a no-op.
func (l *Ledger) Release(ctx context.Context, token uuid.UUID) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := l.ReleaseTx(ctx, tx, token); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) ReleaseTx(ctx context.Context, tx DBTX, token uuid.UUID) error {
	return l.settleToken(ctx, tx, token, StateReleased)
}

func (l *Ledger) settleToken(ctx context.Context, tx DBTX, token uuid.UUID, state string) error {
	var variantID uuid.UUID
	var quantity int
	row := tx.QueryRow(ctx, `
		UPDATE stock_reservations
		SET state = $2, updated_at = now()
		WHERE id = $1 AND state = 'held'
		RETURNING variant_id, quantity
	`, token, state)
	if err := row.Scan(&variantID, &quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return l.tokenNoop(ctx, tx, token)
		}
		return fmt.Errorf("settle reservation: %w", err)
	}

	var stmt string
	if state == StateCommitted {
		stmt = `UPDATE product_variants
			SET stock = stock - $2, reserved_stock = reserved_stock - $2, updated_at = now()
			WHERE id = $1`
	} else {
		stmt = `UPDATE product_variants
			SET reserved_stock = reserved_stock - $2, updated_at = now()
			WHERE id = $1`
	}
	if _, err := tx.Exec(ctx, stmt, variantID, quantity); err != nil {
		return fmt.Errorf("update stock counters: %w", err)
	}
	return nil
}

// tokenNoop distinguishes an already-settled token (idempotent success) from
// an unknown one.
func (l *Ledger) tokenNoop(ctx context.Context, tx DBTX, token uuid.UUID) error {
	var state string
	row := tx.QueryRow(ctx, `SELECT state FROM stock_reservations WHERE id = $1`, token)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reservation %s: %w", token, ErrNotFound)
		}
		return fmt.Errorf("select reservation: %w", err)
	}
	return nil
}

// ReleaseForOrder releases every held reservation of an order in one
// statement. Used by cancel and by checkout cleanup.
func (l *Ledger) ReleaseForOrder(ctx context.Context, tx DBTX, orderID uuid.UUID) (int, error) {
	return l.settleOrder(ctx, tx, orderID, StateReleased)
}

// CommitForOrder commits every held reservation of an order. Used by deliver.
func (l *Ledger) CommitForOrder(ctx context.Context, tx DBTX, orderID uuid.UUID) (int, error) {
	return l.settleOrder(ctx, tx, orderID, StateCommitted)
}

const releaseOrderSQL = `
	WITH settled AS (
		UPDATE stock_reservations
		SET state = 'released', updated_at = now()
		WHERE order_id = $1 AND state = 'held'
		RETURNING variant_id, quantity
	), agg AS (
		SELECT variant_id, SUM(quantity)::int AS quantity
		FROM settled GROUP BY variant_id
	)
	UPDATE product_variants v
	SET reserved_stock = v.reserved_stock - a.quantity, updated_at = now()
	FROM agg a
	WHERE v.id = a.variant_id
`

const commitOrderSQL = `
	WITH settled AS (
		UPDATE stock_reservations
		SET state = 'committed', updated_at = now()
		WHERE order_id = $1 AND state = 'held'
		RETURNING variant_id, quantity
	), agg AS (
		SELECT variant_id, SUM(quantity)::int AS quantity
		FROM settled GROUP BY variant_id
	)
	UPDATE product_variants v
	SET stock = v.stock - a.quantity,
	    reserved_stock = v.reserved_stock - a.quantity,
	    updated_at = now()
	FROM agg a
	WHERE v.id = a.variant_id
`

func (l *Ledger) settleOrder(ctx context.Context, tx DBTX, orderID uuid.UUID, state string) (int, error) {
	stmt := releaseOrderSQL
	if state == StateCommitted {
		stmt = commitOrderSQL
	}
	tag, err := tx.Exec(ctx, stmt, orderID)
	if err != nil {
		return 0, fmt.Errorf("settle order reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
