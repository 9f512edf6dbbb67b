package order

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

// DBTX is the querying subset shared by the pool and a transaction.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	CreateTx(ctx context.Context, tx DBTX, o *Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatusTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from, to Status) (bool, error)
	CancelTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from Status, reason string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, q DBTX, orderID uuid.UUID, from, to PaymentStatus) (bool, error)
	SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateTx(ctx context.Context, tx DBTX, o *Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id,
			subtotal_cents, shipping_fee_cents, tax_cents, discount_cents, total_cents,
			shipping_address, shipping_city, shipping_phone, shipping_recipient,
			billing_address, billing_city,
			payment_method, payment_status, order_status, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, o.ID, o.OrderNumber, o.UserID,
		o.SubtotalCents, o.ShippingCents, o.TaxCents, o.DiscountCents, o.TotalCents,
		o.Shipping.Address, o.Shipping.City, o.Shipping.Phone, o.Shipping.Recipient,
		o.Billing.Address, o.Billing.City,
		o.PaymentMethod, o.PaymentStatus, o.OrderStatus, o.Notes)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, variant_id, product_name, variant_sku,
				variant_name, quantity, price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, it.ID, it.OrderID, it.VariantID, it.ProductName, it.VariantSKU,
			it.VariantName, it.Quantity, it.PriceCents, it.SubtotalCents)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

const orderColumns = `
	id, order_number, user_id,
	subtotal_cents, shipping_fee_cents, tax_cents, discount_cents, total_cents,
	shipping_address, shipping_city, shipping_phone, shipping_recipient,
	billing_address, billing_city,
	payment_method, payment_status, order_status,
	notes, cancel_reason, admin_notes,
	confirmed_at, shipped_at, delivered_at, cancelled_at,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID,
		&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.DiscountCents, &o.TotalCents,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.Phone, &o.Shipping.Recipient,
		&o.Billing.Address, &o.Billing.City,
		&o.PaymentMethod, &o.PaymentStatus, &o.OrderStatus,
		&o.Notes, &o.CancelReason, &o.AdminNotes,
		&o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, variant_id, product_name, variant_sku, variant_name,
		       quantity, price_cents, subtotal_cents
		FROM order_items WHERE order_id = $1
	`, o.ID)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.ProductName,
			&it.VariantSKU, &it.VariantName, &it.Quantity, &it.PriceCents, &it.SubtotalCents); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// ListByUser returns order summaries without items, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateStatusTx moves order_status with an optimistic guard on the expected
// source status and stamps the transition's timestamp column. Returns false
// when no row matched, which the service turns into InvalidTransition or
// ConcurrencyConflict after a re-read.
func (r *PostgresRepository) UpdateStatusTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from, to Status) (bool, error) {
	stamp := ""
	switch to {
	case StatusConfirmed:
		stamp = ", confirmed_at = now()"
	case StatusShipped:
		stamp = ", shipped_at = now()"
	case StatusDelivered:
		stamp = ", delivered_at = now()"
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET order_status = $3, updated_at = now()`+stamp+`
		WHERE id = $1 AND order_status = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) CancelTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from Status, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $3, cancel_reason = $4, cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND order_status = $2
	`, orderID, from, StatusCancelled, reason)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, q DBTX, orderID uuid.UUID, from, to PaymentStatus) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET admin_notes = $2, updated_at = now() WHERE id = $1
	`, orderID, notes)
	if err != nil {
		return fmt.Errorf("set admin notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
