package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cart"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/db"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/inventory"
)

// CartStore is the slice of the cart repository checkout needs: a locked
// read of the lines and a clear, both inside checkout's transaction.
type CartStore interface {
	ItemsForCheckout(ctx context.Context, tx cart.DBTX, userID uuid.UUID) ([]cart.Item, error)
	ClearTx(ctx context.Context, tx cart.DBTX, userID uuid.UUID) error
}

// Catalog re-validates variant availability at checkout time.
type Catalog interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (catalog.Variant, error)
}

// Ledger is the stock authority. All calls run inside the surrounding
// transaction; its rollback is what unwinds partial reservations.
type Ledger interface {
	ReserveBatch(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID, lines []inventory.Line) ([]inventory.Reservation, error)
	ReleaseForOrder(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID) (int, error)
	CommitForOrder(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID) (int, error)
}

// CacheInvalidator drops the user's cached cart view after checkout empties
// the cart.
type CacheInvalidator interface {
	InvalidateView(ctx context.Context, userID uuid.UUID) error
}

// EventPublisher emits order lifecycle events. Publishing happens after
// commit and failures are logged, never surfaced to the caller.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
	PublishOrderStatusChanged(ctx context.Context, o *Order, from Status) error
	PublishPaymentStatusChanged(ctx context.Context, o *Order, from PaymentStatus) error
}

// Discounter is the optional promotions collaborator. A nil Discounter means
// discount zero.
type Discounter interface {
	Discount(ctx context.Context, userID uuid.UUID, subtotalCents int64) (int64, error)
}

// Service drives checkout and the order state machine.
type Service struct {
	db        db.Beginner
	orders    Repository
	carts     CartStore
	catalog   Catalog
	ledger    Ledger
	numbers   NumberSource
	cache     CacheInvalidator
	publisher EventPublisher
	discounts Discounter
	logger    *log.Logger
}

func NewService(pool db.Beginner, orders Repository, carts CartStore, cat Catalog, ledger Ledger,
	numbers NumberSource, cache CacheInvalidator, publisher EventPublisher, discounts Discounter,
	logger *log.Logger) *Service {
	return &Service{
		db: pool, orders: orders, carts: carts, catalog: cat, ledger: ledger,
		numbers: numbers, cache: cache, publisher: publisher, discounts: discounts,
		logger: logger,
	}
}

// CreateOrderFromCart converts the user's cart into an immutable order in a
// single transaction: validate lines, reserve stock, freeze snapshots,
// persist, clear the cart. Any failure rolls the whole attempt back; the
// caller never observes a half-reserved order.
func (s *Service) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*Order, error) {
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentMethodCOD
	}

	var created *Order
	// One retry for the rare order-number collision after a daily wrap.
	for attempt := 0; attempt < 2; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return nil, err
		}

		created, err = s.checkoutOnce(ctx, userID, number, in)
		if err != nil {
			if attempt == 0 && isUniqueViolation(err, "orders_order_number_key") {
				s.logger.Printf("order number collision on %s, retrying", number)
				continue
			}
			return nil, err
		}
		break
	}

	if err := s.cache.InvalidateView(ctx, userID); err != nil {
		s.logger.Printf("invalidate cart view after checkout for user %s: %v", userID, err)
	}
	if err := s.publisher.PublishOrderCreated(ctx, created); err != nil {
		s.logger.Printf("publish order created %s: %v", created.OrderNumber, err)
	}
	return created, nil
}

func (s *Service) checkoutOnce(ctx context.Context, userID uuid.UUID, number string, in CheckoutInput) (*Order, error) {
	orderID := uuid.New()
	var created *Order

	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		items, err := s.carts.ItemsForCheckout(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		lines := make([]inventory.Line, 0, len(items))
		orderItems := make([]Item, 0, len(items))
		var subtotal int64
		for _, item := range items {
			variant, err := s.catalog.GetVariant(ctx, item.VariantID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return &ItemUnavailableError{VariantID: item.VariantID}
				}
				return err
			}
			if !variant.Sellable() {
				return &ItemUnavailableError{VariantID: item.VariantID}
			}

			lines = append(lines, inventory.Line{VariantID: item.VariantID, Quantity: item.Quantity})
			// The order honors the price the buyer saw in the cart, not the
			// catalog price of this instant.
			orderItems = append(orderItems, Item{
				VariantID:     item.VariantID,
				ProductName:   variant.ProductName,
				VariantSKU:    variant.SKU,
				VariantName:   variant.Name,
				Quantity:      item.Quantity,
				PriceCents:    item.PriceAtAddCents,
				SubtotalCents: item.SubtotalCents(),
			})
			subtotal += item.SubtotalCents()
		}

		if _, err := s.ledger.ReserveBatch(ctx, tx, orderID, lines); err != nil {
			return err
		}

		var discount int64
		if s.discounts != nil {
			discount, err = s.discounts.Discount(ctx, userID, subtotal)
			if err != nil {
				return fmt.Errorf("compute discount: %w", err)
			}
		}

		billing := BillingDetails{Address: in.Shipping.Address, City: in.Shipping.City}
		if in.Billing != nil {
			billing = *in.Billing
		}

		o := &Order{
			ID:            orderID,
			OrderNumber:   number,
			UserID:        userID,
			Items:         orderItems,
			SubtotalCents: subtotal,
			ShippingCents: in.ShippingCents,
			TaxCents:      in.TaxCents,
			DiscountCents: discount,
			TotalCents:    subtotal + in.ShippingCents + in.TaxCents - discount,
			Shipping:      in.Shipping,
			Billing:       billing,
			PaymentMethod: in.PaymentMethod,
			PaymentStatus: PaymentUnpaid,
			OrderStatus:   StatusPending,
			Notes:         in.Notes,
		}
		if err := s.orders.CreateTx(ctx, tx, o); err != nil {
			return err
		}
		if err := s.carts.ClearTx(ctx, tx, userID); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("order %s created for user %s, total %d cents", created.OrderNumber, userID, created.TotalCents)
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.orders.GetByNumber(ctx, orderNumber)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Confirm moves PENDING -> CONFIRMED. Stock stays reserved from checkout.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.transition(ctx, orderID, StatusConfirmed, "")
}

func (s *Service) MarkProcessing(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.transition(ctx, orderID, StatusProcessing, "")
}

func (s *Service) Ship(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.transition(ctx, orderID, StatusShipped, "")
}

// Cancel stops the order and returns every reserved quantity to
// availability. Refunds for already-paid orders belong to the payment
// collaborator; only order state changes here.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*Order, error) {
	return s.transition(ctx, orderID, StatusCancelled, reason)
}

// Deliver completes the order. Payment must be confirmed; for COD the
// delivery itself confirms it. Reservations are committed here, not at
// checkout, so a cancellation any time before delivery returns the exact
// quantity to the pool.
func (s *Service) Deliver(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.OrderStatus, StatusDelivered) {
		return nil, &InvalidTransitionError{From: string(o.OrderStatus), To: string(StatusDelivered)}
	}

	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		paymentStatus := o.PaymentStatus
		if o.PaymentMethod == PaymentMethodCOD && paymentStatus == PaymentUnpaid {
			ok, err := s.orders.UpdatePaymentStatus(ctx, tx, orderID, PaymentUnpaid, PaymentPaid)
			if err != nil {
				return err
			}
			if ok {
				paymentStatus = PaymentPaid
			}
		}
		if paymentStatus != PaymentPaid {
			return ErrPaymentNotConfirmed
		}

		ok, err := s.orders.UpdateStatusTx(ctx, tx, orderID, o.OrderStatus, StatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrencyConflict
		}

		if _, err := s.ledger.CommitForOrder(ctx, tx, orderID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.finishTransition(ctx, orderID, o.OrderStatus)
}

func (s *Service) transition(ctx context.Context, orderID uuid.UUID, to Status, reason string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.OrderStatus, to) {
		return nil, &InvalidTransitionError{From: string(o.OrderStatus), To: string(to)}
	}

	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		var ok bool
		var err error
		if to == StatusCancelled {
			ok, err = s.orders.CancelTx(ctx, tx, orderID, o.OrderStatus, reason)
		} else {
			ok, err = s.orders.UpdateStatusTx(ctx, tx, orderID, o.OrderStatus, to)
		}
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race: someone moved the order between our read and
			// this update.
			return ErrConcurrencyConflict
		}

		if to == StatusCancelled {
			released, err := s.ledger.ReleaseForOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if released > 0 {
				s.logger.Printf("order %s cancelled, released reservations on %d variant(s)", o.OrderNumber, released)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.finishTransition(ctx, orderID, o.OrderStatus)
}

func (s *Service) finishTransition(ctx context.Context, orderID uuid.UUID, from Status) (*Order, error) {
	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, updated, from); err != nil {
		s.logger.Printf("publish status change for order %s: %v", updated.OrderNumber, err)
	}
	return updated, nil
}

// MarkPaymentPaid records the payment collaborator's success report.
// Re-reporting the current status is accepted as an idempotent no-op.
func (s *Service) MarkPaymentPaid(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.markPayment(ctx, orderID, PaymentPaid)
}

func (s *Service) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.markPayment(ctx, orderID, PaymentFailed)
}

func (s *Service) markPayment(ctx context.Context, orderID uuid.UUID, to PaymentStatus) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == to {
		return o, nil
	}
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return nil, &InvalidTransitionError{From: string(o.PaymentStatus), To: string(to)}
	}

	var updated *Order
	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		ok, err := s.orders.UpdatePaymentStatus(ctx, tx, orderID, o.PaymentStatus, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrencyConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.PublishPaymentStatusChanged(ctx, updated, o.PaymentStatus); err != nil {
		s.logger.Printf("publish payment change for order %s: %v", updated.OrderNumber, err)
	}
	return updated, nil
}

func (s *Service) SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*Order, error) {
	if err := s.orders.SetAdminNotes(ctx, orderID, notes); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
