package order

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cart"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/inventory"
)

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeBeginner struct{}

func (fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order

	createErr     error
	createErrOnce bool
	forceConflict bool
	createCalls   int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*Order)}
}

func (f *fakeOrderStore) CreateTx(ctx context.Context, tx DBTX, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		err := f.createErr
		if f.createErrOnce {
			f.createErr = nil
		}
		return err
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNumber == orderNumber {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeOrderStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateStatusTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from, to Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceConflict {
		return false, nil
	}
	o, ok := f.orders[orderID]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	return true, nil
}

func (f *fakeOrderStore) CancelTx(ctx context.Context, tx DBTX, orderID uuid.UUID, from Status, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceConflict {
		return false, nil
	}
	o, ok := f.orders[orderID]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = StatusCancelled
	o.CancelReason = reason
	return true, nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(ctx context.Context, q DBTX, orderID uuid.UUID, from, to PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	return true, nil
}

func (f *fakeOrderStore) SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.AdminNotes = notes
	return nil
}

type fakeCartStore struct {
	items   []cart.Item
	cleared bool
}

func (f *fakeCartStore) ItemsForCheckout(ctx context.Context, tx cart.DBTX, userID uuid.UUID) ([]cart.Item, error) {
	return f.items, nil
}

func (f *fakeCartStore) ClearTx(ctx context.Context, tx cart.DBTX, userID uuid.UUID) error {
	f.cleared = true
	f.items = nil
	return nil
}

type fakeCatalog struct {
	variants map[uuid.UUID]catalog.Variant
}

func (f *fakeCatalog) GetVariant(ctx context.Context, variantID uuid.UUID) (catalog.Variant, error) {
	v, ok := f.variants[variantID]
	if !ok {
		return catalog.Variant{}, catalog.ErrNotFound
	}
	return v, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	available map[uuid.UUID]int
	reserved  map[uuid.UUID]int

	commitCalls  int
	releaseCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{available: make(map[uuid.UUID]int), reserved: make(map[uuid.UUID]int)}
}

func (f *fakeLedger) ReserveBatch(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID, lines []inventory.Line) ([]inventory.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var short []inventory.ShortLine
	for _, line := range lines {
		if f.available[line.VariantID]-f.reserved[line.VariantID] < line.Quantity {
			short = append(short, inventory.ShortLine{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: f.available[line.VariantID] - f.reserved[line.VariantID],
			})
		}
	}
	if len(short) > 0 {
		return nil, &inventory.InsufficientStockError{Short: short}
	}
	out := make([]inventory.Reservation, 0, len(lines))
	for _, line := range lines {
		f.reserved[line.VariantID] += line.Quantity
		out = append(out, inventory.Reservation{
			Token: uuid.New(), OrderID: orderID,
			VariantID: line.VariantID, Quantity: line.Quantity, State: inventory.StateHeld,
		})
	}
	return out, nil
}

func (f *fakeLedger) ReleaseForOrder(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	n := len(f.reserved)
	for k := range f.reserved {
		delete(f.reserved, k)
	}
	return n, nil
}

func (f *fakeLedger) CommitForOrder(ctx context.Context, tx inventory.DBTX, orderID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	n := 0
	for k, q := range f.reserved {
		f.available[k] -= q
		delete(f.reserved, k)
		n++
	}
	return n, nil
}

type fakeNumbers struct {
	n int
}

func (f *fakeNumbers) Next(ctx context.Context) (string, error) {
	f.n++
	return "ORD-20250101-0000" + string(rune('0'+f.n)), nil
}

type fakeInvalidator struct {
	invalidated []uuid.UUID
}

func (f *fakeInvalidator) InvalidateView(ctx context.Context, userID uuid.UUID) error {
	f.invalidated = append(f.invalidated, userID)
	return nil
}

type fakePublisher struct {
	created        []*Order
	statusChanges  []Status
	paymentChanges []PaymentStatus
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, o *Order) error {
	f.created = append(f.created, o)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, o *Order, from Status) error {
	f.statusChanges = append(f.statusChanges, from)
	return nil
}

func (f *fakePublisher) PublishPaymentStatusChanged(ctx context.Context, o *Order, from PaymentStatus) error {
	f.paymentChanges = append(f.paymentChanges, from)
	return nil
}

type fakeDiscounter struct {
	discount int64
}

func (f *fakeDiscounter) Discount(ctx context.Context, userID uuid.UUID, subtotalCents int64) (int64, error) {
	return f.discount, nil
}

type checkoutEnv struct {
	svc       *Service
	orders    *fakeOrderStore
	carts     *fakeCartStore
	catalog   *fakeCatalog
	ledger    *fakeLedger
	cache     *fakeInvalidator
	publisher *fakePublisher
}

func newCheckoutEnv(discounts Discounter) *checkoutEnv {
	env := &checkoutEnv{
		orders:    newFakeOrderStore(),
		carts:     &fakeCartStore{},
		catalog:   &fakeCatalog{variants: make(map[uuid.UUID]catalog.Variant)},
		ledger:    newFakeLedger(),
		cache:     &fakeInvalidator{},
		publisher: &fakePublisher{},
	}
	logger := log.New(io.Discard, "", 0)
	env.svc = NewService(fakeBeginner{}, env.orders, env.carts, env.catalog, env.ledger,
		&fakeNumbers{}, env.cache, env.publisher, discounts, logger)
	return env
}

// addVariant registers a sellable variant with stock and returns its id.
func (e *checkoutEnv) addVariant(name string, priceCents int64, stock int) uuid.UUID {
	id := uuid.New()
	e.catalog.variants[id] = catalog.Variant{
		ID: id, ProductID: uuid.New(), SKU: "SKU-" + name, Name: name,
		PriceCents: priceCents, IsActive: true, ProductName: "Product " + name, ProductActive: true,
	}
	e.ledger.available[id] = stock
	return id
}

func (e *checkoutEnv) addCartItem(variantID uuid.UUID, quantity int, priceAtAdd int64) {
	e.carts.items = append(e.carts.items, cart.Item{
		ID: uuid.New(), CartID: uuid.New(), VariantID: variantID,
		Quantity: quantity, PriceAtAddCents: priceAtAdd,
	})
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newCheckoutEnv(nil)

	_, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{
		PaymentMethod: PaymentMethodCOD,
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	env := newCheckoutEnv(nil)
	userID := uuid.New()

	// Price changed to 1299 after the item entered the cart at 999; the
	// order must keep the cart price.
	v1 := env.addVariant("tee", 1299, 10)
	v2 := env.addVariant("mug", 500, 3)
	env.addCartItem(v1, 2, 999)
	env.addCartItem(v2, 3, 500)

	o, err := env.svc.CreateOrderFromCart(context.Background(), userID, CheckoutInput{
		Shipping:      ShippingDetails{Address: "1 Main St", City: "Hanoi", Phone: "555", Recipient: "An"},
		PaymentMethod: PaymentMethodCOD,
		ShippingCents: 300,
		TaxCents:      200,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if o.OrderStatus != StatusPending {
		t.Fatalf("expected PENDING, got %s", o.OrderStatus)
	}
	if o.PaymentStatus != PaymentUnpaid {
		t.Fatalf("expected UNPAID, got %s", o.PaymentStatus)
	}
	if o.SubtotalCents != 2*999+3*500 {
		t.Fatalf("unexpected subtotal %d", o.SubtotalCents)
	}
	if o.TotalCents != o.SubtotalCents+300+200 {
		t.Fatalf("unexpected total %d", o.TotalCents)
	}
	if len(o.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(o.Items))
	}
	if o.Items[0].PriceCents != 999 {
		t.Fatalf("expected cart price 999 on order item, got %d", o.Items[0].PriceCents)
	}
	if o.Items[0].ProductName != "Product tee" || o.Items[0].VariantSKU != "SKU-tee" {
		t.Fatalf("missing catalog snapshot on item: %+v", o.Items[0])
	}

	// Billing fell back to the shipping address.
	if o.Billing.Address != "1 Main St" || o.Billing.City != "Hanoi" {
		t.Fatalf("unexpected billing %+v", o.Billing)
	}

	if env.ledger.reserved[v1] != 2 || env.ledger.reserved[v2] != 3 {
		t.Fatalf("unexpected reservations %+v", env.ledger.reserved)
	}
	if !env.carts.cleared {
		t.Fatalf("expected cart to be cleared")
	}
	if len(env.cache.invalidated) != 1 || env.cache.invalidated[0] != userID {
		t.Fatalf("expected cart view invalidation for %s", userID)
	}
	if len(env.publisher.created) != 1 {
		t.Fatalf("expected one order created event, got %d", len(env.publisher.created))
	}
}

func TestCheckoutSeparateBilling(t *testing.T) {
	env := newCheckoutEnv(nil)
	v := env.addVariant("tee", 999, 5)
	env.addCartItem(v, 1, 999)

	o, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{
		Shipping:      ShippingDetails{Address: "1 Main St", City: "Hanoi", Recipient: "An"},
		Billing:       &BillingDetails{Address: "9 Invoice Rd", City: "Hue"},
		PaymentMethod: PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if o.Billing.Address != "9 Invoice Rd" || o.Billing.City != "Hue" {
		t.Fatalf("unexpected billing %+v", o.Billing)
	}
}

func TestCheckoutItemUnavailable(t *testing.T) {
	t.Run("variant gone from catalog", func(t *testing.T) {
		env := newCheckoutEnv(nil)
		missing := uuid.New()
		env.addCartItem(missing, 1, 999)

		_, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{PaymentMethod: PaymentMethodCOD})
		var unavailable *ItemUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("expected ItemUnavailableError, got %v", err)
		}
		if unavailable.VariantID != missing {
			t.Fatalf("expected variant %s in error, got %s", missing, unavailable.VariantID)
		}
	})

	t.Run("variant deactivated", func(t *testing.T) {
		env := newCheckoutEnv(nil)
		v := env.addVariant("tee", 999, 5)
		dead := env.catalog.variants[v]
		dead.IsActive = false
		env.catalog.variants[v] = dead
		env.addCartItem(v, 1, 999)

		_, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{PaymentMethod: PaymentMethodCOD})
		var unavailable *ItemUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("expected ItemUnavailableError, got %v", err)
		}
		if env.orders.createCalls != 0 {
			t.Fatalf("order must not be created")
		}
	})
}

func TestCheckoutInsufficientStock(t *testing.T) {
	env := newCheckoutEnv(nil)
	v1 := env.addVariant("tee", 999, 10)
	v2 := env.addVariant("mug", 500, 1)
	env.addCartItem(v1, 2, 999)
	env.addCartItem(v2, 5, 500)

	_, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{PaymentMethod: PaymentMethodCOD})

	var short *inventory.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(short.Short) != 1 || short.Short[0].VariantID != v2 {
		t.Fatalf("unexpected short lines %+v", short.Short)
	}
	if short.Short[0].Requested != 5 || short.Short[0].Available != 1 {
		t.Fatalf("unexpected short detail %+v", short.Short[0])
	}

	if env.orders.createCalls != 0 {
		t.Fatalf("order must not be created on shortfall")
	}
	if env.carts.cleared {
		t.Fatalf("cart must survive a failed checkout")
	}
	if len(env.publisher.created) != 0 {
		t.Fatalf("no event on failed checkout")
	}
}

func TestCheckoutAppliesDiscount(t *testing.T) {
	env := newCheckoutEnv(&fakeDiscounter{discount: 150})
	v := env.addVariant("tee", 999, 5)
	env.addCartItem(v, 1, 999)

	o, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{
		PaymentMethod: PaymentMethodCOD, ShippingCents: 100,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if o.DiscountCents != 150 {
		t.Fatalf("expected discount 150, got %d", o.DiscountCents)
	}
	if o.TotalCents != 999+100-150 {
		t.Fatalf("unexpected total %d", o.TotalCents)
	}
}

func TestCheckoutRetriesOnNumberCollision(t *testing.T) {
	env := newCheckoutEnv(nil)
	v := env.addVariant("tee", 999, 5)
	env.addCartItem(v, 1, 999)

	env.orders.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	env.orders.createErrOnce = true

	o, err := env.svc.CreateOrderFromCart(context.Background(), uuid.New(), CheckoutInput{PaymentMethod: PaymentMethodCOD})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if env.orders.createCalls != 2 {
		t.Fatalf("expected 2 create attempts, got %d", env.orders.createCalls)
	}
	if o == nil || o.OrderNumber == "" {
		t.Fatalf("expected order with number, got %+v", o)
	}
}

func seedOrder(env *checkoutEnv, status Status, method PaymentMethod, payment PaymentStatus) *Order {
	o := &Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20250101-00042",
		UserID:        uuid.New(),
		OrderStatus:   status,
		PaymentMethod: method,
		PaymentStatus: payment,
	}
	env.orders.orders[o.ID] = o
	return o
}

func TestConfirm(t *testing.T) {
	env := newCheckoutEnv(nil)
	o := seedOrder(env, StatusPending, PaymentMethodCOD, PaymentUnpaid)

	updated, err := env.svc.Confirm(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.OrderStatus != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", updated.OrderStatus)
	}
	if len(env.publisher.statusChanges) != 1 || env.publisher.statusChanges[0] != StatusPending {
		t.Fatalf("expected status change event from PENDING")
	}
}

func TestInvalidTransitions(t *testing.T) {
	env := newCheckoutEnv(nil)

	t.Run("deliver from pending", func(t *testing.T) {
		o := seedOrder(env, StatusPending, PaymentMethodCOD, PaymentUnpaid)
		_, err := env.svc.Deliver(context.Background(), o.ID)
		var bad *InvalidTransitionError
		if !errors.As(err, &bad) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if bad.From != "PENDING" || bad.To != "DELIVERED" {
			t.Fatalf("unexpected transition error %+v", bad)
		}
	})

	t.Run("cancel after delivery", func(t *testing.T) {
		o := seedOrder(env, StatusDelivered, PaymentMethodCOD, PaymentPaid)
		_, err := env.svc.Cancel(context.Background(), o.ID, "changed my mind")
		var bad *InvalidTransitionError
		if !errors.As(err, &bad) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("ship from confirmed", func(t *testing.T) {
		o := seedOrder(env, StatusConfirmed, PaymentMethodCOD, PaymentUnpaid)
		_, err := env.svc.Ship(context.Background(), o.ID)
		var bad *InvalidTransitionError
		if !errors.As(err, &bad) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})
}

func TestCancelReleasesReservations(t *testing.T) {
	env := newCheckoutEnv(nil)
	v := env.addVariant("tee", 999, 5)
	env.ledger.reserved[v] = 2
	o := seedOrder(env, StatusProcessing, PaymentMethodCOD, PaymentUnpaid)

	updated, err := env.svc.Cancel(context.Background(), o.ID, "customer request")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.OrderStatus != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", updated.OrderStatus)
	}
	if updated.CancelReason != "customer request" {
		t.Fatalf("expected cancel reason to be stored, got %q", updated.CancelReason)
	}
	if env.ledger.releaseCalls != 1 {
		t.Fatalf("expected reservations to be released")
	}
	if env.ledger.reserved[v] != 0 {
		t.Fatalf("expected reservation returned, got %d", env.ledger.reserved[v])
	}
}

func TestTransitionConflict(t *testing.T) {
	env := newCheckoutEnv(nil)
	o := seedOrder(env, StatusPending, PaymentMethodCOD, PaymentUnpaid)
	env.orders.forceConflict = true

	_, err := env.svc.Confirm(context.Background(), o.ID)
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestDeliverCODAutoPays(t *testing.T) {
	env := newCheckoutEnv(nil)
	v := env.addVariant("tee", 999, 5)
	env.ledger.reserved[v] = 1
	o := seedOrder(env, StatusShipped, PaymentMethodCOD, PaymentUnpaid)

	updated, err := env.svc.Deliver(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if updated.OrderStatus != StatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", updated.OrderStatus)
	}
	if updated.PaymentStatus != PaymentPaid {
		t.Fatalf("expected COD delivery to confirm payment, got %s", updated.PaymentStatus)
	}
	if env.ledger.commitCalls != 1 {
		t.Fatalf("expected reservations committed on delivery")
	}
	if env.ledger.available[v] != 4 {
		t.Fatalf("expected stock consumed, available=%d", env.ledger.available[v])
	}
}

func TestDeliverRequiresPayment(t *testing.T) {
	env := newCheckoutEnv(nil)
	o := seedOrder(env, StatusShipped, PaymentMethodBankTransfer, PaymentUnpaid)

	_, err := env.svc.Deliver(context.Background(), o.ID)
	if !errors.Is(err, ErrPaymentNotConfirmed) {
		t.Fatalf("expected ErrPaymentNotConfirmed, got %v", err)
	}

	current, _ := env.orders.GetByID(context.Background(), o.ID)
	if current.OrderStatus != StatusShipped {
		t.Fatalf("order must stay SHIPPED, got %s", current.OrderStatus)
	}
	if env.ledger.commitCalls != 0 {
		t.Fatalf("reservations must not be committed")
	}
}

func TestDeliverPrepaid(t *testing.T) {
	env := newCheckoutEnv(nil)
	o := seedOrder(env, StatusShipped, PaymentMethodCreditCard, PaymentPaid)

	updated, err := env.svc.Deliver(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if updated.OrderStatus != StatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", updated.OrderStatus)
	}
	if env.ledger.commitCalls != 1 {
		t.Fatalf("expected reservations committed on delivery")
	}
}

func TestMarkPayment(t *testing.T) {
	t.Run("paid", func(t *testing.T) {
		env := newCheckoutEnv(nil)
		o := seedOrder(env, StatusConfirmed, PaymentMethodBankTransfer, PaymentUnpaid)

		updated, err := env.svc.MarkPaymentPaid(context.Background(), o.ID)
		if err != nil {
			t.Fatalf("mark paid failed: %v", err)
		}
		if updated.PaymentStatus != PaymentPaid {
			t.Fatalf("expected PAID, got %s", updated.PaymentStatus)
		}
		if len(env.publisher.paymentChanges) != 1 || env.publisher.paymentChanges[0] != PaymentUnpaid {
			t.Fatalf("expected payment change event from UNPAID")
		}
	})

	t.Run("re-report is a no-op", func(t *testing.T) {
		env := newCheckoutEnv(nil)
		o := seedOrder(env, StatusConfirmed, PaymentMethodBankTransfer, PaymentPaid)

		updated, err := env.svc.MarkPaymentPaid(context.Background(), o.ID)
		if err != nil {
			t.Fatalf("expected idempotent no-op, got %v", err)
		}
		if updated.PaymentStatus != PaymentPaid {
			t.Fatalf("expected PAID, got %s", updated.PaymentStatus)
		}
		if len(env.publisher.paymentChanges) != 0 {
			t.Fatalf("no event on a no-op")
		}
	})

	t.Run("failed to paid is illegal", func(t *testing.T) {
		env := newCheckoutEnv(nil)
		o := seedOrder(env, StatusConfirmed, PaymentMethodBankTransfer, PaymentFailed)

		_, err := env.svc.MarkPaymentPaid(context.Background(), o.ID)
		var bad *InvalidTransitionError
		if !errors.As(err, &bad) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})
}

func TestSetAdminNotes(t *testing.T) {
	env := newCheckoutEnv(nil)
	o := seedOrder(env, StatusConfirmed, PaymentMethodCOD, PaymentUnpaid)

	updated, err := env.svc.SetAdminNotes(context.Background(), o.ID, "fragile, double-box")
	if err != nil {
		t.Fatalf("set notes failed: %v", err)
	}
	if updated.AdminNotes != "fragile, double-box" {
		t.Fatalf("unexpected notes %q", updated.AdminNotes)
	}
}
