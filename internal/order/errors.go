package order

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty, nothing to check out")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrConcurrencyConflict = errors.New("concurrent order update, retry the operation")
)

// InvalidTransitionError reports an illegal status move. From/To carry
// either order statuses or payment statuses depending on the operation.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ItemUnavailableError names the first cart line whose variant can no longer
// be sold. Checkout fails fast instead of silently dropping the line.
type ItemUnavailableError struct {
	VariantID uuid.UUID
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("item unavailable: variant %s", e.VariantID)
}
