package inventory

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// InsufficientStockError names every variant that fell short of the request.
type InsufficientStockError struct {
	Short []ShortLine
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Short))
	for i, s := range e.Short {
		parts[i] = fmt.Sprintf("%s: requested %d, available %d", s.VariantID, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}
