package order

import (
	"context"
	"fmt"
	"time"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/sequence"
)

// NumberSource produces human-readable order numbers.
type NumberSource interface {
	Next(ctx context.Context) (string, error)
}

// NumberGenerator builds ORD-YYYYMMDD-NNNNN numbers from a per-day database
// sequence, so numbers stay collision-free across processes. The counter
// wraps at 100000 per day; the rare wrap collision is handled by checkout's
// retry on the unique order_number constraint.
type NumberGenerator struct {
	sequences sequence.Repository
	now       func() time.Time
}

func NewNumberGenerator(sequences sequence.Repository) *NumberGenerator {
	return &NumberGenerator{sequences: sequences, now: time.Now}
}

func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	datePart := g.now().UTC().Format("20060102")
	seq, err := g.sequences.NextSequence(ctx, "orders:"+datePart)
	if err != nil {
		return "", fmt.Errorf("order number sequence: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%05d", datePart, seq%100000), nil
}
