package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// CartViewPublisher is what the tracker needs from the publisher.
type CartViewPublisher interface {
	PublishCartViewed(ctx context.Context, userID uuid.UUID) error
}

// ViewTracker hands view-tracking signals to a background goroutine. The
// calling operation never waits for, and never learns about, the outcome.
// A lost view event is acceptable, a delayed cart response is not.
type ViewTracker struct {
	publisher CartViewPublisher
	logger    *log.Logger
}

func NewViewTracker(publisher CartViewPublisher, logger *log.Logger) *ViewTracker {
	return &ViewTracker{publisher: publisher, logger: logger}
}

func (t *ViewTracker) TrackCartViewed(userID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.publisher.PublishCartViewed(ctx, userID); err != nil {
			t.logger.Printf("track cart view for user %s: %v", userID, err)
		}
	}()
}
