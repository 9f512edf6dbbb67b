package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
)

// Catalog supplies variant/product availability flags and current prices.
type Catalog interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (catalog.Variant, error)
}

// StockReader is the slice of the inventory ledger Sync needs.
type StockReader interface {
	AvailableStock(ctx context.Context, variantID uuid.UUID) (int, error)
}

// ViewCache holds rendered cart projections. Entries are derived state; a
// failing cache read degrades to a repository read.
type ViewCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Set(ctx context.Context, userID uuid.UUID, view *View) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// ErrCacheMiss is returned by ViewCache.Get when no entry exists.
var ErrCacheMiss = errors.New("cache miss")

// ViewTracker receives best-effort cart view notifications. Implementations
// must never block or fail the calling operation.
type ViewTracker interface {
	TrackCartViewed(userID uuid.UUID)
}

// Service implements the cart operations: per-user cart with price-at-add
// snapshots, read-through view cache, and the sync policy that evicts
// unavailable lines.
type Service struct {
	repo    Repository
	catalog Catalog
	stock   StockReader
	cache   ViewCache
	tracker ViewTracker
	logger  *log.Logger
}

func NewService(repo Repository, cat Catalog, stock StockReader, cache ViewCache, tracker ViewTracker, logger *log.Logger) *Service {
	return &Service{repo: repo, catalog: cat, stock: stock, cache: cache, tracker: tracker, logger: logger}
}

// Get returns the user's cart view, serving from the cache when possible.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if view, err := s.cache.Get(ctx, userID); err == nil {
		s.tracker.TrackCartViewed(userID)
		return view, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Printf("cart view cache read failed for user %s: %v", userID, err)
	}

	view, err := s.refreshView(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.tracker.TrackCartViewed(userID)
	return view, nil
}

func (s *Service) AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
		}
		return nil, err
	}
	if !variant.Sellable() {
		return nil, fmt.Errorf("variant %s: %w", variantID, ErrVariantUnavailable)
	}

	if err := s.repo.AddItem(ctx, userID, variantID, quantity, variant.PriceCents); err != nil {
		return nil, err
	}
	return s.afterMutation(ctx, userID)
}

func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.afterMutation(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	if err := s.repo.RemoveItem(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.afterMutation(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID uuid.UUID) (*View, error) {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return s.afterMutation(ctx, userID)
}

func (s *Service) ItemCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.ItemCount(ctx, userID)
}

// Sync re-checks every line against the catalog and the ledger. Lines whose
// variant is gone or inactive, or whose quantity no longer fits available
// stock, are dropped and reported; prices at add are left untouched.
func (s *Service) Sync(ctx context.Context, userID uuid.UUID) (*SyncResult, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return nil, err
	}

	var dropped []DroppedItem
	for _, item := range items {
		variant, err := s.catalog.GetVariant(ctx, item.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				dropped = append(dropped, DroppedItem{ItemID: item.ID, VariantID: item.VariantID, Reason: DropReasonUnavailable})
				continue
			}
			return nil, err
		}
		if !variant.Sellable() {
			dropped = append(dropped, DroppedItem{ItemID: item.ID, VariantID: item.VariantID, Reason: DropReasonUnavailable})
			continue
		}

		available, err := s.stock.AvailableStock(ctx, item.VariantID)
		if err != nil {
			return nil, err
		}
		if item.Quantity > available {
			dropped = append(dropped, DroppedItem{ItemID: item.ID, VariantID: item.VariantID, Reason: DropReasonInsufficientStock})
		}
	}

	if len(dropped) > 0 {
		ids := make([]uuid.UUID, len(dropped))
		for i, d := range dropped {
			ids[i] = d.ItemID
		}
		if err := s.repo.RemoveItems(ctx, userID, ids); err != nil {
			return nil, err
		}
		s.logger.Printf("cart sync dropped %d item(s) for user %s", len(dropped), userID)
	}

	view, err := s.afterMutation(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SyncResult{Dropped: dropped, View: view}, nil
}

// afterMutation invalidates the cached view once the mutation is durable and
// returns a fresh repository read. The invalidation error is not swallowed:
// acknowledging a mutation while a stale view could still be served would
// break the cache contract. Mutations never write the cache; a delayed write
// racing a later mutation's invalidation could pin a stale view past that
// mutation's ack. Repopulation happens on the next Get.
func (s *Service) afterMutation(ctx context.Context, userID uuid.UUID) (*View, error) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("invalidate cart view: %w", err)
	}
	return s.repo.GetView(ctx, userID)
}

func (s *Service) refreshView(ctx context.Context, userID uuid.UUID) (*View, error) {
	view, err := s.repo.GetView(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userID, view); err != nil {
		s.logger.Printf("cart view cache write failed for user %s: %v", userID, err)
	}
	return view, nil
}

// InvalidateView is called by checkout after it clears the cart.
func (s *Service) InvalidateView(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Delete(ctx, userID)
}
