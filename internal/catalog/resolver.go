package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mejaresto/internal/cache"
	"mejaresto/internal/domain"
)

// Lookup is the slice of the repository the resolver needs.
type Lookup interface {
	GetMenuItem(ctx context.Context, tenantID string, itemID string) (*domain.MenuItem, error)
	GetModifiersByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Modifier, error)
}

// PricedLine is the snapshot produced for one resolved item+size+modifier
// selection. Modifier prices are captured here and never re-read, so later
// catalog edits cannot change lines already on an order.
type PricedLine struct {
	ItemName           string
	KitchenStation     string
	BasePrice          float64
	ModifiersExtra     float64
	EffectiveUnitPrice float64
	Modifiers          []domain.OrderLineModifier
}

type Resolver struct {
	lookup Lookup
	cache  cache.CatalogCache
	ttl    time.Duration
}

func NewResolver(lookup Lookup, catalogCache cache.CatalogCache, ttl time.Duration) *Resolver {
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Resolver{lookup: lookup, cache: catalogCache, ttl: ttl}
}

func CacheKey(tenantID string, itemID string) string {
	return fmt.Sprintf("catalog:%s:%s", tenantID, itemID)
}

// Resolve prices a line: size price when a size is selected and found, else
// the item's base price, plus the sum of modifier extras. Unknown modifier
// ids are skipped (current product behavior) with a warning so they remain
// visible in logs. Unknown or cross-tenant items are not found.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, itemID string, sizeID string, selections []domain.ModifierSelection) (PricedLine, error) {
	item, err := r.menuItem(ctx, tenantID, itemID)
	if err != nil {
		return PricedLine{}, err
	}

	basePrice := item.BasePrice
	if sizeID != "" {
		for _, size := range item.Sizes {
			if size.ID == sizeID {
				basePrice = size.Price
				break
			}
		}
	}

	priced := PricedLine{
		ItemName:       item.Name,
		KitchenStation: item.KitchenStation,
		BasePrice:      basePrice,
	}

	if len(selections) > 0 {
		ids := make([]string, 0, len(selections))
		for _, sel := range selections {
			if sel.ModifierID == "" || sel.Quantity <= 0 {
				continue
			}
			ids = append(ids, sel.ModifierID)
		}
		modifiers, err := r.lookup.GetModifiersByIDs(ctx, tenantID, ids)
		if err != nil {
			return PricedLine{}, err
		}

		for _, sel := range selections {
			if sel.ModifierID == "" || sel.Quantity <= 0 {
				continue
			}
			modifier, ok := modifiers[sel.ModifierID]
			if !ok || !modifier.Active {
				log.Warn().
					Str("tenant_id", tenantID).
					Str("menu_item_id", itemID).
					Str("modifier_id", sel.ModifierID).
					Msg("skipping unresolved modifier selection")
				continue
			}
			total := modifier.ExtraPrice * sel.Quantity
			priced.ModifiersExtra += total
			priced.Modifiers = append(priced.Modifiers, domain.OrderLineModifier{
				ModifierID:     modifier.ID,
				Name:           modifier.Name,
				Quantity:       sel.Quantity,
				UnitExtraPrice: modifier.ExtraPrice,
				TotalPrice:     total,
			})
		}
	}

	priced.EffectiveUnitPrice = priced.BasePrice + priced.ModifiersExtra
	return priced, nil
}

func (r *Resolver) menuItem(ctx context.Context, tenantID string, itemID string) (*domain.MenuItem, error) {
	key := CacheKey(tenantID, itemID)
	if cached, hit, err := r.cache.GetMenuItem(ctx, key); err == nil && hit {
		return cached, nil
	}

	item, err := r.lookup.GetMenuItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetMenuItem(ctx, key, item, r.ttl); err != nil {
		log.Warn().Err(err).Str("menu_item_id", itemID).Msg("failed to cache menu item snapshot")
	}
	return item, nil
}

// Invalidate drops a cached menu item snapshot after a catalog update.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string, itemID string) {
	if err := r.cache.InvalidateMenuItem(ctx, CacheKey(tenantID, itemID)); err != nil {
		log.Warn().Err(err).Str("menu_item_id", itemID).Msg("failed to invalidate menu item snapshot")
	}
}
