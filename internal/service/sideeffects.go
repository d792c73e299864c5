package service

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"mejaresto/internal/domain"
	"mejaresto/internal/store"
)

// runPostPaymentEffects fires loyalty accrual and inventory deduction after
// an order reaches paid. Both are best effort: the payment has already
// committed, so a failure here is logged and never surfaced to the payer.
func (s *Service) runPostPaymentEffects(ctx context.Context, order *domain.Order) {
	if err := s.accrueLoyalty(ctx, order); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", order.TenantID).
			Str("order_id", order.ID).
			Msg("loyalty accrual failed after payment")
	}
	if err := s.deductInventory(ctx, order); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", order.TenantID).
			Str("order_id", order.ID).
			Msg("inventory deduction failed after payment")
	}
}

func (s *Service) accrueLoyalty(ctx context.Context, order *domain.Order) error {
	if order.CustomerID == "" {
		return nil
	}

	settings, err := s.repo.GetLoyaltySettings(ctx, order.TenantID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if settings.AmountUnit <= 0 || settings.PointsPerAmount < 1 {
		return nil
	}

	amount := order.GrandTotal
	if settings.EarnOnNetBeforeTax {
		amount = order.GrandTotal - order.TaxAmount
	}
	points := int64(math.Floor(amount/settings.AmountUnit)) * settings.PointsPerAmount
	if points <= 0 {
		return nil
	}

	account, err := s.repo.GetLoyaltyAccountByCustomer(ctx, order.TenantID, order.CustomerID)
	if err != nil {
		return err
	}

	tx, err := s.repo.AccrueLoyaltyPoints(ctx, order.TenantID, account.ID, points, order.ID)
	if err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", order.TenantID).
		Str("order_id", order.ID).
		Str("account_id", account.ID).
		Int64("points", tx.Points).
		Int64("balance", tx.AfterPoints).
		Msg("loyalty points accrued")
	return nil
}

// deductInventory walks the paid order's lines and, for each line whose
// item+size has an active recipe, subtracts ingredient usage scaled by the
// line quantity. Lines without a recipe are untracked and skipped. Stock is
// allowed to go negative; the count stays honest even when receiving lags.
func (s *Service) deductInventory(ctx context.Context, order *domain.Order) error {
	for _, line := range order.Lines {
		recipe, err := s.repo.FindActiveRecipe(ctx, order.TenantID, line.MenuItemID, line.SizeID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}

		for _, ingredient := range recipe.Ingredients {
			usage := ingredient.QuantityPerYield * line.Quantity
			if err := s.repo.AdjustInventoryOnHand(ctx, order.TenantID, ingredient.InventoryItemID, -usage); err != nil {
				log.Warn().Err(err).
					Str("tenant_id", order.TenantID).
					Str("order_id", order.ID).
					Str("inventory_item_id", ingredient.InventoryItemID).
					Float64("usage", usage).
					Msg("failed to deduct ingredient stock")
			}
		}
	}
	return nil
}
