package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mejaresto/internal/domain"
	"mejaresto/internal/money"
	"mejaresto/internal/store"
	"mejaresto/internal/xid"
)

var paymentMethods = map[string]bool{
	"cash":      true,
	"card":      true,
	"qris":      true,
	"ewallet":   true,
	"gift_card": true,
	"loyalty":   true,
}

// CreateOrder opens a draft order against a branch, snapshotting the
// branch's tax, service charge and delivery fee so later branch edits do
// not reprice the open order. The order number is assigned by the store
// from a per-branch daily sequence.
func (s *Service) CreateOrder(ctx context.Context, tenantID string, req domain.OrderCreateRequest) (domain.Order, error) {
	if req.BranchID == "" {
		return domain.Order{}, store.ErrInvalidInput
	}
	if !domain.SupportedOrderType(req.OrderType) {
		return domain.Order{}, store.ErrInvalidInput
	}

	branch, err := s.repo.GetBranch(ctx, tenantID, req.BranchID)
	if err != nil {
		return domain.Order{}, err
	}
	if !branch.Active {
		return domain.Order{}, store.ErrInvalidState
	}

	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, tenantID, req.CustomerID); err != nil {
			return domain.Order{}, err
		}
	}

	actor, _ := ActorFromContext(ctx)

	order := domain.Order{
		ID:                   xid.New("order"),
		TenantID:             tenantID,
		BranchID:             branch.ID,
		OrderType:            req.OrderType,
		TableRef:             strings.TrimSpace(req.TableRef),
		CustomerID:           req.CustomerID,
		WaiterRef:            strings.TrimSpace(req.WaiterRef),
		CashierRef:           actor.Username,
		CurrencyCode:         branch.CurrencyCode,
		TaxPercent:           branch.TaxPercent,
		ServiceChargePercent: branch.ServiceChargePercent,
		OrderStatus:          domain.OrderStatusDraft,
		PaymentStatus:        domain.PaymentStatusUnpaid,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	if req.OrderType == domain.OrderTypeDelivery {
		order.DeliveryFee = branch.DeliveryFee
	}
	if shift, err := s.repo.GetActiveShift(ctx, tenantID, branch.ID); err == nil {
		order.ShiftID = shift.ID
	}

	saved, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, tenantID, "order_create", "order", saved.ID, saved.OrderNumber)
	return *saved, nil
}

func (s *Service) GetOrder(ctx context.Context, tenantID string, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// AddLine resolves the requested item, size and modifiers against the
// catalog, snapshots the resulting prices onto a new line and appends it.
// Per-line pricing is frozen at add time; only order totals are ever
// recomputed afterwards.
func (s *Service) AddLine(ctx context.Context, tenantID string, orderID string, req domain.AddLineRequest) (domain.Order, error) {
	if req.MenuItemID == "" || req.Quantity <= 0 {
		return domain.Order{}, store.ErrInvalidInput
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return domain.Order{}, store.ErrInvalidInput
	}

	priced, err := s.resolver.Resolve(ctx, tenantID, req.MenuItemID, req.SizeID, req.Modifiers)
	if err != nil {
		return domain.Order{}, err
	}

	lineID := xid.New("line")
	line := domain.OrderLine{
		ID:                 lineID,
		OrderID:            orderID,
		MenuItemID:         req.MenuItemID,
		SizeID:             req.SizeID,
		Name:               priced.ItemName,
		Quantity:           req.Quantity,
		BaseUnitPrice:      priced.BasePrice,
		ModifiersExtra:     priced.ModifiersExtra,
		EffectiveUnitPrice: priced.EffectiveUnitPrice,
		DiscountPercent:    req.DiscountPercent,
		KitchenStatus:      domain.KitchenStatusNew,
		KitchenStation:     priced.KitchenStation,
		Notes:              strings.TrimSpace(req.Notes),
		CreatedAt:          time.Now().UTC(),
	}
	for _, mod := range priced.Modifiers {
		mod.ID = xid.New("linemod")
		mod.OrderLineID = lineID
		line.Modifiers = append(line.Modifiers, mod)
	}
	domain.PriceLine(&line)

	order, err := s.repo.AddOrderLine(ctx, tenantID, orderID, line)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, tenantID, "order_add_line", "order", order.ID, line.Name)
	return *order, nil
}

func (s *Service) RemoveLine(ctx context.Context, tenantID string, orderID string, lineID string) (domain.Order, error) {
	if lineID == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	order, err := s.repo.RemoveOrderLine(ctx, tenantID, orderID, lineID)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, tenantID, "order_remove_line", "order", order.ID, lineID)
	return *order, nil
}

func (s *Service) ApplyDiscount(ctx context.Context, tenantID string, orderID string, percent float64) (domain.Order, error) {
	if percent < 0 || percent > 100 {
		return domain.Order{}, store.ErrInvalidInput
	}

	order, err := s.repo.SetBillDiscount(ctx, tenantID, orderID, percent)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, tenantID, "order_apply_discount", "order", order.ID, order.OrderNumber)
	return *order, nil
}

func (s *Service) SendToKitchen(ctx context.Context, tenantID string, orderID string) (domain.SendToKitchenResponse, error) {
	actor, _ := ActorFromContext(ctx)

	order, sent, err := s.repo.SendOrderToKitchen(ctx, tenantID, orderID, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.SendToKitchenResponse{}, err
	}

	s.logAudit(ctx, tenantID, "order_send_to_kitchen", "order", order.ID, order.OrderNumber)
	return domain.SendToKitchenResponse{
		OrderID:   order.ID,
		LinesSent: sent,
		Status:    order.OrderStatus,
	}, nil
}

// Pay settles an order with one or more tenders in a single transaction.
// Foreign-currency tenders are converted at the configured rate before the
// store sees them. A repeated idempotency key returns the order's current
// settlement state without recording anything new.
func (s *Service) Pay(ctx context.Context, tenantID string, orderID string, req domain.PayRequest) (domain.PayResponse, error) {
	if len(req.Tenders) == 0 {
		return domain.PayResponse{}, store.ErrInvalidInput
	}
	if req.TipsAmount < 0 {
		return domain.PayResponse{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return domain.PayResponse{}, err
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()

	payments := make([]domain.OrderPayment, 0, len(req.Tenders))
	for _, tender := range req.Tenders {
		method := strings.ToLower(strings.TrimSpace(tender.Method))
		if !paymentMethods[method] {
			return domain.PayResponse{}, store.ErrInvalidInput
		}
		if tender.Amount <= 0 {
			return domain.PayResponse{}, store.ErrInvalidInput
		}
		if method == "gift_card" && tender.GiftCardID == "" {
			return domain.PayResponse{}, store.ErrInvalidInput
		}
		if method == "loyalty" && (tender.LoyaltyPointsUsed <= 0 || order.CustomerID == "") {
			return domain.PayResponse{}, store.ErrInvalidInput
		}

		currency := strings.ToUpper(strings.TrimSpace(tender.CurrencyCode))
		if currency == "" {
			currency = order.CurrencyCode
		}
		rate := 1.0
		if currency != order.CurrencyCode {
			rate, err = s.rates.Rate(ctx, currency, order.CurrencyCode)
			if err != nil {
				return domain.PayResponse{}, store.ErrInvalidInput
			}
		}

		payments = append(payments, domain.OrderPayment{
			ID:                  xid.New("pay"),
			OrderID:             orderID,
			Method:              method,
			CurrencyCode:        currency,
			TenderedAmount:      tender.Amount,
			AmountOrderCurrency: tender.Amount * rate,
			ExchangeRate:        rate,
			Reference:           strings.TrimSpace(tender.Reference),
			GiftCardID:          tender.GiftCardID,
			LoyaltyPointsUsed:   tender.LoyaltyPointsUsed,
			IdempotencyKey:      idempotencyKey,
			Actor:               actor.Username,
			CreatedAt:           now,
		})
	}

	settled, duplicate, err := s.repo.ApplyPayments(ctx, tenantID, orderID, idempotencyKey, req.TipsAmount, payments)
	if err != nil {
		return domain.PayResponse{}, err
	}

	if !duplicate && settled.PaymentStatus == domain.PaymentStatusPaid {
		s.runPostPaymentEffects(ctx, settled)
	}

	s.logAudit(ctx, tenantID, "order_pay", "order", settled.ID, settled.PaymentStatus)

	decimals := money.Decimals(settled.CurrencyCode)
	return domain.PayResponse{
		OrderID:       settled.ID,
		PaymentStatus: settled.PaymentStatus,
		OrderStatus:   settled.OrderStatus,
		GrandTotal:    settled.GrandTotal,
		TotalPaid:     settled.TotalPaid,
		BalanceDue:    settled.BalanceDue,
		Change:        money.Round(money.Change(settled.BalanceDue), decimals),
		Duplicate:     duplicate,
	}, nil
}

// VoidOrder cancels an unpaid order. Paid orders cannot be voided; a refund
// flow would be a separate, auditable operation.
func (s *Service) VoidOrder(ctx context.Context, tenantID string, orderID string, req domain.VoidOrderRequest) (domain.Order, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	actor, _ := ActorFromContext(ctx)

	order, err := s.repo.VoidOrder(ctx, tenantID, orderID, reason, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("order_id", order.ID).
		Str("reason", reason).
		Msg("order voided")
	s.logAudit(ctx, tenantID, "order_void", "order", order.ID, reason)
	return *order, nil
}
