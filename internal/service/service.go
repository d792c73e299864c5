package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mejaresto/internal/catalog"
	"mejaresto/internal/domain"
	"mejaresto/internal/fx"
	"mejaresto/internal/store"
	"mejaresto/internal/xid"
)

// ErrAdminRequired rejects operations reserved for the admin role.
var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service implements the order engine and its supporting operations. It
// never derives the tenant itself: every operation takes a pre-validated
// tenant id from the caller (the HTTP layer maps it from the auth claim).
type Service struct {
	repo     store.Repository
	resolver *catalog.Resolver
	rates    fx.RateProvider
}

func New(repo store.Repository, resolver *catalog.Resolver, rates fx.RateProvider) *Service {
	if rates == nil {
		rates = fx.Identity{}
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		rates:    rates,
	}
}

func (s *Service) CreateBranch(ctx context.Context, tenantID string, req domain.BranchCreateRequest) (domain.Branch, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Branch{}, ErrAdminRequired
	}

	req.Name = strings.TrimSpace(req.Name)
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if req.Name == "" || req.CurrencyCode == "" {
		return domain.Branch{}, store.ErrInvalidInput
	}
	if req.TaxPercent < 0 || req.TaxPercent > 100 || req.ServiceChargePercent < 0 || req.ServiceChargePercent > 100 {
		return domain.Branch{}, store.ErrInvalidInput
	}
	if req.DeliveryFee < 0 {
		return domain.Branch{}, store.ErrInvalidInput
	}

	branch := domain.Branch{
		ID:                   xid.New("branch"),
		TenantID:             tenantID,
		Name:                 req.Name,
		CurrencyCode:         req.CurrencyCode,
		TaxPercent:           req.TaxPercent,
		ServiceChargePercent: req.ServiceChargePercent,
		DeliveryFee:          req.DeliveryFee,
		Active:               true,
	}

	saved, err := s.repo.CreateBranch(ctx, branch)
	if err != nil {
		return domain.Branch{}, err
	}

	s.logAudit(ctx, tenantID, "branch_create", "branch", saved.ID, fmt.Sprintf("name=%s,currency=%s", saved.Name, saved.CurrencyCode))
	return *saved, nil
}

func (s *Service) ListBranches(ctx context.Context, tenantID string) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx, tenantID)
}

func (s *Service) CreateMenuItem(ctx context.Context, tenantID string, req domain.MenuItemCreateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.MenuItem{}, ErrAdminRequired
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.BasePrice < 0 {
		return domain.MenuItem{}, store.ErrInvalidInput
	}
	for i := range req.Sizes {
		req.Sizes[i].Name = strings.TrimSpace(req.Sizes[i].Name)
		if req.Sizes[i].Name == "" || req.Sizes[i].Price < 0 {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		if req.Sizes[i].ID == "" {
			req.Sizes[i].ID = xid.New("size")
		}
	}

	now := time.Now().UTC()
	item := domain.MenuItem{
		ID:             xid.New("item"),
		TenantID:       tenantID,
		Name:           req.Name,
		Category:       req.Category,
		BasePrice:      req.BasePrice,
		KitchenStation: strings.TrimSpace(req.KitchenStation),
		Active:         true,
		Sizes:          req.Sizes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	saved, err := s.repo.CreateMenuItem(ctx, item)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.logAudit(ctx, tenantID, "menu_item_create", "menu_item", saved.ID, fmt.Sprintf("name=%s,price=%.2f", saved.Name, saved.BasePrice))
	return *saved, nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, tenantID string, itemID string, req domain.MenuItemUpdateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.MenuItem{}, ErrAdminRequired
	}

	existing, err := s.repo.GetMenuItem(ctx, tenantID, itemID)
	if err != nil {
		return domain.MenuItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.BasePrice != nil {
		if *req.BasePrice < 0 {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		updated.BasePrice = *req.BasePrice
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateMenuItem(ctx, updated)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.resolver.Invalidate(ctx, tenantID, saved.ID)
	s.logAudit(ctx, tenantID, "menu_item_update", "menu_item", saved.ID, fmt.Sprintf("active=%t,price=%.2f", saved.Active, saved.BasePrice))
	return *saved, nil
}

func (s *Service) ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	return s.repo.ListMenuItems(ctx, tenantID)
}

func (s *Service) CreateModifier(ctx context.Context, tenantID string, req domain.ModifierCreateRequest) (domain.Modifier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Modifier{}, ErrAdminRequired
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.ExtraPrice < 0 {
		return domain.Modifier{}, store.ErrInvalidInput
	}

	modifier := domain.Modifier{
		ID:         xid.New("mod"),
		TenantID:   tenantID,
		Name:       req.Name,
		ExtraPrice: req.ExtraPrice,
		Active:     true,
	}

	saved, err := s.repo.CreateModifier(ctx, modifier)
	if err != nil {
		return domain.Modifier{}, err
	}

	s.logAudit(ctx, tenantID, "modifier_create", "modifier", saved.ID, fmt.Sprintf("name=%s,extra=%.2f", saved.Name, saved.ExtraPrice))
	return *saved, nil
}

func (s *Service) ListModifiers(ctx context.Context, tenantID string) ([]domain.Modifier, error) {
	return s.repo.ListModifiers(ctx, tenantID)
}

func (s *Service) CreateCustomer(ctx context.Context, tenantID string, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	customer := domain.Customer{
		ID:        xid.New("cust"),
		TenantID:  tenantID,
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	}

	saved, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, tenantID, "customer_create", "customer", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) UpsertLoyaltySettings(ctx context.Context, tenantID string, settings domain.LoyaltySettings) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrAdminRequired
	}
	if settings.AmountUnit <= 0 || settings.PointsPerAmount < 1 {
		return store.ErrInvalidInput
	}

	settings.TenantID = tenantID
	if err := s.repo.UpsertLoyaltySettings(ctx, settings); err != nil {
		return err
	}

	s.logAudit(ctx, tenantID, "loyalty_settings_upsert", "loyalty_settings", tenantID, fmt.Sprintf("unit=%.2f,points=%d", settings.AmountUnit, settings.PointsPerAmount))
	return nil
}

func (s *Service) IssueGiftCard(ctx context.Context, tenantID string, code string, balance float64) (domain.GiftCard, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.GiftCard{}, ErrAdminRequired
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || balance <= 0 {
		return domain.GiftCard{}, store.ErrInvalidInput
	}

	card := domain.GiftCard{
		ID:       xid.New("gc"),
		TenantID: tenantID,
		Code:     code,
		Balance:  balance,
		Active:   true,
	}

	saved, err := s.repo.CreateGiftCard(ctx, card)
	if err != nil {
		return domain.GiftCard{}, err
	}

	s.logAudit(ctx, tenantID, "gift_card_issue", "gift_card", saved.ID, fmt.Sprintf("balance=%.2f", saved.Balance))
	return *saved, nil
}

func (s *Service) UpsertInventoryItem(ctx context.Context, tenantID string, item domain.InventoryItem) (domain.InventoryItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.InventoryItem{}, ErrAdminRequired
	}

	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.OnHand < 0 {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	item.TenantID = tenantID

	saved, err := s.repo.UpsertInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, tenantID, "inventory_upsert", "inventory_item", saved.ID, fmt.Sprintf("on_hand=%.2f", saved.OnHand))
	return *saved, nil
}

func (s *Service) CreateRecipe(ctx context.Context, tenantID string, recipe domain.Recipe) (domain.Recipe, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Recipe{}, ErrAdminRequired
	}
	if recipe.MenuItemID == "" || len(recipe.Ingredients) == 0 {
		return domain.Recipe{}, store.ErrInvalidInput
	}
	for _, ingredient := range recipe.Ingredients {
		if ingredient.InventoryItemID == "" || ingredient.QuantityPerYield <= 0 {
			return domain.Recipe{}, store.ErrInvalidInput
		}
	}

	recipe.ID = xid.New("recipe")
	recipe.TenantID = tenantID
	recipe.Active = true

	saved, err := s.repo.CreateRecipe(ctx, recipe)
	if err != nil {
		return domain.Recipe{}, err
	}

	s.logAudit(ctx, tenantID, "recipe_create", "recipe", saved.ID, fmt.Sprintf("menu_item=%s,ingredients=%d", saved.MenuItemID, len(saved.Ingredients)))
	return *saved, nil
}

func (s *Service) OpenShift(ctx context.Context, tenantID string, req domain.ShiftOpenRequest) (domain.Shift, error) {
	if req.BranchID == "" || strings.TrimSpace(req.CashierName) == "" {
		return domain.Shift{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetBranch(ctx, tenantID, req.BranchID); err != nil {
		return domain.Shift{}, err
	}

	shift := domain.Shift{
		ID:           xid.New("shift"),
		TenantID:     tenantID,
		BranchID:     req.BranchID,
		CashierName:  strings.TrimSpace(req.CashierName),
		OpeningFloat: req.OpeningFloat,
		Status:       domain.ShiftStatusOpen,
		OpenedAt:     time.Now().UTC(),
	}

	saved, err := s.repo.OpenShift(ctx, shift)
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, tenantID, "shift_open", "shift", saved.ID, saved.CashierName)
	return *saved, nil
}

func (s *Service) CloseShift(ctx context.Context, tenantID string, req domain.ShiftCloseRequest) (domain.Shift, error) {
	if req.BranchID == "" {
		return domain.Shift{}, store.ErrInvalidInput
	}

	closed, err := s.repo.CloseActiveShift(ctx, tenantID, req.BranchID, req.ClosingCash, time.Now().UTC())
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, tenantID, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_cash=%.2f", req.ClosingCash))
	return *closed, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, tenantID string, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, tenantID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, tenantID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		TenantID:   tenantID,
		Actor:      actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("action", action).Str("entity", entityType+"/"+entityID).Msg("failed to write audit log")
	}
}
