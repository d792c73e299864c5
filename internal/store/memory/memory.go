// Package memory is an in-memory Repository used for local development and
// tests. Every mutating order operation takes the single store lock, reloads
// the order, applies the change and recomputes totals before releasing it,
// mirroring the transactional shape of the postgres store.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"mejaresto/internal/domain"
	"mejaresto/internal/money"
	"mejaresto/internal/store"
	"mejaresto/internal/xid"
)

type Store struct {
	mu sync.RWMutex

	branches  map[string]domain.Branch
	menuItems map[string]domain.MenuItem
	modifiers map[string]domain.Modifier

	orders        map[string]*domain.Order
	orderCounters map[string]int

	customers       map[string]domain.Customer
	loyaltySettings map[string]domain.LoyaltySettings
	loyaltyAccounts map[string]domain.LoyaltyAccount
	loyaltyTxs      []domain.LoyaltyTransaction

	giftCards map[string]domain.GiftCard
	inventory map[string]domain.InventoryItem
	recipes   map[string]domain.Recipe
	shifts    map[string]domain.Shift

	auditLogs []domain.AuditLog
	users     map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		branches:        make(map[string]domain.Branch),
		menuItems:       make(map[string]domain.MenuItem),
		modifiers:       make(map[string]domain.Modifier),
		orders:          make(map[string]*domain.Order),
		orderCounters:   make(map[string]int),
		customers:       make(map[string]domain.Customer),
		loyaltySettings: make(map[string]domain.LoyaltySettings),
		loyaltyAccounts: make(map[string]domain.LoyaltyAccount),
		giftCards:       make(map[string]domain.GiftCard),
		inventory:       make(map[string]domain.InventoryItem),
		recipes:         make(map[string]domain.Recipe),
		shifts:          make(map[string]domain.Shift),
		users:           make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a demo tenant: one branch, a
// small menu with sizes and modifiers, loyalty settings, a stocked recipe
// and the seed users. Good enough to exercise the full order lifecycle
// without a database.
func NewSeeded(tenantID string) *Store {
	s := New()
	now := time.Now().UTC()

	branch := domain.Branch{
		ID:                   "branch-pusat",
		TenantID:             tenantID,
		Name:                 "Cabang Pusat",
		CurrencyCode:         "IDR",
		TaxPercent:           10,
		ServiceChargePercent: 5,
		DeliveryFee:          10000,
		Active:               true,
	}
	s.branches[branch.ID] = branch

	items := []domain.MenuItem{
		{
			ID: "item-nasi-goreng", TenantID: tenantID, Name: "Nasi Goreng Spesial",
			Category: "Makanan", BasePrice: 35000, KitchenStation: "hot",
			Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "item-sate-ayam", TenantID: tenantID, Name: "Sate Ayam",
			Category: "Makanan", BasePrice: 30000, KitchenStation: "grill",
			Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "item-es-teh", TenantID: tenantID, Name: "Es Teh Manis",
			Category: "Minuman", BasePrice: 8000, KitchenStation: "bar",
			Active: true, CreatedAt: now, UpdatedAt: now,
			Sizes: []domain.ItemSize{
				{ID: "size-reguler", Name: "Reguler", Price: 8000},
				{ID: "size-jumbo", Name: "Jumbo", Price: 12000},
			},
		},
	}
	for _, item := range items {
		s.menuItems[item.ID] = item
	}

	mods := []domain.Modifier{
		{ID: "mod-telur", TenantID: tenantID, Name: "Extra Telur", ExtraPrice: 5000, Active: true},
		{ID: "mod-pedas", TenantID: tenantID, Name: "Level Pedas", ExtraPrice: 0, Active: true},
		{ID: "mod-keju", TenantID: tenantID, Name: "Extra Keju", ExtraPrice: 7000, Active: false},
	}
	for _, mod := range mods {
		s.modifiers[mod.ID] = mod
	}

	s.loyaltySettings[tenantID] = domain.LoyaltySettings{
		TenantID:        tenantID,
		AmountUnit:      10000,
		PointsPerAmount: 1,
	}

	customer := domain.Customer{
		ID: "cust-budi", TenantID: tenantID, Name: "Budi Santoso",
		Phone: "0812-0000-0001", CreatedAt: now,
	}
	s.customers[customer.ID] = customer
	account := domain.LoyaltyAccount{
		ID: "loyal-budi", TenantID: tenantID, CustomerID: customer.ID, CreatedAt: now,
	}
	s.loyaltyAccounts[account.ID] = account

	inv := []domain.InventoryItem{
		{ID: "inv-beras", TenantID: tenantID, BranchID: branch.ID, Name: "Beras", Unit: "kg", OnHand: 50},
		{ID: "inv-telur", TenantID: tenantID, BranchID: branch.ID, Name: "Telur", Unit: "butir", OnHand: 120},
	}
	for _, item := range inv {
		s.inventory[item.ID] = item
	}
	s.recipes["recipe-nasi-goreng"] = domain.Recipe{
		ID: "recipe-nasi-goreng", TenantID: tenantID, MenuItemID: "item-nasi-goreng", Active: true,
		Ingredients: []domain.RecipeIngredient{
			{InventoryItemID: "inv-beras", QuantityPerYield: 0.2},
			{InventoryItemID: "inv-telur", QuantityPerYield: 1},
		},
	}

	s.giftCards["gc-demo"] = domain.GiftCard{
		ID: "gc-demo", TenantID: tenantID, Code: "HADIAH-100", Balance: 100000, Active: true,
	}

	s.seedUsers(tenantID)
	return s
}

func (s *Store) seedUsers(tenantID string) {
	seed := func(username string, role string, envKey string, fallback string) {
		password := os.Getenv(envKey)
		if password == "" {
			password = fallback
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("failed to hash seed password")
			return
		}
		s.users[username] = domain.UserAccount{
			Username:  username,
			Password:  string(hashed),
			Role:      role,
			TenantID:  tenantID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
	}

	seed("admin", "admin", "SEED_ADMIN_PASSWORD", "admin123")
	seed("kasir", "cashier", "SEED_CASHIER_PASSWORD", "kasir123")
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.branches[branch.ID] = branch
	saved := branch
	return &saved, nil
}

func (s *Store) GetBranch(_ context.Context, tenantID string, branchID string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[branchID]
	if !ok || branch.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := branch
	return &found, nil
}

func (s *Store) ListBranches(_ context.Context, tenantID string) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Branch, 0)
	for _, branch := range s.branches {
		if branch.TenantID == tenantID {
			out = append(out, branch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.menuItems[item.ID] = item
	saved := item
	return &saved, nil
}

func (s *Store) UpdateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.menuItems[item.ID]
	if !ok || existing.TenantID != item.TenantID {
		return nil, store.ErrNotFound
	}
	s.menuItems[item.ID] = item
	saved := item
	return &saved, nil
}

func (s *Store) GetMenuItem(_ context.Context, tenantID string, itemID string) (*domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.menuItems[itemID]
	if !ok || item.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (s *Store) ListMenuItems(_ context.Context, tenantID string) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MenuItem, 0)
	for _, item := range s.menuItems {
		if item.TenantID == tenantID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateModifier(_ context.Context, modifier domain.Modifier) (*domain.Modifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modifiers[modifier.ID] = modifier
	saved := modifier
	return &saved, nil
}

func (s *Store) ListModifiers(_ context.Context, tenantID string) ([]domain.Modifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Modifier, 0)
	for _, modifier := range s.modifiers {
		if modifier.TenantID == tenantID {
			out = append(out, modifier)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetModifiersByIDs(_ context.Context, tenantID string, ids []string) (map[string]domain.Modifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Modifier, len(ids))
	for _, id := range ids {
		modifier, ok := s.modifiers[id]
		if !ok || modifier.TenantID != tenantID {
			continue
		}
		out[id] = modifier
	}
	return out, nil
}

func (s *Store) UpdateModifierPrice(_ context.Context, tenantID string, modifierID string, extraPrice float64) (*domain.Modifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	modifier, ok := s.modifiers[modifierID]
	if !ok || modifier.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	modifier.ExtraPrice = extraPrice
	s.modifiers[modifierID] = modifier
	saved := modifier
	return &saved, nil
}

func counterKey(branchID string, day time.Time) string {
	return branchID + "|" + domain.OrderDayKey(day)
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey(order.BranchID, order.CreatedAt)
	s.orderCounters[key]++
	order.OrderNumber = domain.FormatOrderNumber(order.CreatedAt, s.orderCounters[key])

	stored := order
	s.orders[order.ID] = &stored
	return cloneOrder(&stored), nil
}

func (s *Store) GetOrder(_ context.Context, tenantID string, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return cloneOrder(order), nil
}

func (s *Store) AddOrderLine(_ context.Context, tenantID string, orderID string, line domain.OrderLine) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Mutable() {
		return nil, store.ErrInvalidState
	}

	line.OrderID = order.ID
	order.Lines = append(order.Lines, line)
	domain.Recalculate(order, order.Lines)
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *Store) RemoveOrderLine(_ context.Context, tenantID string, orderID string, lineID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Mutable() {
		return nil, store.ErrInvalidState
	}

	idx := -1
	for i, line := range order.Lines {
		if line.ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, store.ErrNotFound
	}

	order.Lines = append(order.Lines[:idx], order.Lines[idx+1:]...)
	domain.Recalculate(order, order.Lines)
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *Store) SetBillDiscount(_ context.Context, tenantID string, orderID string, percent float64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Mutable() {
		return nil, store.ErrInvalidState
	}

	order.BillDiscountPercent = percent
	domain.Recalculate(order, order.Lines)
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *Store) SendOrderToKitchen(_ context.Context, tenantID string, orderID string, actor string, at time.Time) (*domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, 0, err
	}
	if !order.Mutable() {
		return nil, 0, store.ErrInvalidState
	}
	if len(order.Lines) == 0 {
		return nil, 0, store.ErrInvalidInput
	}

	sent := 0
	for i := range order.Lines {
		if order.Lines[i].KitchenStatus != domain.KitchenStatusNew {
			continue
		}
		order.Lines[i].KitchenStatus = domain.KitchenStatusSentToKitchen
		ts := at
		order.Lines[i].SentToKitchenAt = &ts
		sent++
	}
	if sent == 0 {
		return nil, 0, store.ErrInvalidState
	}

	if order.OrderStatus == domain.OrderStatusDraft {
		s.recordTransitionLocked(order, domain.OrderStatusSentToKitchen, actor, "", at)
	}
	order.UpdatedAt = at
	return cloneOrder(order), sent, nil
}

func (s *Store) ApplyPayments(_ context.Context, tenantID string, orderID string, idempotencyKey string, tips float64, payments []domain.OrderPayment) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.OrderStatus == domain.OrderStatusVoided {
		return nil, false, store.ErrInvalidState
	}

	for _, existing := range order.Payments {
		if existing.IdempotencyKey == idempotencyKey {
			return cloneOrder(order), true, nil
		}
	}

	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, false, store.ErrInvalidState
	}
	if len(order.Lines) == 0 {
		return nil, false, store.ErrInvalidState
	}

	// Validate backing balances before recording anything, so an insufficient
	// gift card or loyalty balance rejects the whole tender set. Draws are
	// accumulated per card and per account: two tenders on the same card must
	// cover their combined amount, not each pass against the undebited balance.
	cardDraws := make(map[string]float64)
	var pointsDraw int64
	for _, payment := range payments {
		switch payment.Method {
		case "gift_card":
			card, ok := s.giftCards[payment.GiftCardID]
			if !ok || card.TenantID != tenantID || !card.Active {
				return nil, false, store.ErrNotFound
			}
			cardDraws[payment.GiftCardID] += payment.AmountOrderCurrency
			if card.Balance < cardDraws[payment.GiftCardID] {
				return nil, false, store.ErrInvalidInput
			}
		case "loyalty":
			account, err := s.loyaltyAccountByCustomerLocked(tenantID, order.CustomerID)
			if err != nil {
				return nil, false, err
			}
			pointsDraw += payment.LoyaltyPointsUsed
			if account.Points < pointsDraw {
				return nil, false, store.ErrInvalidInput
			}
		}
	}
	for _, payment := range payments {
		switch payment.Method {
		case "gift_card":
			card := s.giftCards[payment.GiftCardID]
			card.Balance -= payment.AmountOrderCurrency
			s.giftCards[payment.GiftCardID] = card
		case "loyalty":
			account, _ := s.loyaltyAccountByCustomerLocked(tenantID, order.CustomerID)
			before := account.Points
			account.Points -= payment.LoyaltyPointsUsed
			s.loyaltyAccounts[account.ID] = *account
			s.loyaltyTxs = append(s.loyaltyTxs, domain.LoyaltyTransaction{
				ID:           xid.New("ltx"),
				AccountID:    account.ID,
				Type:         domain.LoyaltyTxRedeem,
				Points:       payment.LoyaltyPointsUsed,
				BeforePoints: before,
				AfterPoints:  account.Points,
				OrderID:      order.ID,
				CreatedAt:    payment.CreatedAt,
			})
		}
	}

	order.Payments = append(order.Payments, payments...)
	if tips > 0 {
		order.TipsAmount = tips
	}

	totalPaid := 0.0
	for _, payment := range order.Payments {
		totalPaid += payment.AmountOrderCurrency
	}
	order.TotalPaid = money.Round(totalPaid, money.Decimals(order.CurrencyCode))
	domain.Recalculate(order, order.Lines)

	now := time.Now().UTC()
	if money.Settled(order.BalanceDue) {
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaidAt = &now
		s.recordTransitionLocked(order, domain.OrderStatusPaid, payments[0].Actor, "", now)
	} else {
		order.PaymentStatus = domain.PaymentStatusPartiallyPaid
	}
	order.UpdatedAt = now
	return cloneOrder(order), false, nil
}

func (s *Store) VoidOrder(_ context.Context, tenantID string, orderID string, reason string, actor string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.findOrderLocked(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Voidable() {
		return nil, store.ErrInvalidState
	}

	order.VoidReason = reason
	order.VoidedBy = actor
	ts := at
	order.VoidedAt = &ts
	s.recordTransitionLocked(order, domain.OrderStatusVoided, actor, reason, at)
	order.UpdatedAt = at
	return cloneOrder(order), nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[customer.ID] = customer
	account := domain.LoyaltyAccount{
		ID:         xid.New("loyal"),
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		CreatedAt:  customer.CreatedAt,
	}
	s.loyaltyAccounts[account.ID] = account

	saved := customer
	return &saved, nil
}

func (s *Store) GetCustomer(_ context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[customerID]
	if !ok || customer.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := customer
	return &found, nil
}

func (s *Store) UpsertLoyaltySettings(_ context.Context, settings domain.LoyaltySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loyaltySettings[settings.TenantID] = settings
	return nil
}

func (s *Store) GetLoyaltySettings(_ context.Context, tenantID string) (*domain.LoyaltySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.loyaltySettings[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := settings
	return &found, nil
}

func (s *Store) GetLoyaltyAccountByCustomer(_ context.Context, tenantID string, customerID string) (*domain.LoyaltyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loyaltyAccountByCustomerLocked(tenantID, customerID)
}

func (s *Store) loyaltyAccountByCustomerLocked(tenantID string, customerID string) (*domain.LoyaltyAccount, error) {
	for _, account := range s.loyaltyAccounts {
		if account.TenantID == tenantID && account.CustomerID == customerID {
			found := account
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AccrueLoyaltyPoints(_ context.Context, tenantID string, accountID string, points int64, orderID string) (*domain.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.loyaltyAccounts[accountID]
	if !ok || account.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if points <= 0 {
		return nil, store.ErrInvalidInput
	}

	before := account.Points
	account.Points += points
	s.loyaltyAccounts[accountID] = account

	tx := domain.LoyaltyTransaction{
		ID:           xid.New("ltx"),
		AccountID:    accountID,
		Type:         domain.LoyaltyTxEarn,
		Points:       points,
		BeforePoints: before,
		AfterPoints:  account.Points,
		OrderID:      orderID,
		CreatedAt:    time.Now().UTC(),
	}
	s.loyaltyTxs = append(s.loyaltyTxs, tx)
	return &tx, nil
}

func (s *Store) CreateGiftCard(_ context.Context, card domain.GiftCard) (*domain.GiftCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.giftCards {
		if existing.TenantID == card.TenantID && strings.EqualFold(existing.Code, card.Code) {
			return nil, store.ErrInvalidInput
		}
	}
	s.giftCards[card.ID] = card
	saved := card
	return &saved, nil
}

func (s *Store) GetGiftCard(_ context.Context, tenantID string, cardID string) (*domain.GiftCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.giftCards[cardID]
	if !ok || card.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := card
	return &found, nil
}

func (s *Store) UpsertInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inventory[item.ID] = item
	saved := item
	return &saved, nil
}

func (s *Store) GetInventoryItem(_ context.Context, tenantID string, itemID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory[itemID]
	if !ok || item.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (s *Store) AdjustInventoryOnHand(_ context.Context, tenantID string, itemID string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventory[itemID]
	if !ok || item.TenantID != tenantID {
		return store.ErrNotFound
	}
	item.OnHand += delta
	s.inventory[itemID] = item
	return nil
}

func (s *Store) CreateRecipe(_ context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.recipes {
		if existing.TenantID == recipe.TenantID &&
			existing.MenuItemID == recipe.MenuItemID &&
			existing.SizeID == recipe.SizeID && existing.Active {
			existing.Active = false
			s.recipes[id] = existing
		}
	}
	s.recipes[recipe.ID] = recipe
	saved := recipe
	return &saved, nil
}

// FindActiveRecipe prefers an exact item+size match and falls back to the
// item's sizeless recipe.
func (s *Store) FindActiveRecipe(_ context.Context, tenantID string, menuItemID string, sizeID string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fallback *domain.Recipe
	for _, recipe := range s.recipes {
		if recipe.TenantID != tenantID || recipe.MenuItemID != menuItemID || !recipe.Active {
			continue
		}
		if recipe.SizeID == sizeID {
			found := recipe
			return &found, nil
		}
		if recipe.SizeID == "" {
			found := recipe
			fallback = &found
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) OpenShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts {
		if existing.TenantID == shift.TenantID && existing.BranchID == shift.BranchID &&
			existing.Status == domain.ShiftStatusOpen {
			return nil, store.ErrInvalidState
		}
	}
	s.shifts[shift.ID] = shift
	saved := shift
	return &saved, nil
}

func (s *Store) CloseActiveShift(_ context.Context, tenantID string, branchID string, closingCash float64, closedAt time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, shift := range s.shifts {
		if shift.TenantID == tenantID && shift.BranchID == branchID &&
			shift.Status == domain.ShiftStatusOpen {
			shift.Status = domain.ShiftStatusClosed
			shift.ClosingCash = closingCash
			ts := closedAt
			shift.ClosedAt = &ts
			s.shifts[id] = shift
			closed := shift
			return &closed, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetActiveShift(_ context.Context, tenantID string, branchID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts {
		if shift.TenantID == tenantID && shift.BranchID == branchID &&
			shift.Status == domain.ShiftStatusOpen {
			found := shift
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0)
	for _, entry := range s.auditLogs {
		if entry.TenantID != tenantID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return fmt.Errorf("username %s already exists", user.Username)
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *Store) findOrderLocked(tenantID string, orderID string) (*domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok || order.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return order, nil
}

func (s *Store) recordTransitionLocked(order *domain.Order, newStatus string, actor string, note string, at time.Time) {
	order.History = append(order.History, domain.OrderStatusHistory{
		ID:        xid.New("hist"),
		OrderID:   order.ID,
		OldStatus: order.OrderStatus,
		NewStatus: newStatus,
		Actor:     actor,
		Note:      note,
		CreatedAt: at,
	})
	order.OrderStatus = newStatus
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.Lines = make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		lineCopy := line
		lineCopy.Modifiers = append([]domain.OrderLineModifier(nil), line.Modifiers...)
		clone.Lines[i] = lineCopy
	}
	clone.Payments = append([]domain.OrderPayment(nil), order.Payments...)
	clone.History = append([]domain.OrderStatusHistory(nil), order.History...)
	return &clone
}
