package store

import (
	"context"
	"errors"
	"time"

	"mejaresto/internal/domain"
)

// Sentinel errors forming the engine's failure taxonomy. A cross-tenant
// reference is indistinguishable from a missing one: every lookup filters on
// tenant id, so both surface as ErrNotFound. Anything else is unexpected.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistence boundary. Order mutations are coarse
// transactional operations: each one reloads the full line set and recomputes
// totals inside the same transaction that applies the change, so concurrent
// edits against the same order only ever race on committed state.
type Repository interface {
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	GetBranch(ctx context.Context, tenantID string, branchID string) (*domain.Branch, error)
	ListBranches(ctx context.Context, tenantID string) ([]domain.Branch, error)

	CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	GetMenuItem(ctx context.Context, tenantID string, itemID string) (*domain.MenuItem, error)
	ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error)
	CreateModifier(ctx context.Context, modifier domain.Modifier) (*domain.Modifier, error)
	ListModifiers(ctx context.Context, tenantID string) ([]domain.Modifier, error)
	GetModifiersByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Modifier, error)
	UpdateModifierPrice(ctx context.Context, tenantID string, modifierID string, extraPrice float64) (*domain.Modifier, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, tenantID string, orderID string) (*domain.Order, error)
	AddOrderLine(ctx context.Context, tenantID string, orderID string, line domain.OrderLine) (*domain.Order, error)
	RemoveOrderLine(ctx context.Context, tenantID string, orderID string, lineID string) (*domain.Order, error)
	SetBillDiscount(ctx context.Context, tenantID string, orderID string, percent float64) (*domain.Order, error)
	SendOrderToKitchen(ctx context.Context, tenantID string, orderID string, actor string, at time.Time) (*domain.Order, int, error)
	ApplyPayments(ctx context.Context, tenantID string, orderID string, idempotencyKey string, tips float64, payments []domain.OrderPayment) (*domain.Order, bool, error)
	VoidOrder(ctx context.Context, tenantID string, orderID string, reason string, actor string, at time.Time) (*domain.Order, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error)
	UpsertLoyaltySettings(ctx context.Context, settings domain.LoyaltySettings) error
	GetLoyaltySettings(ctx context.Context, tenantID string) (*domain.LoyaltySettings, error)
	GetLoyaltyAccountByCustomer(ctx context.Context, tenantID string, customerID string) (*domain.LoyaltyAccount, error)
	AccrueLoyaltyPoints(ctx context.Context, tenantID string, accountID string, points int64, orderID string) (*domain.LoyaltyTransaction, error)

	CreateGiftCard(ctx context.Context, card domain.GiftCard) (*domain.GiftCard, error)
	GetGiftCard(ctx context.Context, tenantID string, cardID string) (*domain.GiftCard, error)

	UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, tenantID string, itemID string) (*domain.InventoryItem, error)
	AdjustInventoryOnHand(ctx context.Context, tenantID string, itemID string, delta float64) error
	CreateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error)
	FindActiveRecipe(ctx context.Context, tenantID string, menuItemID string, sizeID string) (*domain.Recipe, error)

	OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	CloseActiveShift(ctx context.Context, tenantID string, branchID string, closingCash float64, closedAt time.Time) (*domain.Shift, error)
	GetActiveShift(ctx context.Context, tenantID string, branchID string) (*domain.Shift, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
