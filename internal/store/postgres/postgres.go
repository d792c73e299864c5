package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mejaresto/internal/domain"
	"mejaresto/internal/store"
	"mejaresto/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, tenant_id, name, currency_code, tax_percent, service_charge_percent, delivery_fee, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, branch.ID, branch.TenantID, branch.Name, branch.CurrencyCode, branch.TaxPercent,
		branch.ServiceChargePercent, branch.DeliveryFee, branch.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := branch
	return &created, nil
}

func (s *Store) GetBranch(ctx context.Context, tenantID string, branchID string) (*domain.Branch, error) {
	var branch domain.Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, currency_code, tax_percent, service_charge_percent, delivery_fee, active
		FROM branches
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, branchID).Scan(&branch.ID, &branch.TenantID, &branch.Name, &branch.CurrencyCode,
		&branch.TaxPercent, &branch.ServiceChargePercent, &branch.DeliveryFee, &branch.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &branch, nil
}

func (s *Store) ListBranches(ctx context.Context, tenantID string) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, currency_code, tax_percent, service_charge_percent, delivery_fee, active
		FROM branches
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		var branch domain.Branch
		if err := rows.Scan(&branch.ID, &branch.TenantID, &branch.Name, &branch.CurrencyCode,
			&branch.TaxPercent, &branch.ServiceChargePercent, &branch.DeliveryFee, &branch.Active); err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	sizes, err := json.Marshal(item.Sizes)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, tenant_id, name, category, base_price, kitchen_station, active, sizes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, item.ID, item.TenantID, item.Name, item.Category, item.BasePrice,
		nullIfEmpty(item.KitchenStation), item.Active, sizes, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	sizes, err := json.Marshal(item.Sizes)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $3, category = $4, base_price = $5, kitchen_station = $6, active = $7, sizes = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`, item.TenantID, item.ID, item.Name, item.Category, item.BasePrice,
		nullIfEmpty(item.KitchenStation), item.Active, sizes, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := item
	return &updated, nil
}

func (s *Store) GetMenuItem(ctx context.Context, tenantID string, itemID string) (*domain.MenuItem, error) {
	item, err := scanMenuItem(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, category, base_price, kitchen_station, active, sizes, created_at, updated_at
		FROM menu_items
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, category, base_price, kitchen_station, active, sizes, created_at, updated_at
		FROM menu_items
		WHERE tenant_id = $1
		ORDER BY category, name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, 64)
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenuItem(row rowScanner) (*domain.MenuItem, error) {
	var item domain.MenuItem
	var station sql.NullString
	var sizes []byte
	if err := row.Scan(&item.ID, &item.TenantID, &item.Name, &item.Category, &item.BasePrice,
		&station, &item.Active, &sizes, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.KitchenStation = station.String
	if len(sizes) > 0 {
		if err := json.Unmarshal(sizes, &item.Sizes); err != nil {
			return nil, err
		}
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) CreateModifier(ctx context.Context, modifier domain.Modifier) (*domain.Modifier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modifiers (id, tenant_id, name, extra_price, active)
		VALUES ($1,$2,$3,$4,$5)
	`, modifier.ID, modifier.TenantID, modifier.Name, modifier.ExtraPrice, modifier.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := modifier
	return &created, nil
}

func (s *Store) ListModifiers(ctx context.Context, tenantID string) ([]domain.Modifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, extra_price, active
		FROM modifiers
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modifiers := make([]domain.Modifier, 0, 32)
	for rows.Next() {
		var modifier domain.Modifier
		if err := rows.Scan(&modifier.ID, &modifier.TenantID, &modifier.Name, &modifier.ExtraPrice, &modifier.Active); err != nil {
			return nil, err
		}
		modifiers = append(modifiers, modifier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modifiers, nil
}

func (s *Store) GetModifiersByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Modifier, error) {
	result := make(map[string]domain.Modifier, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, extra_price, active
		FROM modifiers
		WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var modifier domain.Modifier
		if err := rows.Scan(&modifier.ID, &modifier.TenantID, &modifier.Name, &modifier.ExtraPrice, &modifier.Active); err != nil {
			return nil, err
		}
		result[modifier.ID] = modifier
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateModifierPrice(ctx context.Context, tenantID string, modifierID string, extraPrice float64) (*domain.Modifier, error) {
	var modifier domain.Modifier
	err := s.db.QueryRowContext(ctx, `
		UPDATE modifiers
		SET extra_price = $3
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, name, extra_price, active
	`, tenantID, modifierID, extraPrice).Scan(&modifier.ID, &modifier.TenantID, &modifier.Name,
		&modifier.ExtraPrice, &modifier.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &modifier, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.TenantID, customer.Name, nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	// Every customer gets a loyalty account immediately, so accrual after
	// payment never has to create one on the fly.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_accounts (id, tenant_id, customer_id, points, created_at)
		VALUES ($1,$2,$3,0,$4)
	`, xid.New("loyal"), customer.TenantID, customer.ID, customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, phone, created_at
		FROM customers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, customerID).Scan(&customer.ID, &customer.TenantID, &customer.Name, &phone, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.Phone = phone.String
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) UpsertLoyaltySettings(ctx context.Context, settings domain.LoyaltySettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_settings (tenant_id, amount_unit, points_per_amount, earn_on_net_before_tax)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (tenant_id)
		DO UPDATE SET amount_unit = $2, points_per_amount = $3, earn_on_net_before_tax = $4
	`, settings.TenantID, settings.AmountUnit, settings.PointsPerAmount, settings.EarnOnNetBeforeTax)
	return err
}

func (s *Store) GetLoyaltySettings(ctx context.Context, tenantID string) (*domain.LoyaltySettings, error) {
	var settings domain.LoyaltySettings
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, amount_unit, points_per_amount, earn_on_net_before_tax
		FROM loyalty_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&settings.TenantID, &settings.AmountUnit, &settings.PointsPerAmount, &settings.EarnOnNetBeforeTax)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) GetLoyaltyAccountByCustomer(ctx context.Context, tenantID string, customerID string) (*domain.LoyaltyAccount, error) {
	var account domain.LoyaltyAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, points, created_at
		FROM loyalty_accounts
		WHERE tenant_id = $1 AND customer_id = $2
	`, tenantID, customerID).Scan(&account.ID, &account.TenantID, &account.CustomerID, &account.Points, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (s *Store) AccrueLoyaltyPoints(ctx context.Context, tenantID string, accountID string, points int64, orderID string) (*domain.LoyaltyTransaction, error) {
	if points <= 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var before int64
	err = tx.QueryRowContext(ctx, `
		SELECT points
		FROM loyalty_accounts
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, accountID).Scan(&before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	after := before + points
	if _, err := tx.ExecContext(ctx, `
		UPDATE loyalty_accounts SET points = $3 WHERE tenant_id = $1 AND id = $2
	`, tenantID, accountID, after); err != nil {
		return nil, err
	}

	entry := domain.LoyaltyTransaction{
		ID:           xid.New("ltx"),
		AccountID:    accountID,
		Type:         domain.LoyaltyTxEarn,
		Points:       points,
		BeforePoints: before,
		AfterPoints:  after,
		OrderID:      orderID,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (id, account_id, type, points, before_points, after_points, order_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.AccountID, entry.Type, entry.Points, entry.BeforePoints, entry.AfterPoints,
		nullIfEmpty(entry.OrderID), entry.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) CreateGiftCard(ctx context.Context, card domain.GiftCard) (*domain.GiftCard, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gift_cards (id, tenant_id, code, balance, active)
		VALUES ($1,$2,$3,$4,$5)
	`, card.ID, card.TenantID, card.Code, card.Balance, card.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := card
	return &created, nil
}

func (s *Store) GetGiftCard(ctx context.Context, tenantID string, cardID string) (*domain.GiftCard, error) {
	var card domain.GiftCard
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, code, balance, active
		FROM gift_cards
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, cardID).Scan(&card.ID, &card.TenantID, &card.Code, &card.Balance, &card.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (s *Store) UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, tenant_id, branch_id, name, unit, on_hand)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id)
		DO UPDATE SET name = $4, unit = $5, on_hand = $6
	`, item.ID, item.TenantID, item.BranchID, item.Name, item.Unit, item.OnHand)
	if err != nil {
		return nil, err
	}

	saved := item
	return &saved, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, tenantID string, itemID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, branch_id, name, unit, on_hand
		FROM inventory_items
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, itemID).Scan(&item.ID, &item.TenantID, &item.BranchID, &item.Name, &item.Unit, &item.OnHand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) AdjustInventoryOnHand(ctx context.Context, tenantID string, itemID string, delta float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET on_hand = on_hand + $3
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, itemID, delta)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	ingredients, err := json.Marshal(recipe.Ingredients)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// A new recipe supersedes the previous active one for the same item+size.
	if _, err := tx.ExecContext(ctx, `
		UPDATE recipes
		SET active = false
		WHERE tenant_id = $1 AND menu_item_id = $2 AND COALESCE(size_id, '') = $3 AND active = true
	`, recipe.TenantID, recipe.MenuItemID, recipe.SizeID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recipes (id, tenant_id, menu_item_id, size_id, active, ingredients)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, recipe.ID, recipe.TenantID, recipe.MenuItemID, nullIfEmpty(recipe.SizeID), recipe.Active, ingredients); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := recipe
	return &created, nil
}

func (s *Store) FindActiveRecipe(ctx context.Context, tenantID string, menuItemID string, sizeID string) (*domain.Recipe, error) {
	// Exact item+size match wins; a sizeless recipe is the fallback.
	var recipe domain.Recipe
	var size sql.NullString
	var ingredients []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, menu_item_id, size_id, active, ingredients
		FROM recipes
		WHERE tenant_id = $1 AND menu_item_id = $2 AND active = true
		  AND (COALESCE(size_id, '') = $3 OR size_id IS NULL)
		ORDER BY (COALESCE(size_id, '') = $3) DESC
		LIMIT 1
	`, tenantID, menuItemID, sizeID).Scan(&recipe.ID, &recipe.TenantID, &recipe.MenuItemID, &size, &recipe.Active, &ingredients)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	recipe.SizeID = size.String
	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &recipe.Ingredients); err != nil {
			return nil, err
		}
	}
	return &recipe, nil
}

func (s *Store) OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	var open int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM shifts
		WHERE tenant_id = $1 AND branch_id = $2 AND status = $3
	`, shift.TenantID, shift.BranchID, domain.ShiftStatusOpen).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, store.ErrInvalidState
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, tenant_id, branch_id, cashier_name, opening_float, status, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, shift.ID, shift.TenantID, shift.BranchID, shift.CashierName, shift.OpeningFloat, shift.Status, shift.OpenedAt)
	if err != nil {
		return nil, err
	}

	created := shift
	return &created, nil
}

func (s *Store) CloseActiveShift(ctx context.Context, tenantID string, branchID string, closingCash float64, closedAt time.Time) (*domain.Shift, error) {
	var shift domain.Shift
	var closed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = $4, closing_cash = $5, closed_at = $6
		WHERE tenant_id = $1 AND branch_id = $2 AND status = $3
		RETURNING id, tenant_id, branch_id, cashier_name, opening_float, closing_cash, status, opened_at, closed_at
	`, tenantID, branchID, domain.ShiftStatusOpen, domain.ShiftStatusClosed, closingCash, closedAt).Scan(
		&shift.ID, &shift.TenantID, &shift.BranchID, &shift.CashierName, &shift.OpeningFloat,
		&shift.ClosingCash, &shift.Status, &shift.OpenedAt, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closed.Valid {
		ts := closed.Time.UTC()
		shift.ClosedAt = &ts
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	return &shift, nil
}

func (s *Store) GetActiveShift(ctx context.Context, tenantID string, branchID string) (*domain.Shift, error) {
	var shift domain.Shift
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, branch_id, cashier_name, opening_float, status, opened_at
		FROM shifts
		WHERE tenant_id = $1 AND branch_id = $2 AND status = $3
	`, tenantID, branchID, domain.ShiftStatusOpen).Scan(&shift.ID, &shift.TenantID, &shift.BranchID,
		&shift.CashierName, &shift.OpeningFloat, &shift.Status, &shift.OpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	return &shift, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.TenantID, entry.Actor, entry.ActorRole, entry.Action, entry.EntityType,
		entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, actor, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, tenantID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.Actor, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, tenant_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Role, user.TenantID, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, tenant_id, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.TenantID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
