package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"mejaresto/internal/domain"
	"mejaresto/internal/money"
	"mejaresto/internal/store"
	"mejaresto/internal/xid"
)

// Every order mutation runs serializable and locks the order row first, so
// concurrent edits serialize on the aggregate and totals are recomputed from
// the full committed line set before the transaction ends.

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO order_counters (branch_id, day, seq)
		VALUES ($1,$2,1)
		ON CONFLICT (branch_id, day)
		DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq
	`, order.BranchID, domain.OrderDayKey(order.CreatedAt)).Scan(&seq)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = domain.FormatOrderNumber(order.CreatedAt, seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, tenant_id, branch_id, shift_id, order_number, order_type, table_ref,
			customer_id, waiter_ref, cashier_ref, currency_code, tax_percent,
			service_charge_percent, bill_discount_percent, delivery_fee, tips_amount,
			subtotal, total_line_discount, bill_discount_amount, service_charge_amount,
			tax_amount, grand_total, total_paid, balance_due, order_status,
			payment_status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, order.ID, order.TenantID, order.BranchID, nullIfEmpty(order.ShiftID), order.OrderNumber,
		order.OrderType, nullIfEmpty(order.TableRef), nullIfEmpty(order.CustomerID),
		nullIfEmpty(order.WaiterRef), nullIfEmpty(order.CashierRef), order.CurrencyCode,
		order.TaxPercent, order.ServiceChargePercent, order.BillDiscountPercent,
		order.DeliveryFee, order.TipsAmount, order.Subtotal, order.TotalLineDiscount,
		order.BillDiscountAmount, order.ServiceChargeAmount, order.TaxAmount,
		order.GrandTotal, order.TotalPaid, order.BalanceDue, order.OrderStatus,
		order.PaymentStatus, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID string, orderID string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, orderSelect+`
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	order.Lines, err = s.loadLines(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Payments, err = s.loadPayments(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.History, err = s.loadHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) AddOrderLine(ctx context.Context, tenantID string, orderID string, line domain.OrderLine) (*domain.Order, error) {
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if !order.Mutable() {
			return store.ErrInvalidState
		}

		modifiers, err := json.Marshal(line.Modifiers)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, menu_item_id, size_id, name, quantity, base_unit_price,
				modifiers_extra, effective_unit_price, line_gross, discount_percent,
				discount_amount, line_net, kitchen_status, kitchen_station, notes,
				modifiers, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`, line.ID, order.ID, line.MenuItemID, nullIfEmpty(line.SizeID), line.Name, line.Quantity,
			line.BaseUnitPrice, line.ModifiersExtra, line.EffectiveUnitPrice, line.LineGross,
			line.DiscountPercent, line.DiscountAmount, line.LineNet, line.KitchenStatus,
			nullIfEmpty(line.KitchenStation), nullIfEmpty(line.Notes), modifiers, line.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, tenantID, orderID)
}

func (s *Store) RemoveOrderLine(ctx context.Context, tenantID string, orderID string, lineID string) (*domain.Order, error) {
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if !order.Mutable() {
			return store.ErrInvalidState
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM order_lines WHERE order_id = $1 AND id = $2
		`, order.ID, lineID)
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
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, tenantID, orderID)
}

func (s *Store) SetBillDiscount(ctx context.Context, tenantID string, orderID string, percent float64) (*domain.Order, error) {
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if !order.Mutable() {
			return store.ErrInvalidState
		}
		order.BillDiscountPercent = percent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, tenantID, orderID)
}

func (s *Store) SendOrderToKitchen(ctx context.Context, tenantID string, orderID string, actor string, at time.Time) (*domain.Order, int, error) {
	sent := 0
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if !order.Mutable() {
			return store.ErrInvalidState
		}

		var lineCount int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM order_lines WHERE order_id = $1
		`, order.ID).Scan(&lineCount); err != nil {
			return err
		}
		if lineCount == 0 {
			return store.ErrInvalidInput
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE order_lines
			SET kitchen_status = $3, sent_to_kitchen_at = $4
			WHERE order_id = $1 AND kitchen_status = $2
		`, order.ID, domain.KitchenStatusNew, domain.KitchenStatusSentToKitchen, at)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrInvalidState
		}
		sent = int(affected)

		if order.OrderStatus == domain.OrderStatusDraft {
			return s.recordTransition(ctx, tx, order, domain.OrderStatusSentToKitchen, actor, "", at)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	order, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, 0, err
	}
	return order, sent, nil
}

func (s *Store) ApplyPayments(ctx context.Context, tenantID string, orderID string, idempotencyKey string, tips float64, payments []domain.OrderPayment) (*domain.Order, bool, error) {
	if idempotencyKey == "" || len(payments) == 0 {
		return nil, false, store.ErrInvalidInput
	}

	duplicate := false
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if order.OrderStatus == domain.OrderStatusVoided {
			return store.ErrInvalidState
		}

		var seen int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM order_payments WHERE order_id = $1 AND idempotency_key = $2
		`, order.ID, idempotencyKey).Scan(&seen); err != nil {
			return err
		}
		if seen > 0 {
			duplicate = true
			return nil
		}

		if order.PaymentStatus == domain.PaymentStatusPaid {
			return store.ErrInvalidState
		}

		var lineCount int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM order_lines WHERE order_id = $1
		`, order.ID).Scan(&lineCount); err != nil {
			return err
		}
		if lineCount == 0 {
			return store.ErrInvalidState
		}

		for _, payment := range payments {
			switch payment.Method {
			case "gift_card":
				if err := debitGiftCard(ctx, tx, tenantID, payment.GiftCardID, payment.AmountOrderCurrency); err != nil {
					return err
				}
			case "loyalty":
				if err := redeemLoyaltyPoints(ctx, tx, tenantID, order.CustomerID, order.ID, payment); err != nil {
					return err
				}
			}
		}

		for _, payment := range payments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_payments (
					id, order_id, method, currency_code, tendered_amount,
					amount_order_currency, exchange_rate, reference, gift_card_id,
					loyalty_points_used, idempotency_key, actor, created_at
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			`, payment.ID, order.ID, payment.Method, payment.CurrencyCode, payment.TenderedAmount,
				payment.AmountOrderCurrency, payment.ExchangeRate, nullIfEmpty(payment.Reference),
				nullIfEmpty(payment.GiftCardID), payment.LoyaltyPointsUsed, payment.IdempotencyKey,
				payment.Actor, payment.CreatedAt); err != nil {
				return err
			}
		}

		if tips > 0 {
			order.TipsAmount = tips
		}

		var totalPaid float64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount_order_currency), 0) FROM order_payments WHERE order_id = $1
		`, order.ID).Scan(&totalPaid); err != nil {
			return err
		}
		order.TotalPaid = money.Round(totalPaid, money.Decimals(order.CurrencyCode))

		now := time.Now().UTC()
		lines, err := s.loadLines(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		domain.Recalculate(order, lines)

		if money.Settled(order.BalanceDue) {
			order.PaymentStatus = domain.PaymentStatusPaid
			order.PaidAt = &now
			return s.recordTransition(ctx, tx, order, domain.OrderStatusPaid, payments[0].Actor, "", now)
		}
		order.PaymentStatus = domain.PaymentStatusPartiallyPaid
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	order, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, duplicate, nil
}

func (s *Store) VoidOrder(ctx context.Context, tenantID string, orderID string, reason string, actor string, at time.Time) (*domain.Order, error) {
	err := s.mutateOrder(ctx, tenantID, orderID, func(tx *sql.Tx, order *domain.Order) error {
		if !order.Voidable() {
			return store.ErrInvalidState
		}
		order.VoidReason = reason
		order.VoidedBy = actor
		ts := at
		order.VoidedAt = &ts
		return s.recordTransition(ctx, tx, order, domain.OrderStatusVoided, actor, reason, at)
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, tenantID, orderID)
}

// mutateOrder locks the order row, hands the loaded header to fn, then
// recomputes totals from the (possibly changed) line set and writes the
// header back. fn sees the pre-mutation header and may adjust its fields.
func (s *Store) mutateOrder(ctx context.Context, tenantID string, orderID string, fn func(tx *sql.Tx, order *domain.Order) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, orderSelect+`
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if err := fn(tx, order); err != nil {
		return err
	}

	lines, err := s.loadLines(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	domain.Recalculate(order, lines)
	order.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET bill_discount_percent = $3, tips_amount = $4, subtotal = $5,
		    total_line_discount = $6, bill_discount_amount = $7,
		    service_charge_amount = $8, tax_amount = $9, grand_total = $10,
		    total_paid = $11, balance_due = $12, order_status = $13,
		    payment_status = $14, void_reason = $15, voided_by = $16,
		    voided_at = $17, paid_at = $18, updated_at = $19
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, order.ID, order.BillDiscountPercent, order.TipsAmount, order.Subtotal,
		order.TotalLineDiscount, order.BillDiscountAmount, order.ServiceChargeAmount,
		order.TaxAmount, order.GrandTotal, order.TotalPaid, order.BalanceDue,
		order.OrderStatus, order.PaymentStatus, nullIfEmpty(order.VoidReason),
		nullIfEmpty(order.VoidedBy), nullTime(order.VoidedAt), nullTime(order.PaidAt),
		order.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) recordTransition(ctx context.Context, tx *sql.Tx, order *domain.Order, newStatus string, actor string, note string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, old_status, new_status, actor, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, xid.New("hist"), order.ID, order.OrderStatus, newStatus, actor, nullIfEmpty(note), at)
	if err != nil {
		return err
	}
	order.OrderStatus = newStatus
	return nil
}

func debitGiftCard(ctx context.Context, tx *sql.Tx, tenantID string, cardID string, amount float64) error {
	var balance float64
	var active bool
	err := tx.QueryRowContext(ctx, `
		SELECT balance, active FROM gift_cards WHERE tenant_id = $1 AND id = $2 FOR UPDATE
	`, tenantID, cardID).Scan(&balance, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if !active || balance < amount {
		return store.ErrInvalidInput
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE gift_cards SET balance = balance - $3 WHERE tenant_id = $1 AND id = $2
	`, tenantID, cardID, amount)
	return err
}

func redeemLoyaltyPoints(ctx context.Context, tx *sql.Tx, tenantID string, customerID string, orderID string, payment domain.OrderPayment) error {
	var accountID string
	var before int64
	err := tx.QueryRowContext(ctx, `
		SELECT id, points FROM loyalty_accounts WHERE tenant_id = $1 AND customer_id = $2 FOR UPDATE
	`, tenantID, customerID).Scan(&accountID, &before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if before < payment.LoyaltyPointsUsed {
		return store.ErrInvalidInput
	}

	after := before - payment.LoyaltyPointsUsed
	if _, err := tx.ExecContext(ctx, `
		UPDATE loyalty_accounts SET points = $2 WHERE id = $1
	`, accountID, after); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (id, account_id, type, points, before_points, after_points, order_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, xid.New("ltx"), accountID, domain.LoyaltyTxRedeem, payment.LoyaltyPointsUsed, before, after,
		orderID, payment.CreatedAt)
	return err
}

const orderSelect = `
	SELECT id, tenant_id, branch_id, shift_id, order_number, order_type, table_ref,
	       customer_id, waiter_ref, cashier_ref, currency_code, tax_percent,
	       service_charge_percent, bill_discount_percent, delivery_fee, tips_amount,
	       subtotal, total_line_discount, bill_discount_amount, service_charge_amount,
	       tax_amount, grand_total, total_paid, balance_due, order_status,
	       payment_status, void_reason, voided_by, voided_at, paid_at, created_at, updated_at
	FROM orders
`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var shiftID, tableRef, customerID, waiterRef, cashierRef, voidReason, voidedBy sql.NullString
	var voidedAt, paidAt sql.NullTime
	err := row.Scan(&order.ID, &order.TenantID, &order.BranchID, &shiftID, &order.OrderNumber,
		&order.OrderType, &tableRef, &customerID, &waiterRef, &cashierRef, &order.CurrencyCode,
		&order.TaxPercent, &order.ServiceChargePercent, &order.BillDiscountPercent,
		&order.DeliveryFee, &order.TipsAmount, &order.Subtotal, &order.TotalLineDiscount,
		&order.BillDiscountAmount, &order.ServiceChargeAmount, &order.TaxAmount,
		&order.GrandTotal, &order.TotalPaid, &order.BalanceDue, &order.OrderStatus,
		&order.PaymentStatus, &voidReason, &voidedBy, &voidedAt, &paidAt,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	order.ShiftID = shiftID.String
	order.TableRef = tableRef.String
	order.CustomerID = customerID.String
	order.WaiterRef = waiterRef.String
	order.CashierRef = cashierRef.String
	order.VoidReason = voidReason.String
	order.VoidedBy = voidedBy.String
	if voidedAt.Valid {
		ts := voidedAt.Time.UTC()
		order.VoidedAt = &ts
	}
	if paidAt.Valid {
		ts := paidAt.Time.UTC()
		order.PaidAt = &ts
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadLines(ctx context.Context, q queryer, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, menu_item_id, size_id, name, quantity, base_unit_price,
		       modifiers_extra, effective_unit_price, line_gross, discount_percent,
		       discount_amount, line_net, kitchen_status, kitchen_station, notes,
		       sent_to_kitchen_at, ready_at, modifiers, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0, 8)
	for rows.Next() {
		var line domain.OrderLine
		var sizeID, station, notes sql.NullString
		var sentAt, readyAt sql.NullTime
		var modifiers []byte
		if err := rows.Scan(&line.ID, &line.OrderID, &line.MenuItemID, &sizeID, &line.Name,
			&line.Quantity, &line.BaseUnitPrice, &line.ModifiersExtra, &line.EffectiveUnitPrice,
			&line.LineGross, &line.DiscountPercent, &line.DiscountAmount, &line.LineNet,
			&line.KitchenStatus, &station, &notes, &sentAt, &readyAt, &modifiers, &line.CreatedAt); err != nil {
			return nil, err
		}
		line.SizeID = sizeID.String
		line.KitchenStation = station.String
		line.Notes = notes.String
		if sentAt.Valid {
			ts := sentAt.Time.UTC()
			line.SentToKitchenAt = &ts
		}
		if readyAt.Valid {
			ts := readyAt.Time.UTC()
			line.ReadyAt = &ts
		}
		if len(modifiers) > 0 {
			if err := json.Unmarshal(modifiers, &line.Modifiers); err != nil {
				return nil, err
			}
		}
		line.CreatedAt = line.CreatedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) loadPayments(ctx context.Context, orderID string) ([]domain.OrderPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, method, currency_code, tendered_amount, amount_order_currency,
		       exchange_rate, reference, gift_card_id, loyalty_points_used, idempotency_key,
		       actor, created_at
		FROM order_payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.OrderPayment, 0, 4)
	for rows.Next() {
		var payment domain.OrderPayment
		var reference, giftCardID sql.NullString
		if err := rows.Scan(&payment.ID, &payment.OrderID, &payment.Method, &payment.CurrencyCode,
			&payment.TenderedAmount, &payment.AmountOrderCurrency, &payment.ExchangeRate,
			&reference, &giftCardID, &payment.LoyaltyPointsUsed, &payment.IdempotencyKey,
			&payment.Actor, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payment.Reference = reference.String
		payment.GiftCardID = giftCardID.String
		payment.CreatedAt = payment.CreatedAt.UTC()
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) loadHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, old_status, new_status, actor, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.OrderStatusHistory, 0, 4)
	for rows.Next() {
		var entry domain.OrderStatusHistory
		var note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.OldStatus, &entry.NewStatus,
			&entry.Actor, &note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Note = note.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}
