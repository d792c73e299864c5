package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mejaresto/internal/catalog"
	"mejaresto/internal/domain"
	"mejaresto/internal/fx"
	"mejaresto/internal/store"
	"mejaresto/internal/store/memory"
)

type testEnv struct {
	svc      *Service
	repo     *memory.Store
	ctx      context.Context
	tenantID string
	branch   domain.Branch
	itemA    domain.MenuItem
	itemB    domain.MenuItem
	modifier domain.Modifier
}

func newTestEnv(t *testing.T, rates fx.RateProvider) *testEnv {
	t.Helper()

	repo := memory.New()
	resolver := catalog.NewResolver(repo, nil, 0)
	svc := New(repo, resolver, rates)

	tenantID := "t1"
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin", TenantID: tenantID})

	branch, err := svc.CreateBranch(ctx, tenantID, domain.BranchCreateRequest{
		Name:                 "Main",
		CurrencyCode:         "USD",
		TaxPercent:           10,
		ServiceChargePercent: 5,
		DeliveryFee:          3,
	})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}

	itemA, err := svc.CreateMenuItem(ctx, tenantID, domain.MenuItemCreateRequest{
		Name: "Burger", Category: "Food", BasePrice: 10, KitchenStation: "grill",
	})
	if err != nil {
		t.Fatalf("create item A: %v", err)
	}
	itemB, err := svc.CreateMenuItem(ctx, tenantID, domain.MenuItemCreateRequest{
		Name: "Fries", Category: "Food", BasePrice: 8,
	})
	if err != nil {
		t.Fatalf("create item B: %v", err)
	}
	modifier, err := svc.CreateModifier(ctx, tenantID, domain.ModifierCreateRequest{
		Name: "Extra Cheese", ExtraPrice: 1,
	})
	if err != nil {
		t.Fatalf("create modifier: %v", err)
	}

	return &testEnv{
		svc: svc, repo: repo, ctx: ctx, tenantID: tenantID,
		branch: branch, itemA: itemA, itemB: itemB, modifier: modifier,
	}
}

// billedOrder builds the standard worked example: 2x Burger with one Extra
// Cheese (22.00), 1x Fries at 50% off (4.00 net), 10% bill discount, 5%
// service charge, 10% tax. Grand total 27.03.
func (e *testEnv) billedOrder(t *testing.T) domain.Order {
	t.Helper()

	order, err := e.svc.CreateOrder(e.ctx, e.tenantID, domain.OrderCreateRequest{
		BranchID: e.branch.ID, OrderType: domain.OrderTypeDineIn, TableRef: "T-4",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := e.svc.AddLine(e.ctx, e.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID: e.itemA.ID,
		Quantity:   2,
		Modifiers:  []domain.ModifierSelection{{ModifierID: e.modifier.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("add line A: %v", err)
	}
	if _, err := e.svc.AddLine(e.ctx, e.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID:      e.itemB.ID,
		Quantity:        1,
		DiscountPercent: 50,
	}); err != nil {
		t.Fatalf("add line B: %v", err)
	}

	updated, err := e.svc.ApplyDiscount(e.ctx, e.tenantID, order.ID, 10)
	if err != nil {
		t.Fatalf("apply discount: %v", err)
	}
	return updated
}

func TestOrderLifecycleTotals(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if order.Subtotal != 30 {
		t.Fatalf("subtotal = %v, want 30", order.Subtotal)
	}
	if order.TotalLineDiscount != 4 {
		t.Fatalf("line discount = %v, want 4", order.TotalLineDiscount)
	}
	if order.BillDiscountAmount != 2.6 {
		t.Fatalf("bill discount = %v, want 2.6", order.BillDiscountAmount)
	}
	if order.ServiceChargeAmount != 1.17 {
		t.Fatalf("service charge = %v, want 1.17", order.ServiceChargeAmount)
	}
	if order.TaxAmount != 2.46 {
		t.Fatalf("tax = %v, want 2.46", order.TaxAmount)
	}
	if order.GrandTotal != 27.03 {
		t.Fatalf("grand total = %v, want 27.03", order.GrandTotal)
	}
	if order.OrderStatus != domain.OrderStatusDraft || order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("unexpected statuses: %s/%s", order.OrderStatus, order.PaymentStatus)
	}
	if !strings.HasSuffix(order.OrderNumber, "-0001") {
		t.Fatalf("order number = %s, want -0001 suffix", order.OrderNumber)
	}
}

func TestOrderNumberIncrementsPerBranchDay(t *testing.T) {
	env := newTestEnv(t, nil)

	first, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeTakeaway,
	})
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	second, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeTakeaway,
	})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}

	if !strings.HasSuffix(first.OrderNumber, "-0001") || !strings.HasSuffix(second.OrderNumber, "-0002") {
		t.Fatalf("order numbers = %s, %s", first.OrderNumber, second.OrderNumber)
	}
}

func TestDeliveryOrderSnapshotsFee(t *testing.T) {
	env := newTestEnv(t, nil)

	order, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeDelivery,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.DeliveryFee != 3 {
		t.Fatalf("delivery fee = %v, want 3", order.DeliveryFee)
	}

	dineIn, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeDineIn,
	})
	if err != nil {
		t.Fatalf("create dine-in order: %v", err)
	}
	if dineIn.DeliveryFee != 0 {
		t.Fatalf("dine-in delivery fee = %v, want 0", dineIn.DeliveryFee)
	}
}

func TestLinePricesSurviveCatalogReprice(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	repriced := env.itemA
	repriced.BasePrice = 99
	if _, err := env.repo.UpdateMenuItem(env.ctx, repriced); err != nil {
		t.Fatalf("reprice item: %v", err)
	}
	if _, err := env.repo.UpdateModifierPrice(env.ctx, env.tenantID, env.modifier.ID, 5); err != nil {
		t.Fatalf("reprice modifier: %v", err)
	}

	// Any mutation re-runs the totals pipeline from the line snapshots.
	updated, err := env.svc.ApplyDiscount(env.ctx, env.tenantID, order.ID, 10)
	if err != nil {
		t.Fatalf("apply discount: %v", err)
	}

	if updated.GrandTotal != 27.03 {
		t.Fatalf("grand total = %v, want 27.03", updated.GrandTotal)
	}
	for _, line := range updated.Lines {
		if line.MenuItemID == env.itemA.ID {
			if line.BaseUnitPrice != 10 || line.ModifiersExtra != 1 {
				t.Fatalf("line snapshot changed: base = %v, extra = %v", line.BaseUnitPrice, line.ModifiersExtra)
			}
		}
	}
}

func TestCreateOrderRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: "drive_through",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSendToKitchen(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.SendToKitchen(env.ctx, env.tenantID, order.ID)
	if err != nil {
		t.Fatalf("send to kitchen: %v", err)
	}
	if resp.LinesSent != 2 {
		t.Fatalf("lines sent = %d, want 2", resp.LinesSent)
	}
	if resp.Status != domain.OrderStatusSentToKitchen {
		t.Fatalf("status = %s, want sent_to_kitchen", resp.Status)
	}

	// Nothing new to send.
	if _, err := env.svc.SendToKitchen(env.ctx, env.tenantID, order.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("resend err = %v, want ErrInvalidState", err)
	}

	// A late line can still be fired without re-sending the others.
	if _, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID: env.itemB.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("add late line: %v", err)
	}
	resp, err = env.svc.SendToKitchen(env.ctx, env.tenantID, order.ID)
	if err != nil {
		t.Fatalf("send late line: %v", err)
	}
	if resp.LinesSent != 1 {
		t.Fatalf("late lines sent = %d, want 1", resp.LinesSent)
	}
}

func TestSendToKitchenEmptyOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	order, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeTakeaway,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := env.svc.SendToKitchen(env.ctx, env.tenantID, order.ID); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPayExactSettles(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}
	if resp.OrderStatus != domain.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", resp.OrderStatus)
	}
	if resp.Change != 0 {
		t.Fatalf("change = %v, want 0", resp.Change)
	}

	paid, err := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid order must carry PaidAt")
	}
	if len(paid.Payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(paid.Payments))
	}
}

func TestPayOverpaymentReturnsChange(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 30}},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}
	if resp.Change != 2.97 {
		t.Fatalf("change = %v, want 2.97", resp.Change)
	}
}

func TestPayPartialThenTolerance(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "card", Amount: 10, Reference: "AUTH-1"}},
	})
	if err != nil {
		t.Fatalf("partial pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPartiallyPaid {
		t.Fatalf("payment status = %s, want partially_paid", resp.PaymentStatus)
	}
	if resp.BalanceDue != 17.03 {
		t.Fatalf("balance due = %v, want 17.03", resp.BalanceDue)
	}

	// 0.01 short is inside the settlement tolerance.
	resp, err = env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 17.02}},
	})
	if err != nil {
		t.Fatalf("final pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid within tolerance", resp.PaymentStatus)
	}
	if resp.Change != 0 {
		t.Fatalf("change = %v, want 0", resp.Change)
	}
}

func TestPayHalfCentShortSettles(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.025}},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid within tolerance", resp.PaymentStatus)
	}
	if resp.Change != 0 {
		t.Fatalf("change = %v, want 0", resp.Change)
	}
}

func TestPayMultiTender(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{
			{Method: "cash", Amount: 10},
			{Method: "card", Amount: 17.03, Reference: "AUTH-9"},
		},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}

	paid, _ := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if len(paid.Payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(paid.Payments))
	}
}

func TestCheckoutWithoutDiscounts(t *testing.T) {
	env := newTestEnv(t, nil)

	pasta, err := env.svc.CreateMenuItem(env.ctx, env.tenantID, domain.MenuItemCreateRequest{
		Name: "Pasta", Category: "Food", BasePrice: 20,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	openOrder := func() domain.Order {
		order, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
			BranchID: env.branch.ID, OrderType: domain.OrderTypeDineIn,
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		updated, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, domain.AddLineRequest{
			MenuItemID: pasta.ID, Quantity: 2,
		})
		if err != nil {
			t.Fatalf("add line: %v", err)
		}
		return updated
	}

	// 40 subtotal, 5% service = 2, 10% tax on 42 = 4.20.
	order := openOrder()
	if order.GrandTotal != 46.2 {
		t.Fatalf("grand total = %v, want 46.2", order.GrandTotal)
	}

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 46.2}},
	})
	if err != nil {
		t.Fatalf("exact pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid || resp.BalanceDue != 0 || resp.Change != 0 {
		t.Fatalf("exact pay: status %s, balance %v, change %v", resp.PaymentStatus, resp.BalanceDue, resp.Change)
	}

	second := openOrder()
	resp, err = env.svc.Pay(env.ctx, env.tenantID, second.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 50}},
	})
	if err != nil {
		t.Fatalf("overpay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("overpay status = %s, want paid", resp.PaymentStatus)
	}
	if resp.Change != 3.8 {
		t.Fatalf("overpay change = %v, want 3.8", resp.Change)
	}
}

func TestPayIdempotencyKeyDedup(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	req := domain.PayRequest{
		IdempotencyKey: "retry-key-1",
		Tenders:        []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}
	first, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, req)
	if err != nil {
		t.Fatalf("first pay: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first pay must not be a duplicate")
	}

	second, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, req)
	if err != nil {
		t.Fatalf("replayed pay: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replayed pay must be flagged duplicate")
	}
	if second.TotalPaid != first.TotalPaid {
		t.Fatalf("replay changed total paid: %v vs %v", second.TotalPaid, first.TotalPaid)
	}

	paid, _ := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if len(paid.Payments) != 1 {
		t.Fatalf("payments = %d, want 1 after replay", len(paid.Payments))
	}
}

func TestPayAlreadyPaidRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if _, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	_, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 5}},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	paid, _ := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if len(paid.Payments) != 1 {
		t.Fatalf("payments = %d, rejection must not record rows", len(paid.Payments))
	}
}

func TestPayValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	cases := []domain.PayRequest{
		{},
		{Tenders: []domain.TenderRequest{{Method: "cash", Amount: 0}}},
		{Tenders: []domain.TenderRequest{{Method: "barter", Amount: 5}}},
		{Tenders: []domain.TenderRequest{{Method: "gift_card", Amount: 5}}},
		{TipsAmount: -1, Tenders: []domain.TenderRequest{{Method: "cash", Amount: 5}}},
	}
	for i, req := range cases {
		if _, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestPayEmptyOrderRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	order, err := env.svc.CreateOrder(env.ctx, env.tenantID, domain.OrderCreateRequest{
		BranchID: env.branch.ID, OrderType: domain.OrderTypeDineIn,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 10}},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState for lineless order", err)
	}
}

func TestPayForeignCurrencyTender(t *testing.T) {
	env := newTestEnv(t, fx.NewStatic(map[string]float64{"EUR/USD": 2}))
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{
			{Method: "cash", Amount: 10, CurrencyCode: "EUR"},
			{Method: "cash", Amount: 7.03},
		},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}
	if resp.TotalPaid != 27.03 {
		t.Fatalf("total paid = %v, want 27.03", resp.TotalPaid)
	}

	paid, _ := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	var eur *domain.OrderPayment
	for i := range paid.Payments {
		if paid.Payments[i].CurrencyCode == "EUR" {
			eur = &paid.Payments[i]
		}
	}
	if eur == nil {
		t.Fatal("missing EUR payment row")
	}
	if eur.TenderedAmount != 10 || eur.AmountOrderCurrency != 20 || eur.ExchangeRate != 2 {
		t.Fatalf("unexpected EUR row: %+v", eur)
	}
}

func TestPayUnknownRateRejected(t *testing.T) {
	env := newTestEnv(t, fx.NewStatic(nil))
	order := env.billedOrder(t)

	_, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 10, CurrencyCode: "EUR"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPayWithGiftCard(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	card, err := env.svc.IssueGiftCard(env.ctx, env.tenantID, "GIFT-50", 20)
	if err != nil {
		t.Fatalf("issue gift card: %v", err)
	}

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{
			{Method: "gift_card", Amount: 20, GiftCardID: card.ID},
			{Method: "cash", Amount: 7.03},
		},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}

	remaining, err := env.repo.GetGiftCard(env.ctx, env.tenantID, card.ID)
	if err != nil {
		t.Fatalf("reload card: %v", err)
	}
	if remaining.Balance != 0 {
		t.Fatalf("card balance = %v, want 0", remaining.Balance)
	}
}

func TestPayGiftCardInsufficientBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	card, err := env.svc.IssueGiftCard(env.ctx, env.tenantID, "GIFT-5", 5)
	if err != nil {
		t.Fatalf("issue gift card: %v", err)
	}

	_, err = env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "gift_card", Amount: 27.03, GiftCardID: card.ID}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	remaining, _ := env.repo.GetGiftCard(env.ctx, env.tenantID, card.ID)
	if remaining.Balance != 5 {
		t.Fatalf("card balance = %v, rejection must not debit", remaining.Balance)
	}
}

func TestPayGiftCardSplitTendersCannotOverdraw(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	card, err := env.svc.IssueGiftCard(env.ctx, env.tenantID, "GIFT-20", 20)
	if err != nil {
		t.Fatalf("issue gift card: %v", err)
	}

	// Each tender alone fits the balance; together they overdraw it.
	_, err = env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{
			{Method: "gift_card", Amount: 15, GiftCardID: card.ID},
			{Method: "gift_card", Amount: 15, GiftCardID: card.ID},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	remaining, _ := env.repo.GetGiftCard(env.ctx, env.tenantID, card.ID)
	if remaining.Balance != 20 {
		t.Fatalf("card balance = %v, rejection must not debit", remaining.Balance)
	}

	unpaid, err := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if unpaid.PaymentStatus != domain.PaymentStatusUnpaid || len(unpaid.Payments) != 0 {
		t.Fatalf("order = %s with %d payments, rejection must record nothing", unpaid.PaymentStatus, len(unpaid.Payments))
	}
}

func TestVoidDraftOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	voided, err := env.svc.VoidOrder(env.ctx, env.tenantID, order.ID, domain.VoidOrderRequest{Reason: "customer left"})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.OrderStatus != domain.OrderStatusVoided {
		t.Fatalf("status = %s, want voided", voided.OrderStatus)
	}
	if voided.VoidReason != "customer left" || voided.VoidedAt == nil || voided.VoidedBy != "admin" {
		t.Fatalf("void metadata incomplete: %+v", voided)
	}
	if len(voided.History) == 0 || voided.History[len(voided.History)-1].NewStatus != domain.OrderStatusVoided {
		t.Fatal("void must record a status transition")
	}

	if _, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID: env.itemA.ID, Quantity: 1,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("add line on voided err = %v, want ErrInvalidState", err)
	}
	if _, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("pay on voided err = %v, want ErrInvalidState", err)
	}
}

func TestVoidPaidOrderRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if _, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	_, err := env.svc.VoidOrder(env.ctx, env.tenantID, order.ID, domain.VoidOrderRequest{Reason: "oops"})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestVoidRequiresReason(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	_, err := env.svc.VoidOrder(env.ctx, env.tenantID, order.ID, domain.VoidOrderRequest{Reason: "  "})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestMutationLockedAfterPaid(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if _, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if _, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID: env.itemA.ID, Quantity: 1,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("add line err = %v, want ErrInvalidState", err)
	}
	if _, err := env.svc.ApplyDiscount(env.ctx, env.tenantID, order.ID, 5); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("discount err = %v, want ErrInvalidState", err)
	}

	lines, _ := env.svc.GetOrder(env.ctx, env.tenantID, order.ID)
	if _, err := env.svc.RemoveLine(env.ctx, env.tenantID, order.ID, lines.Lines[0].ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("remove line err = %v, want ErrInvalidState", err)
	}
}

func TestRemoveLineRecalculates(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	var friesLine string
	for _, line := range order.Lines {
		if line.MenuItemID == env.itemB.ID {
			friesLine = line.ID
		}
	}
	if friesLine == "" {
		t.Fatal("fries line not found")
	}

	updated, err := env.svc.RemoveLine(env.ctx, env.tenantID, order.ID, friesLine)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if updated.Subtotal != 22 {
		t.Fatalf("subtotal = %v, want 22", updated.Subtotal)
	}
	if updated.TotalLineDiscount != 0 {
		t.Fatalf("line discount = %v, want 0", updated.TotalLineDiscount)
	}
	if len(updated.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(updated.Lines))
	}
}

func TestCrossTenantOrderIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if _, err := env.svc.GetOrder(env.ctx, "t2", order.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Pay(env.ctx, "t2", order.ID, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 27.03}},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("pay err = %v, want ErrNotFound", err)
	}
}

func TestAdminGateRejectsCashier(t *testing.T) {
	env := newTestEnv(t, nil)
	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "kasir", Role: "cashier", TenantID: env.tenantID})

	_, err := env.svc.CreateBranch(cashierCtx, env.tenantID, domain.BranchCreateRequest{
		Name: "Annex", CurrencyCode: "USD",
	})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("err = %v, want ErrAdminRequired", err)
	}

	_, err = env.svc.CreateMenuItem(cashierCtx, env.tenantID, domain.MenuItemCreateRequest{
		Name: "Soup", Category: "Food", BasePrice: 6,
	})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("menu item err = %v, want ErrAdminRequired", err)
	}
}

func TestAddLineValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	cases := []domain.AddLineRequest{
		{MenuItemID: "", Quantity: 1},
		{MenuItemID: env.itemA.ID, Quantity: 0},
		{MenuItemID: env.itemA.ID, Quantity: 1, DiscountPercent: 120},
	}
	for i, req := range cases {
		if _, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}

	if _, err := env.svc.AddLine(env.ctx, env.tenantID, order.ID, domain.AddLineRequest{
		MenuItemID: "item-missing", Quantity: 1,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown item err = %v, want ErrNotFound", err)
	}
}

func TestApplyDiscountValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	if _, err := env.svc.ApplyDiscount(env.ctx, env.tenantID, order.ID, -1); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.svc.ApplyDiscount(env.ctx, env.tenantID, order.ID, 101); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestTipsIncludedAtPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.billedOrder(t)

	resp, err := env.svc.Pay(env.ctx, env.tenantID, order.ID, domain.PayRequest{
		TipsAmount: 2,
		Tenders:    []domain.TenderRequest{{Method: "cash", Amount: 29.03}},
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.GrandTotal != 29.03 {
		t.Fatalf("grand total = %v, want 29.03 with tip", resp.GrandTotal)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", resp.PaymentStatus)
	}
}
