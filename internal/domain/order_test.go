package domain

import (
	"testing"
	"time"
)

func TestPriceLine(t *testing.T) {
	line := OrderLine{
		Quantity:        2,
		BaseUnitPrice:   10,
		ModifiersExtra:  1,
		DiscountPercent: 0,
	}
	PriceLine(&line)

	if line.EffectiveUnitPrice != 11 {
		t.Fatalf("effective unit price = %v, want 11", line.EffectiveUnitPrice)
	}
	if line.LineGross != 22 {
		t.Fatalf("line gross = %v, want 22", line.LineGross)
	}
	if line.DiscountAmount != 0 || line.LineNet != 22 {
		t.Fatalf("discount/net = %v/%v, want 0/22", line.DiscountAmount, line.LineNet)
	}
}

func TestPriceLineWithDiscount(t *testing.T) {
	line := OrderLine{
		Quantity:        1,
		BaseUnitPrice:   8,
		DiscountPercent: 50,
	}
	PriceLine(&line)

	if line.LineGross != 8 {
		t.Fatalf("line gross = %v, want 8", line.LineGross)
	}
	if line.DiscountAmount != 4 {
		t.Fatalf("discount amount = %v, want 4", line.DiscountAmount)
	}
	if line.LineNet != 4 {
		t.Fatalf("line net = %v, want 4", line.LineNet)
	}
}

func TestRecalculateStagedPipeline(t *testing.T) {
	lines := []OrderLine{
		{Quantity: 2, BaseUnitPrice: 10, ModifiersExtra: 1},
		{Quantity: 1, BaseUnitPrice: 8, DiscountPercent: 50},
	}
	for i := range lines {
		PriceLine(&lines[i])
	}

	order := Order{
		CurrencyCode:         "IDR",
		TaxPercent:           10,
		ServiceChargePercent: 5,
		BillDiscountPercent:  10,
	}
	Recalculate(&order, lines)

	// 30 gross, 4 line discount, 10% bill discount on 26, 5% service on
	// 23.40, 10% tax on 24.57, grand 27.027 stored as 27.03.
	if order.Subtotal != 30 {
		t.Fatalf("subtotal = %v, want 30", order.Subtotal)
	}
	if order.TotalLineDiscount != 4 {
		t.Fatalf("total line discount = %v, want 4", order.TotalLineDiscount)
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
	if order.BalanceDue != 27.03 {
		t.Fatalf("balance due = %v, want 27.03", order.BalanceDue)
	}
}

func TestDiscountsComposeSequentially(t *testing.T) {
	lines := []OrderLine{{Quantity: 1, BaseUnitPrice: 100, DiscountPercent: 10}}
	PriceLine(&lines[0])

	order := Order{
		CurrencyCode:         "USD",
		TaxPercent:           10,
		ServiceChargePercent: 5,
		BillDiscountPercent:  10,
	}
	Recalculate(&order, lines)

	if order.Subtotal != 100 || order.TotalLineDiscount != 10 {
		t.Fatalf("subtotal/line discount = %v/%v, want 100/10", order.Subtotal, order.TotalLineDiscount)
	}
	// The bill discount applies to the 90 left after the line discount, not
	// to the original 100.
	if order.BillDiscountAmount != 9 {
		t.Fatalf("bill discount = %v, want 9", order.BillDiscountAmount)
	}
	if order.ServiceChargeAmount != 4.05 {
		t.Fatalf("service charge = %v, want 4.05", order.ServiceChargeAmount)
	}
	// 10% tax on 85.05 is 8.505, stored as 8.51; the unrounded 93.555 grand
	// total rounds half away from zero to 93.56.
	if order.TaxAmount != 8.51 {
		t.Fatalf("tax = %v, want 8.51", order.TaxAmount)
	}
	if order.GrandTotal != 93.56 {
		t.Fatalf("grand total = %v, want 93.56", order.GrandTotal)
	}
	if order.BalanceDue != 93.56 {
		t.Fatalf("balance due = %v, want 93.56", order.BalanceDue)
	}
}

func TestRecalculateTaxCompoundsOnServiceAndDelivery(t *testing.T) {
	lines := []OrderLine{{Quantity: 1, BaseUnitPrice: 100}}
	PriceLine(&lines[0])

	order := Order{
		CurrencyCode:         "IDR",
		TaxPercent:           10,
		ServiceChargePercent: 5,
		DeliveryFee:          20,
	}
	Recalculate(&order, lines)

	// Tax base is 100 + 5 service + 20 delivery = 125, tax 12.5.
	if order.TaxAmount != 12.5 {
		t.Fatalf("tax = %v, want 12.5", order.TaxAmount)
	}
	if order.GrandTotal != 137.5 {
		t.Fatalf("grand total = %v, want 137.5", order.GrandTotal)
	}
}

func TestRecalculateTipsInGrandTotal(t *testing.T) {
	lines := []OrderLine{{Quantity: 1, BaseUnitPrice: 50}}
	PriceLine(&lines[0])

	order := Order{CurrencyCode: "IDR", TipsAmount: 5}
	Recalculate(&order, lines)

	if order.GrandTotal != 55 {
		t.Fatalf("grand total = %v, want 55", order.GrandTotal)
	}
	if order.TaxAmount != 0 || order.ServiceChargeAmount != 0 {
		t.Fatalf("unexpected tax/service: %v/%v", order.TaxAmount, order.ServiceChargeAmount)
	}
}

func TestRecalculateDeterministic(t *testing.T) {
	lines := []OrderLine{
		{Quantity: 3, BaseUnitPrice: 12.5, DiscountPercent: 7},
		{Quantity: 1.5, BaseUnitPrice: 9.9},
	}
	for i := range lines {
		PriceLine(&lines[i])
	}

	first := Order{CurrencyCode: "IDR", TaxPercent: 11, ServiceChargePercent: 6, BillDiscountPercent: 3}
	second := first
	Recalculate(&first, lines)
	Recalculate(&second, lines)
	// Recalculating an already-recalculated order must be a no-op.
	Recalculate(&first, lines)

	same := first.Subtotal == second.Subtotal &&
		first.TotalLineDiscount == second.TotalLineDiscount &&
		first.BillDiscountAmount == second.BillDiscountAmount &&
		first.ServiceChargeAmount == second.ServiceChargeAmount &&
		first.TaxAmount == second.TaxAmount &&
		first.GrandTotal == second.GrandTotal &&
		first.BalanceDue == second.BalanceDue
	if !same {
		t.Fatalf("recalculation not deterministic: %+v vs %+v", first, second)
	}
}

func TestRecalculateZeroDecimalCurrency(t *testing.T) {
	lines := []OrderLine{{Quantity: 1, BaseUnitPrice: 1033}}
	PriceLine(&lines[0])

	order := Order{CurrencyCode: "JPY", TaxPercent: 10}
	Recalculate(&order, lines)

	if order.TaxAmount != 103 {
		t.Fatalf("tax = %v, want 103", order.TaxAmount)
	}
	if order.GrandTotal != 1136 {
		t.Fatalf("grand total = %v, want 1136", order.GrandTotal)
	}
}

func TestMutableAndVoidable(t *testing.T) {
	for _, status := range []string{OrderStatusDraft, OrderStatusSentToKitchen} {
		order := Order{OrderStatus: status}
		if !order.Mutable() {
			t.Fatalf("status %s should be mutable", status)
		}
		if !order.Voidable() {
			t.Fatalf("status %s should be voidable", status)
		}
	}

	paid := Order{OrderStatus: OrderStatusPaid}
	if paid.Mutable() {
		t.Fatal("paid order must not be mutable")
	}
	if paid.Voidable() {
		t.Fatal("paid order must not be voidable")
	}

	voided := Order{OrderStatus: OrderStatusVoided}
	if voided.Mutable() || voided.Voidable() {
		t.Fatal("voided order must be frozen")
	}
}

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)
	if got := FormatOrderNumber(day, 1); got != "20260307-0001" {
		t.Fatalf("order number = %s, want 20260307-0001", got)
	}
	if got := FormatOrderNumber(day, 212); got != "20260307-0212" {
		t.Fatalf("order number = %s, want 20260307-0212", got)
	}
}
