package domain

import (
	"fmt"
	"time"

	"mejaresto/internal/money"
)

// PriceLine fills the derived monetary fields of a line from its unit price,
// quantity and discount percent. The effective unit price must already be
// resolved (base + modifiers extra).
func PriceLine(line *OrderLine) {
	line.EffectiveUnitPrice = line.BaseUnitPrice + line.ModifiersExtra
	line.LineGross = line.EffectiveUnitPrice * line.Quantity
	if line.DiscountPercent > 0 {
		line.DiscountAmount = money.ApplyPercent(line.LineGross, line.DiscountPercent)
	} else {
		line.DiscountAmount = 0
	}
	line.LineNet = line.LineGross - line.DiscountAmount
}

// Recalculate recomputes every order-level total from the given line set and
// the order's stored rates. Stages feed each other unrounded; only the fields
// written back to the order are rounded to the currency precision. The stage
// order is fixed: tax compounds on a base that already includes the service
// charge and delivery fee, so reordering changes the totals.
func Recalculate(order *Order, lines []OrderLine) {
	subtotal := 0.0
	totalLineDiscount := 0.0
	for _, line := range lines {
		subtotal += line.LineGross
		totalLineDiscount += line.DiscountAmount
	}

	netAfterLineDiscount := subtotal - totalLineDiscount

	billDiscount := 0.0
	if order.BillDiscountPercent > 0 {
		billDiscount = money.ApplyPercent(netAfterLineDiscount, order.BillDiscountPercent)
	}

	netBeforeServiceAndTax := netAfterLineDiscount - billDiscount

	serviceCharge := 0.0
	if order.ServiceChargePercent > 0 {
		serviceCharge = money.ApplyPercent(netBeforeServiceAndTax, order.ServiceChargePercent)
	}

	netBeforeTax := netBeforeServiceAndTax + serviceCharge + order.DeliveryFee

	tax := 0.0
	if order.TaxPercent > 0 {
		tax = money.ApplyPercent(netBeforeTax, order.TaxPercent)
	}

	grandTotal := netBeforeTax + tax + order.TipsAmount

	decimals := money.Decimals(order.CurrencyCode)
	order.Subtotal = money.Round(subtotal, decimals)
	order.TotalLineDiscount = money.Round(totalLineDiscount, decimals)
	order.BillDiscountAmount = money.Round(billDiscount, decimals)
	order.ServiceChargeAmount = money.Round(serviceCharge, decimals)
	order.TaxAmount = money.Round(tax, decimals)
	order.GrandTotal = money.Round(grandTotal, decimals)
	order.BalanceDue = money.Round(order.GrandTotal-order.TotalPaid, decimals)
}

// Mutable reports whether lines and discounts may still change. Paid and
// voided orders are frozen.
func (o *Order) Mutable() bool {
	return o.OrderStatus != OrderStatusPaid && o.OrderStatus != OrderStatusVoided
}

// Voidable rejects re-voiding and voiding a settled order. Refunding a paid
// order is a separate flow, not a void.
func (o *Order) Voidable() bool {
	return o.OrderStatus != OrderStatusVoided && o.OrderStatus != OrderStatusPaid
}

func SupportedOrderType(orderType string) bool {
	switch orderType {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	default:
		return false
	}
}

// FormatOrderNumber renders the human-readable order number for a branch-day
// sequence value: {yyyyMMdd}-{seq:04d}.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", day.UTC().Format("20060102"), seq)
}

// OrderDayKey is the per-branch bucket used by the daily order counter.
func OrderDayKey(day time.Time) string {
	return day.UTC().Format("2006-01-02")
}
