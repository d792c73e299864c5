package domain

import "time"

type Actor struct {
	Username string
	Role     string
	TenantID string
}

type Branch struct {
	ID                   string  `json:"id"`
	TenantID             string  `json:"tenant_id"`
	Name                 string  `json:"name"`
	CurrencyCode         string  `json:"currency_code"`
	TaxPercent           float64 `json:"tax_percent"`
	ServiceChargePercent float64 `json:"service_charge_percent"`
	DeliveryFee          float64 `json:"delivery_fee"`
	Active               bool    `json:"active"`
}

type BranchCreateRequest struct {
	Name                 string  `json:"name"`
	CurrencyCode         string  `json:"currency_code"`
	TaxPercent           float64 `json:"tax_percent"`
	ServiceChargePercent float64 `json:"service_charge_percent"`
	DeliveryFee          float64 `json:"delivery_fee"`
}

type ItemSize struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type MenuItem struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	BasePrice      float64    `json:"base_price"`
	KitchenStation string     `json:"kitchen_station"`
	Active         bool       `json:"active"`
	Sizes          []ItemSize `json:"sizes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type MenuItemCreateRequest struct {
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	BasePrice      float64    `json:"base_price"`
	KitchenStation string     `json:"kitchen_station"`
	Sizes          []ItemSize `json:"sizes,omitempty"`
}

type MenuItemUpdateRequest struct {
	Name      *string  `json:"name,omitempty"`
	Category  *string  `json:"category,omitempty"`
	BasePrice *float64 `json:"base_price,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}

type Modifier struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	Name       string  `json:"name"`
	ExtraPrice float64 `json:"extra_price"`
	Active     bool    `json:"active"`
}

type ModifierCreateRequest struct {
	Name       string  `json:"name"`
	ExtraPrice float64 `json:"extra_price"`
}

// ModifierSelection is a caller-supplied (modifier id, quantity) pair on an
// AddLine request, resolved and snapshotted by the catalog resolver.
type ModifierSelection struct {
	ModifierID string  `json:"modifier_id"`
	Quantity   float64 `json:"quantity"`
}

type OrderLineModifier struct {
	ID             string  `json:"id"`
	OrderLineID    string  `json:"order_line_id"`
	ModifierID     string  `json:"modifier_id"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	UnitExtraPrice float64 `json:"unit_extra_price"`
	TotalPrice     float64 `json:"total_price"`
}

type OrderLine struct {
	ID                 string              `json:"id"`
	OrderID            string              `json:"order_id"`
	MenuItemID         string              `json:"menu_item_id"`
	SizeID             string              `json:"size_id,omitempty"`
	Name               string              `json:"name"`
	Quantity           float64             `json:"quantity"`
	BaseUnitPrice      float64             `json:"base_unit_price"`
	ModifiersExtra     float64             `json:"modifiers_extra"`
	EffectiveUnitPrice float64             `json:"effective_unit_price"`
	LineGross          float64             `json:"line_gross"`
	DiscountPercent    float64             `json:"discount_percent"`
	DiscountAmount     float64             `json:"discount_amount"`
	LineNet            float64             `json:"line_net"`
	KitchenStatus      string              `json:"kitchen_status"`
	KitchenStation     string              `json:"kitchen_station,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	SentToKitchenAt    *time.Time          `json:"sent_to_kitchen_at,omitempty"`
	ReadyAt            *time.Time          `json:"ready_at,omitempty"`
	Modifiers          []OrderLineModifier `json:"modifiers,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

type OrderPayment struct {
	ID                   string    `json:"id"`
	OrderID              string    `json:"order_id"`
	Method               string    `json:"method"`
	CurrencyCode         string    `json:"currency_code"`
	TenderedAmount       float64   `json:"tendered_amount"`
	AmountOrderCurrency  float64   `json:"amount_order_currency"`
	ExchangeRate         float64   `json:"exchange_rate"`
	Reference            string    `json:"reference,omitempty"`
	GiftCardID           string    `json:"gift_card_id,omitempty"`
	LoyaltyPointsUsed    int64     `json:"loyalty_points_used,omitempty"`
	IdempotencyKey       string    `json:"idempotency_key"`
	Actor                string    `json:"actor"`
	CreatedAt            time.Time `json:"created_at"`
}

type OrderStatusHistory struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID                   string               `json:"id"`
	TenantID             string               `json:"tenant_id"`
	BranchID             string               `json:"branch_id"`
	ShiftID              string               `json:"shift_id,omitempty"`
	OrderNumber          string               `json:"order_number"`
	OrderType            string               `json:"order_type"`
	TableRef             string               `json:"table_ref,omitempty"`
	CustomerID           string               `json:"customer_id,omitempty"`
	WaiterRef            string               `json:"waiter_ref,omitempty"`
	CashierRef           string               `json:"cashier_ref,omitempty"`
	CurrencyCode         string               `json:"currency_code"`
	TaxPercent           float64              `json:"tax_percent"`
	ServiceChargePercent float64              `json:"service_charge_percent"`
	BillDiscountPercent  float64              `json:"bill_discount_percent"`
	DeliveryFee          float64              `json:"delivery_fee"`
	TipsAmount           float64              `json:"tips_amount"`
	Subtotal             float64              `json:"subtotal"`
	TotalLineDiscount    float64              `json:"total_line_discount"`
	BillDiscountAmount   float64              `json:"bill_discount_amount"`
	ServiceChargeAmount  float64              `json:"service_charge_amount"`
	TaxAmount            float64              `json:"tax_amount"`
	GrandTotal           float64              `json:"grand_total"`
	TotalPaid            float64              `json:"total_paid"`
	BalanceDue           float64              `json:"balance_due"`
	OrderStatus          string               `json:"order_status"`
	PaymentStatus        string               `json:"payment_status"`
	VoidReason           string               `json:"void_reason,omitempty"`
	VoidedBy             string               `json:"voided_by,omitempty"`
	VoidedAt             *time.Time           `json:"voided_at,omitempty"`
	PaidAt               *time.Time           `json:"paid_at,omitempty"`
	Lines                []OrderLine          `json:"lines"`
	Payments             []OrderPayment       `json:"payments,omitempty"`
	History              []OrderStatusHistory `json:"history,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

type OrderCreateRequest struct {
	BranchID   string `json:"branch_id"`
	OrderType  string `json:"order_type"`
	TableRef   string `json:"table_ref,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	WaiterRef  string `json:"waiter_ref,omitempty"`
}

type AddLineRequest struct {
	MenuItemID      string              `json:"menu_item_id"`
	SizeID          string              `json:"size_id,omitempty"`
	Modifiers       []ModifierSelection `json:"modifiers,omitempty"`
	Quantity        float64             `json:"quantity"`
	DiscountPercent float64             `json:"discount_percent"`
	Notes           string              `json:"notes,omitempty"`
}

type TenderRequest struct {
	Method            string  `json:"method"`
	Amount            float64 `json:"amount"`
	CurrencyCode      string  `json:"currency_code,omitempty"`
	Reference         string  `json:"reference,omitempty"`
	GiftCardID        string  `json:"gift_card_id,omitempty"`
	LoyaltyPointsUsed int64   `json:"loyalty_points_used,omitempty"`
}

type PayRequest struct {
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	TipsAmount     float64         `json:"tips_amount,omitempty"`
	Tenders        []TenderRequest `json:"tenders"`
}

type PayResponse struct {
	OrderID       string  `json:"order_id"`
	PaymentStatus string  `json:"payment_status"`
	OrderStatus   string  `json:"order_status"`
	GrandTotal    float64 `json:"grand_total"`
	TotalPaid     float64 `json:"total_paid"`
	BalanceDue    float64 `json:"balance_due"`
	Change        float64 `json:"change"`
	Duplicate     bool    `json:"duplicate"`
}

type VoidOrderRequest struct {
	Reason string `json:"reason"`
}

type SendToKitchenResponse struct {
	OrderID   string `json:"order_id"`
	LinesSent int    `json:"lines_sent"`
	Status    string `json:"status"`
}

type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type LoyaltyAccount struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	Points     int64     `json:"points"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoyaltyTransaction struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Type         string    `json:"type"`
	Points       int64     `json:"points"`
	BeforePoints int64     `json:"before_points"`
	AfterPoints  int64     `json:"after_points"`
	OrderID      string    `json:"order_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoyaltySettings struct {
	TenantID           string  `json:"tenant_id"`
	AmountUnit         float64 `json:"amount_unit"`
	PointsPerAmount    int64   `json:"points_per_amount"`
	EarnOnNetBeforeTax bool    `json:"earn_on_net_before_tax"`
}

type InventoryItem struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenant_id"`
	BranchID string  `json:"branch_id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	OnHand   float64 `json:"on_hand"`
}

type RecipeIngredient struct {
	InventoryItemID  string  `json:"inventory_item_id"`
	QuantityPerYield float64 `json:"quantity_per_yield"`
}

type Recipe struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id"`
	MenuItemID  string             `json:"menu_item_id"`
	SizeID      string             `json:"size_id,omitempty"`
	Active      bool               `json:"active"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

type GiftCard struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenant_id"`
	Code     string  `json:"code"`
	Balance  float64 `json:"balance"`
	Active   bool    `json:"active"`
}

type Shift struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	BranchID     string     `json:"branch_id"`
	CashierName  string     `json:"cashier_name"`
	OpeningFloat float64    `json:"opening_float"`
	ClosingCash  float64    `json:"closing_cash,omitempty"`
	Status       string     `json:"status"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

type ShiftOpenRequest struct {
	BranchID     string  `json:"branch_id"`
	CashierName  string  `json:"cashier_name"`
	OpeningFloat float64 `json:"opening_float"`
}

type ShiftCloseRequest struct {
	BranchID    string  `json:"branch_id"`
	ClosingCash float64 `json:"closing_cash"`
	Notes       string  `json:"notes,omitempty"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenant_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	ExpiresAt   string `json:"expires_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	TenantID  string
	Active    bool
	CreatedAt time.Time
}

const (
	OrderStatusDraft         = "draft"
	OrderStatusSentToKitchen = "sent_to_kitchen"
	OrderStatusPaid          = "paid"
	OrderStatusVoided        = "voided"
)

const (
	PaymentStatusUnpaid        = "unpaid"
	PaymentStatusPartiallyPaid = "partially_paid"
	PaymentStatusPaid          = "paid"
)

const (
	KitchenStatusNew           = "new"
	KitchenStatusSentToKitchen = "sent_to_kitchen"
	KitchenStatusReady         = "ready"
	KitchenStatusServed        = "served"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

const (
	LoyaltyTxEarn   = "earn"
	LoyaltyTxRedeem = "redeem"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)
