package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/types"
)

// PlaceLine is one priced cart line handed over by the catalog.
type PlaceLine struct {
	VendorID  uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Snapshot  types.ProductSnapshot
}

// PlaceOrderInput captures a checkout request.
type PlaceOrderInput struct {
	CustomerID      uuid.UUID
	Lines           []PlaceLine
	Shipping        decimal.Decimal
	ShippingAddress types.AddressSnapshot
	CouponCode      string
}

// CancelInput cancels an order on behalf of a customer or admin.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Role    enums.ActorRole
	Reason  string
}

// ReturnInput requests a return after delivery was confirmed.
type ReturnInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	Reason      string
	Description string
}

// ItemStatusInput advances one item on behalf of its vendor.
type ItemStatusInput struct {
	ItemID         uuid.UUID
	VendorID       uuid.UUID
	ActorID        uuid.UUID
	Target         enums.OrderItemStatus
	TrackingNumber string
	TrackingURL    string
}

// AdminTransitionInput forces an order to any status.
type AdminTransitionInput struct {
	OrderID uuid.UUID
	AdminID uuid.UUID
	Target  enums.OrderStatus
	Note    string
}

// ListInput filters a customer's orders.
type ListInput struct {
	CustomerID uuid.UUID
	Status     *enums.OrderStatus
	Limit      int
	Cursor     string
}

// OrderItemView is the API shape of an order item.
type OrderItemView struct {
	ID             uuid.UUID             `json:"id"`
	VendorID       uuid.UUID             `json:"vendor_id"`
	ProductID      uuid.UUID             `json:"product_id"`
	VariantID      *uuid.UUID            `json:"variant_id,omitempty"`
	Quantity       int                   `json:"quantity"`
	UnitPrice      decimal.Decimal       `json:"unit_price"`
	LineTotal      decimal.Decimal       `json:"line_total"`
	Product        types.ProductSnapshot `json:"product"`
	Status         enums.OrderItemStatus `json:"status"`
	TrackingNumber *string               `json:"tracking_number,omitempty"`
	TrackingURL    *string               `json:"tracking_url,omitempty"`
	ShippedAt      *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time            `json:"delivered_at,omitempty"`
	DiscountShare  decimal.Decimal       `json:"discount_share"`
	Commission     decimal.Decimal       `json:"commission_amount"`
	NetAmount      decimal.Decimal       `json:"net_amount"`
	RefundedAmount decimal.Decimal       `json:"refunded_amount"`
}

// HistoryView is one audit row.
type HistoryView struct {
	OrderItemID *uuid.UUID      `json:"order_item_id,omitempty"`
	FromStatus  string          `json:"from_status"`
	ToStatus    string          `json:"to_status"`
	ActorRole   enums.ActorRole `json:"actor_role"`
	ActorID     *uuid.UUID      `json:"actor_id,omitempty"`
	Trigger     string          `json:"trigger"`
	Note        *string         `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID                  uuid.UUID             `json:"id"`
	OrderNumber         int64                 `json:"order_number"`
	CustomerID          uuid.UUID             `json:"customer_id"`
	Status              enums.OrderStatus     `json:"status"`
	PaymentStatus       enums.PaymentStatus   `json:"payment_status"`
	Subtotal            decimal.Decimal       `json:"subtotal"`
	Discount            decimal.Decimal       `json:"discount"`
	Shipping            decimal.Decimal       `json:"shipping"`
	Total               decimal.Decimal       `json:"total"`
	CouponCode          *string               `json:"coupon_code,omitempty"`
	ShippingAddress     types.AddressSnapshot `json:"shipping_address"`
	CancelReason        *string               `json:"cancel_reason,omitempty"`
	CancelledAt         *time.Time            `json:"cancelled_at,omitempty"`
	DeliveryConfirmedAt *time.Time            `json:"delivery_confirmed_at,omitempty"`
	ReturnReason        *string               `json:"return_reason,omitempty"`
	RefundFlag          *string               `json:"refund_flag,omitempty"`
	Items               []OrderItemView       `json:"items"`
	History             []HistoryView         `json:"history,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// NewOrderView maps the model and, when provided, its history.
func NewOrderView(order *models.Order, history []models.OrderStatusHistory) OrderView {
	view := OrderView{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		CustomerID:          order.CustomerID,
		Status:              order.Status,
		PaymentStatus:       order.PaymentStatus,
		Subtotal:            order.Subtotal,
		Discount:            order.Discount,
		Shipping:            order.Shipping,
		Total:               order.Total,
		CouponCode:          order.CouponCode,
		ShippingAddress:     order.ShippingAddress,
		CancelReason:        order.CancelReason,
		CancelledAt:         order.CancelledAt,
		DeliveryConfirmedAt: order.DeliveryConfirmedAt,
		ReturnReason:        order.ReturnReason,
		RefundFlag:          order.RefundFlag,
		Items:               make([]OrderItemView, 0, len(order.Items)),
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ID:             item.ID,
			VendorID:       item.VendorID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			LineTotal:      item.LineTotal,
			Product:        item.ProductSnapshot,
			Status:         item.Status,
			TrackingNumber: item.TrackingNumber,
			TrackingURL:    item.TrackingURL,
			ShippedAt:      item.ShippedAt,
			DeliveredAt:    item.DeliveredAt,
			DiscountShare:  item.DiscountShare,
			Commission:     item.Commission,
			NetAmount:      item.NetAmount,
			RefundedAmount: item.RefundedAmount,
		})
	}
	for _, h := range history {
		view.History = append(view.History, HistoryView{
			OrderItemID: h.OrderItemID,
			FromStatus:  h.FromStatus,
			ToStatus:    h.ToStatus,
			ActorRole:   h.ActorRole,
			ActorID:     h.ActorID,
			Trigger:     h.Trigger,
			Note:        h.Note,
			CreatedAt:   h.CreatedAt,
		})
	}
	return view
}
