package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus captures the fulfilment lifecycle of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks gateway payment. It is empty for cash-on-delivery orders.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = ""
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "gateway"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodCashOnDelivery
}

// ParseOrderStatus validates a status received from a client.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return status, nil
	default:
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", value)}
	}
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate ensures the fields required for delivery are present.
func (a ShippingAddress) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"shipping_address.full_name", a.FullName},
		{"shipping_address.phone", a.Phone},
		{"shipping_address.line1", a.Line1},
		{"shipping_address.city", a.City},
		{"shipping_address.postal_code", a.PostalCode},
		{"shipping_address.country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	return nil
}

// Product is the catalog view the checkout trusts for price and stock.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	ImageURL  string `json:"image_url"`
	Stock     Stock  `json:"-"`
}

// OrderItem is a snapshot of a product line taken when the order is placed.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      Size   `json:"size"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url"`
}

// LineTotal is UnitPrice × Quantity in minor units.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order represents a placed checkout managed by the system.
type Order struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	Items                []OrderItem     `json:"items"`
	ShippingAddress      ShippingAddress `json:"shipping_address"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	Currency             string          `json:"currency"`
	ItemsPrice           int64           `json:"items_price"`
	TaxPrice             int64           `json:"tax_price"`
	ShippingPrice        int64           `json:"shipping_price"`
	TotalPrice           int64           `json:"total_price"`
	Status               OrderStatus     `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status,omitempty"`
	GatewayOrderID       string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID     string          `json:"gateway_payment_id,omitempty"`
	PaymentFailureReason string          `json:"payment_failure_reason,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Version              int64           `json:"version"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if strings.TrimSpace(o.UserID) == "" {
		return &ValidationError{Field: "user_id", Message: "is required"}
	}
	if len(o.Items) == 0 {
		return &ValidationError{Field: "items", Message: "must not be empty"}
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "is required"}
		}
		if !item.Size.Valid() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].size", i), Message: "is invalid"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be positive"}
		}
		if item.UnitPrice < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Message: "must not be negative"}
		}
	}
	if !o.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Message: "must be gateway or cash_on_delivery"}
	}
	if o.ItemsPrice+o.TaxPrice+o.ShippingPrice != o.TotalPrice {
		return &ValidationError{Field: "total_price", Message: "does not equal the sum of its parts"}
	}
	return o.ShippingAddress.Validate()
}

// IsTerminal indicates whether the status admits no further transition.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsTerminal reports whether the payment has settled one way or the other.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentCompleted || p == PaymentFailed
}

// Clone returns a deep copy so callers never share item slices or timestamps.
func (o Order) Clone() Order {
	clone := o
	clone.Items = append([]OrderItem(nil), o.Items...)
	clone.PaidAt = cloneTime(o.PaidAt)
	clone.DeliveredAt = cloneTime(o.DeliveredAt)
	clone.CancelledAt = cloneTime(o.CancelledAt)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
