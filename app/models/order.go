package models

import (
	"database/sql/driver"
	"time"
)

// TaxMode controls how tax is computed and shown on a bill
type TaxMode string

const (
	TaxModeDisabled TaxMode = "disabled"
	TaxModeSingle   TaxMode = "single" // one combined GST line
	TaxModeSplit    TaxMode = "split"  // CGST + SGST, halved
)

func (m TaxMode) String() string {
	return string(m)
}

func (m *TaxMode) Scan(value interface{}) error {
	*m = TaxMode(value.(string))
	return nil
}

func (m TaxMode) Value() (driver.Value, error) {
	return string(m), nil
}

// DiscountKind represents how a discount value is interpreted
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Discount is an order-level discount descriptor
type Discount struct {
	Kind   DiscountKind `json:"kind"`
	Value  float64      `json:"value"`
	Reason string       `json:"reason"`
}

// OrderLine represents one product+portion entry in an active order
type OrderLine struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrderID         uint       `gorm:"index" json:"order_id"`
	ProductID       uint       `gorm:"index" json:"product_id"`
	Name            string     `gorm:"not null" json:"name"`
	Code            string     `json:"code"`
	Portion         string     `json:"portion"` // "Half", "Full", empty for single-portion items
	Quantity        int        `json:"quantity"`
	UnitPrice       float64    `json:"unit_price"`
	CustomPrice     bool       `gorm:"default:false" json:"custom_price"` // price manually overridden at the counter
	TaxRate         float64    `json:"tax_rate"`                          // percent
	Notes           string     `json:"notes"`
	SentToKitchen   bool       `gorm:"default:false" json:"sent_to_kitchen"`
	PrintedQuantity int        `gorm:"default:0" json:"printed_quantity"`
	SentToKitchenAt *time.Time `json:"sent_to_kitchen_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LineTotal returns quantity × unit price for this line
func (l *OrderLine) LineTotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// TaxLine is one computed tax component on a bill
type TaxLine struct {
	Name   string  `json:"name"` // "GST", "CGST", "SGST"
	Amount float64 `json:"amount"`
}

// OrderTotals holds the derived money breakdown for a bill.
// FinalAmount = round(Subtotal - Discount + TaxTotal); the signed rounding
// difference is carried in RoundOff instead of being absorbed silently.
type OrderTotals struct {
	Subtotal       float64   `json:"subtotal"`
	Discount       float64   `json:"discount"`
	DiscountReason string    `json:"discount_reason,omitempty"`
	Taxes          []TaxLine `json:"taxes"`
	TaxTotal       float64   `json:"tax_total"`
	RoundOff       float64   `json:"round_off"`
	FinalAmount    float64   `json:"final_amount"`
}
