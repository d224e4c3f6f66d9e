package models

import (
	"time"
)

// Invoice represents one checkout attempt and its payment outcome.
// ExternalID is issued locally before the gateway call and correlates the
// invoice with the gateway's view of the transaction; it never changes.
type Invoice struct {
	ID            int               `json:"id"`
	UserID        int               `json:"user_id"`
	ExternalID    string            `json:"external_id"`
	Status        string            `json:"status"`
	CheckoutURL   string            `json:"checkout_url,omitempty"`
	PaymentAmount float64           `json:"payment_amount"`
	PaymentDate   *time.Time        `json:"payment_date,omitempty"`
	InvoiceDate   time.Time         `json:"invoice_date"`
	Description   string            `json:"description,omitempty"`
	Items         []InvoiceLineItem `json:"items,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

// InvoiceLineItem is a frozen snapshot: LineTotal = unit price at purchase
// time × quantity. It is never recomputed from the live product price.
type InvoiceLineItem struct {
	ID        int     `json:"id"`
	InvoiceID int     `json:"invoice_id"`
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// NewLineItem is the caller-supplied input for invoice creation.
type NewLineItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
