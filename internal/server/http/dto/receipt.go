package dto

import "time"

// ItemRequest is a receipt line supplied by the shop.
type ItemRequest struct {
	Type          int     `json:"type"`
	Name          string  `json:"name" binding:"required"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	Amount        float64 `json:"amount"`
	Vat           float64 `json:"vat"`
	PaymentMethod int     `json:"payment_method"`
}

// AmountRequest overrides the automatic settlement split.
type AmountRequest struct {
	Prepayment float64 `json:"prepayment"`
	Cashless   float64 `json:"cashless"`
}

// FiscalizeRequest carries the order content for a coming receipt.
type FiscalizeRequest struct {
	OrderID  string        `json:"order_id" binding:"required"`
	SiteID   string        `json:"site_id"`
	SubType  string        `json:"subtype"`
	Total    float64       `json:"total"`
	Items    []ItemRequest `json:"items" binding:"required"`
	Contacts []string      `json:"contacts"`
	Customer string        `json:"customer"`
}

// RefundRequest selects flattened receipt lines to refund. Keys are unit
// indices, values the refund amount per unit.
type RefundRequest struct {
	OrderID string          `json:"order_id" binding:"required"`
	SiteID  string          `json:"site_id"`
	Lines   map[int]float64 `json:"lines" binding:"required"`
}

// ManualRequest carries caller-composed content for a HAND receipt.
type ManualRequest struct {
	OrderID  string         `json:"order_id" binding:"required"`
	SiteID   string         `json:"site_id"`
	Items    []ItemRequest  `json:"items" binding:"required"`
	Contacts []string       `json:"contacts"`
	Amount   *AmountRequest `json:"amount"`
}

// ReceiptResponse is the receipt state reported back to the shop.
type ReceiptResponse struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	OrderID      string    `json:"order_id"`
	SiteID       string    `json:"site_id,omitempty"`
	Type         string    `json:"type"`
	SubType      string    `json:"subtype"`
	Status       string    `json:"status"`
	Total        float64   `json:"total"`
	Attempts     int       `json:"attempts"`
	ResponseCode int       `json:"response_code,omitempty"`
	Link         string    `json:"link,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
