package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReceiptType separates documents confirming money coming in from their
// reversals.
type ReceiptType string

const (
	TypeComing       ReceiptType = "COMING"
	TypeRefundComing ReceiptType = "REFUND_COMING"
)

// ReceiptSubType orders receipts within one purchase.
type ReceiptSubType string

const (
	// SubTypePre - prepayment receipt, opens the receipt history of an order.
	SubTypePre ReceiptSubType = "PRE"
	// SubTypeFull - full settlement receipt.
	SubTypeFull ReceiptSubType = "FULL"
	// SubTypeHand - manually issued receipt, bypasses PRE/FULL sequencing.
	SubTypeHand ReceiptSubType = "HAND"
)

// ItemKind is the wire code of a receipt line kind.
type ItemKind int

const (
	ItemProduct ItemKind = 1
	ItemService ItemKind = 4
	ItemPayment ItemKind = 10
)

// PaymentMethod is the wire code of a line settlement method.
type PaymentMethod int

const (
	PaymentMethodPre100 PaymentMethod = 1
	PaymentMethodFull   PaymentMethod = 4
)

// ReceiptItem is a single receipt line. Vat holds the raw percentage; the
// gateway VAT code is derived at serialization time.
type ReceiptItem struct {
	Kind          ItemKind
	Name          string
	Price         float64
	Quantity      float64
	Amount        float64
	Vat           float64
	PaymentMethod PaymentMethod
}

// Total returns the line amount, falling back to price*quantity when the
// amount was not set explicitly.
func (i ReceiptItem) Total() float64 {
	if i.Amount > 0 {
		return i.Amount
	}
	return i.Price * i.Quantity
}

// Amount splits the receipt total across settlement forms. At most one field
// is non-zero for the receipts this service issues.
type Amount struct {
	Prepayment float64
	Cashless   float64
}

// Total returns the sum over all settlement forms.
func (a Amount) Total() float64 {
	return a.Prepayment + a.Cashless
}

// Notify holds customer contacts for the electronic receipt. At least one
// contact is required before transmission.
type Notify struct {
	Email string
	Phone string
}

// Empty reports whether no contact is set.
func (n Notify) Empty() bool {
	return n.Email == "" && n.Phone == ""
}

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "")

// AddContact classifies a raw contact string as email or phone and stores it.
// Phone numbers are normalized to their last ten digits.
func (n *Notify) AddContact(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if _, err := mail.ParseAddress(raw); err == nil {
		n.Email = raw
		return
	}
	digits := phoneCleaner.Replace(raw)
	if len(digits) > 10 && allDigits(digits) {
		n.Phone = digits[len(digits)-10:]
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Customer optionally identifies the buyer on the receipt.
type Customer struct {
	Name string
	Tin  string
}

// Receipt is a fiscal document issued against an order. UUID is the
// idempotency key for the gateway: generated once, reused on every resend,
// never reassigned.
type Receipt struct {
	ID      int64
	UUID    string
	OrderID string
	SiteID  string

	Type    ReceiptType
	SubType ReceiptSubType
	Status  ReceiptStatus

	Items    []ReceiptItem
	Amount   Amount
	Notify   Notify
	Customer *Customer

	Taxation Taxation
	Location string
	Cashbox  string

	ResponseCode int
	ResponseBody string
	Attempts     int
	StartTime    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReceipt constructs a receipt with a fresh idempotency key.
func NewReceipt(t ReceiptType, sub ReceiptSubType, orderID, siteID string) *Receipt {
	return &Receipt{
		UUID:    NewReceiptUUID(),
		OrderID: orderID,
		SiteID:  siteID,
		Type:    t,
		SubType: sub,
	}
}

// NewReceiptUUID generates the gateway idempotency key: a v4 UUID without
// separators, the format the Pangaea API expects in the path.
func NewReceiptUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CopyForRefund creates the reversal skeleton of a coming receipt: same
// order, contacts, customer and fiscal context, opposite type, no items and
// a fresh idempotency key.
func (r *Receipt) CopyForRefund() *Receipt {
	refund := NewReceipt(TypeRefundComing, r.SubType, r.OrderID, r.SiteID)
	refund.Notify = r.Notify
	refund.Customer = r.Customer
	refund.Taxation = r.Taxation
	refund.Location = r.Location
	refund.Cashbox = r.Cashbox
	return refund
}

// TotalAmount sums the line totals.
func (r *Receipt) TotalAmount() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.Total()
	}
	return total
}

// SetFiscalResult records the latest gateway answer and re-derives the
// status. The first recorded attempt stamps StartTime, which anchors the
// expiry window.
func (r *Receipt) SetFiscalResult(code int, body string) {
	r.ResponseCode = code
	r.ResponseBody = body
	r.Status = ClassifyResponse(code)
	r.Attempts++
	if r.StartTime.IsZero() {
		r.StartTime = time.Now()
	}
}

// MarkPrepared records a transport failure: the receipt never reached the
// gateway and must be re-submitted, not polled.
func (r *Receipt) MarkPrepared() {
	r.Status = StatusPrepared
	r.Attempts++
	if r.StartTime.IsZero() {
		r.StartTime = time.Now()
	}
}

// ExpiredAt reports whether the receipt fell out of the allowed attempt
// window. Terminal receipts never expire.
func (r *Receipt) ExpiredAt(now time.Time, window time.Duration) bool {
	if r.Status.Terminal() || r.StartTime.IsZero() {
		return false
	}
	return now.Sub(r.StartTime) > window
}
