package model

// ReceiptStatus describes the fiscalization lifecycle of a receipt.
type ReceiptStatus string

const (
	// StatusCompleted - the gateway confirmed fiscalization, terminal.
	StatusCompleted ReceiptStatus = "COMPLETED"
	// StatusWait - the gateway accepted the receipt, poll again later.
	StatusWait ReceiptStatus = "WAIT"
	// StatusAssume - the receipt reached the gateway but the outcome is
	// unknown (5xx answer), poll again later.
	StatusAssume ReceiptStatus = "ASSUME"
	// StatusRepeat - access or configuration problem, re-submit after a
	// longer backoff.
	StatusRepeat ReceiptStatus = "REPEAT"
	// StatusError - the gateway rejected the receipt, terminal.
	StatusError ReceiptStatus = "ERROR"
	// StatusPrepared - the receipt never reached the gateway, re-submit.
	StatusPrepared ReceiptStatus = "PREPARED"
	// StatusExpired - the allowed attempt window ran out, terminal.
	StatusExpired ReceiptStatus = "EXPIRED"
)

// ClassifyResponse maps a gateway HTTP status code onto a receipt status.
func ClassifyResponse(code int) ReceiptStatus {
	switch {
	case code == 200 || code == 201:
		return StatusCompleted
	case code >= 202 && code < 300:
		return StatusWait
	case code == 401 || code == 402 || code == 404:
		return StatusRepeat
	case code >= 500 && code < 600:
		return StatusAssume
	default:
		return StatusError
	}
}

// Terminal reports whether the status permits no further attempts.
func (s ReceiptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusExpired
}

// NeedsPoll reports whether the pipeline should query the receipt state
// instead of re-submitting it.
func (s ReceiptStatus) NeedsPoll() bool {
	return s == StatusWait || s == StatusAssume
}

// NeedsResubmit reports whether the pipeline should send the receipt again
// under the same idempotency key.
func (s ReceiptStatus) NeedsResubmit() bool {
	return s == StatusRepeat || s == StatusPrepared
}
