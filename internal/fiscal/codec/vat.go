// Package codec maps receipts onto the gateway wire format: VAT code tables,
// settlement amount splitting and payload serialization.
package codec

import (
	"fmt"
	"strconv"

	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
)

// Gateway VAT codes (tag 1199).
const (
	VatCode20     = 1
	VatCode10     = 2
	VatCode20x120 = 3
	VatCode10x110 = 4
	VatCode0      = 5
	VatCodeNone   = 6
)

// vatRates maps a gateway VAT code onto its rate notation. Codes 5 and 6 both
// render as "0": zero rate and "not subject" are distinct fiscal states with
// the same arithmetic.
var vatRates = map[int]string{
	VatCode20:     "20",
	VatCode10:     "10",
	VatCode20x120: "20/120",
	VatCode10x110: "10/110",
	VatCode0:      "0",
	VatCodeNone:   "0",
}

// VatCode resolves the gateway VAT code for a raw percentage under the given
// taxation regime. Regimes without VAT always yield "not subject". Prepayment
// receipts use the divided rate notation (N/1N) per prepayment tax
// accounting.
func VatCode(taxation model.Taxation, rate float64, sub model.ReceiptSubType) (int, error) {
	if !taxation.SupportsVat() {
		return VatCodeNone, nil
	}

	whole := int(rate)
	if float64(whole) != rate || whole < 0 {
		return 0, &domainErrors.CodecError{
			Reason: fmt.Sprintf("no VAT code for rate %v (taxation=%d, subtype=%s)", rate, taxation, sub),
		}
	}
	if whole == 0 {
		return VatCode0, nil
	}

	notation := strconv.Itoa(whole)
	if sub == model.SubTypePre {
		notation = fmt.Sprintf("%d/1%d", whole, whole)
	}

	for _, code := range []int{VatCode20, VatCode10, VatCode20x120, VatCode10x110} {
		if vatRates[code] == notation {
			return code, nil
		}
	}

	return 0, &domainErrors.CodecError{
		Reason: fmt.Sprintf("no VAT code for rate %v (taxation=%d, subtype=%s)", rate, taxation, sub),
	}
}

// VatRate returns the rate notation of a gateway VAT code.
func VatRate(code int) (string, error) {
	rate, ok := vatRates[code]
	if !ok {
		return "", &domainErrors.CodecError{Reason: fmt.Sprintf("unknown VAT code %d", code)}
	}
	return rate, nil
}

// SplitAmount distributes the receipt total across settlement forms. A full
// settlement that follows a fiscalized prepayment is covered by that advance;
// everything else is a cashless payment.
func SplitAmount(sub model.ReceiptSubType, prepaid bool, total float64) model.Amount {
	if sub == model.SubTypeFull && prepaid {
		return model.Amount{Prepayment: total}
	}
	return model.Amount{Cashless: total}
}
