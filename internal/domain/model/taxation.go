package model

// Taxation is the tax regime code registered on the cashbox. The gateway
// reports supported regimes as a bitmask of these values.
type Taxation int

const (
	TaxationORN              Taxation = 1
	TaxationUSNIncome        Taxation = 2
	TaxationUSNIncomeOutcome Taxation = 4
	TaxationESN              Taxation = 16
	TaxationPSN              Taxation = 32
)

var taxationNames = map[Taxation]string{
	TaxationORN:              "ОРН",
	TaxationUSNIncome:        "УСН доход",
	TaxationUSNIncomeOutcome: "УСН доход - расход",
	TaxationESN:              "ЕСН",
	TaxationPSN:              "ПСН",
}

// Name returns the display name of the regime, empty for unknown codes.
func (t Taxation) Name() string {
	return taxationNames[t]
}

// Valid reports whether t is a known regime code.
func (t Taxation) Valid() bool {
	_, ok := taxationNames[t]
	return ok
}

// SupportsVat reports whether VAT rates apply under the regime. Only the
// general regime carries VAT; all others encode "not subject".
func (t Taxation) SupportsVat() bool {
	return t == TaxationORN
}

// TaxationsInMask expands a cashbox bitmask into the regimes it includes.
func TaxationsInMask(mask int) []Taxation {
	var included []Taxation
	for _, t := range []Taxation{
		TaxationORN,
		TaxationUSNIncome,
		TaxationUSNIncomeOutcome,
		TaxationESN,
		TaxationPSN,
	} {
		if mask&int(t) != 0 {
			included = append(included, t)
		}
	}
	return included
}
