package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "insurely/pkg/domain-errors"
)

// Amounts are stored as NUMERIC(20, 4): at most 16 integer digits and 4
// decimal places. Anything the ledger would round is refused up front.
const (
	AmountScale         = 4
	AmountIntegerDigits = 16

	maxAmountText = 64
)

// ParseDecimal parses a monetary amount sent as a plain decimal string.
// Exponent notation and amounts outside the stored precision are refused;
// sign rules belong to the operation using the amount.
func ParseDecimal(s, field string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(s) > maxAmountText || strings.ContainsAny(s, "eE") {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, field+" must be a plain decimal string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeBadRequest, field+" must be a decimal string")
	}
	if err := CheckAmountBounds(d, field); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmountBounds reports a validation error when d does not fit the stored
// amount precision. Trailing zeros beyond the scale are allowed.
func CheckAmountBounds(d decimal.Decimal, field string) error {
	if d.IsZero() {
		return nil
	}
	if d.NumDigits()+int(d.Exponent()) > AmountIntegerDigits {
		return dErrors.New(dErrors.CodeValidation, field+" has more than 16 integer digits")
	}
	if d.Exponent() < -AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return dErrors.New(dErrors.CodeValidation, field+" has more than 4 decimal places")
	}
	return nil
}
