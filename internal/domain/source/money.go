package source

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pence converts a decimal currency string ("500.00") to integer pence.
// Sub-penny amounts round half away from zero; values are never truncated.
// An empty string is zero.
func Pence(amount string) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
