// Package wei converts between human-entered decimal ether amounts and
// integer wei, the smallest currency unit. Conversion is exact: amounts
// that do not fit in whole wei are rejected, never rounded. All prices
// cross the ledger boundary as wei; formatting back to ether is for
// display only.
package wei

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between ether and wei.
const EtherDecimals = 18

// Conversion errors.
var (
	// ErrNotANumber is returned for input that does not parse as a
	// decimal number.
	ErrNotANumber = errors.New("amount is not a number")

	// ErrNegative is returned for negative amounts.
	ErrNegative = errors.New("amount is negative")

	// ErrTooPrecise is returned when the amount has a fractional part
	// below one wei.
	ErrTooPrecise = errors.New("amount has sub-wei precision")
)

// ParseEther converts a decimal ether string to wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrNegative, s)
	}

	shifted := d.Shift(EtherDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q", ErrTooPrecise, s)
	}

	return shifted.BigInt(), nil
}

// FormatEther converts wei to a decimal ether string. Trailing zeros
// are trimmed, so ParseEther(FormatEther(w)) == w for any valid w.
func FormatEther(w *big.Int) string {
	if w == nil {
		return "0"
	}
	return decimal.NewFromBigInt(new(big.Int).Set(w), -EtherDecimals).String()
}
