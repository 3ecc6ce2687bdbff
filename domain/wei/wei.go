// Package wei provides wei amount parsing, arithmetic and formatting.
// All functions are pure and never mutate their arguments.
package wei

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between wei and ether.
const EtherDecimals = 18

// ErrInvalid is returned when a string is not a non-negative base-10 integer.
var ErrInvalid = errors.New("invalid wei amount")

// Zero returns a new zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Parse parses a non-negative base-10 integer amount.
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalid
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, ErrInvalid
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalid
	}
	return v, nil
}

// IsValid reports whether s parses as a wei amount.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Add returns a+b as a new value. Nil operands count as zero.
func Add(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Set(a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

// Mul returns price*n as a new value.
func Mul(price *big.Int, n int64) *big.Int {
	if price == nil {
		return Zero()
	}
	return new(big.Int).Mul(price, big.NewInt(n))
}

// Copy returns an independent copy of v (zero for nil).
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return Zero()
	}
	return new(big.Int).Set(v)
}

// Equal compares two amounts, treating nil as zero.
func Equal(a, b *big.Int) bool {
	return Copy(a).Cmp(Copy(b)) == 0
}

// String renders v in base 10 ("0" for nil).
func String(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FormatEther renders a wei amount as an ether decimal string, e.g. 1500000000000000000 -> "1.5".
func FormatEther(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -EtherDecimals).String()
}

// ParseEther converts an ether decimal string into wei. Fractions below one wei are rejected.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return nil, ErrInvalid
	}
	scaled := d.Shift(EtherDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrInvalid
	}
	return scaled.BigInt(), nil
}
