package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var bigTen = big.NewInt(10)

// Converter translates between ledger base units and display units using a
// single integer scale (base units per display unit). All arithmetic is
// integer arithmetic.
type Converter struct {
	scale *big.Int
	// exponent is log10(scale) when scale is a power of ten, otherwise -1
	exponent int32
}

// NewConverter builds a converter for the given scale
func NewConverter(scale *big.Int) (*Converter, error) {
	if scale == nil || scale.Sign() <= 0 {
		return nil, errors.New("currency scale must be a positive integer")
	}
	return &Converter{
		scale:    new(big.Int).Set(scale),
		exponent: powerOfTen(scale),
	}, nil
}

// ParseScale parses a base-10 scale string such as "1000000000000000000"
func ParseScale(s string) (*big.Int, error) {
	scale, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid currency scale %q", s)
	}
	return scale, nil
}

// Scale returns a copy of the configured scale
func (c *Converter) Scale() *big.Int {
	return new(big.Int).Set(c.scale)
}

// ToDisplayUnits converts base units to whole display units, truncating toward
// zero. The dropped part is Remainder(base).
func (c *Converter) ToDisplayUnits(base *big.Int) *big.Int {
	if base == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(base, c.scale)
}

// ToBaseUnits converts whole display units to base units
func (c *Converter) ToBaseUnits(display *big.Int) *big.Int {
	if display == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(display, c.scale)
}

// Remainder returns the base units ToDisplayUnits truncates, with the sign of base
func (c *Converter) Remainder(base *big.Int) *big.Int {
	if base == nil {
		return new(big.Int)
	}
	return new(big.Int).Rem(base, c.scale)
}

// Split returns the whole display units and the truncated remainder
func (c *Converter) Split(base *big.Int) (display, remainder *big.Int) {
	if base == nil {
		return new(big.Int), new(big.Int)
	}
	return new(big.Int).QuoRem(base, c.scale, new(big.Int))
}

// FormatDisplay renders base units in display units without losing precision
func (c *Converter) FormatDisplay(base *big.Int) string {
	if base == nil {
		base = new(big.Int)
	}
	if c.exponent >= 0 {
		return decimal.NewFromBigInt(base, -c.exponent).String()
	}
	display, rem := c.Split(base)
	if rem.Sign() == 0 {
		return display.String()
	}
	return fmt.Sprintf("%s (+%s base units)", display.String(), new(big.Int).Abs(rem).String())
}

func powerOfTen(n *big.Int) int32 {
	v := new(big.Int).Set(n)
	var exp int32
	rem := new(big.Int)
	for v.Cmp(bigTen) >= 0 {
		v.QuoRem(v, bigTen, rem)
		if rem.Sign() != 0 {
			return -1
		}
		exp++
	}
	if v.Cmp(big.NewInt(1)) != 0 {
		return -1
	}
	return exp
}
