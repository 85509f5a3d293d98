package zrc20

import (
	"math/big"
	"strings"

	"github.com/zatoshilabs/zord/internal/coreerr"
)

// ParseDecimals validates the optional "dec" field, defaulting to 0, and
// enforces the spec's [0,18] range.
func ParseDecimals(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return 0, coreerr.Parse("zrc20: invalid dec %q", s)
	}
	if !n.IsInt64() || n.Int64() > 18 {
		return 0, coreerr.Parse("zrc20: dec %q out of range [0,18]", s)
	}
	return int(n.Int64()), nil
}

// ParseBaseAmount parses a display-unit decimal string as a checked
// non-negative 128-bit integer and converts it to base units using dec
// decimal places: base = display * 10^dec. It fails with OverflowError if
// the result exceeds 2^128-1.
func ParseBaseAmount(display string, dec int) (*big.Int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return nil, coreerr.Parse("zrc20: empty amount")
	}
	n, ok := new(big.Int).SetString(display, 10)
	if !ok {
		return nil, coreerr.Parse("zrc20: invalid amount %q", display)
	}
	if n.Sign() < 0 {
		return nil, coreerr.Parse("zrc20: negative amount %q", display)
	}
	if n.CmpAbs(MaxUint128) > 0 {
		return nil, coreerr.Overflow("zrc20: amount %q exceeds 128-bit domain", display)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
	base := new(big.Int).Mul(n, scale)
	if base.CmpAbs(MaxUint128) > 0 {
		return nil, coreerr.Overflow("zrc20: base amount for %q at dec=%d exceeds 128-bit domain", display, dec)
	}
	return base, nil
}
