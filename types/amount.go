package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// MaxBasisPoints is 100% expressed in basis points.
const MaxBasisPoints = 10_000

// ApplySlippage returns amount * (10000 - bps) / 10000, rounded down. Token
// amounts are bounded by uint256; larger values are rejected.
func ApplySlippage(amount *big.Int, bps uint64) (*big.Int, error) {
	if bps > MaxBasisPoints {
		return nil, fmt.Errorf("slippage of %d bps exceeds %d", bps, MaxBasisPoints)
	}
	a, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %s out of uint256 range", amount)
	}
	res, overflow := new(uint256.Int).MulDivOverflow(a,
		uint256.NewInt(MaxBasisPoints-bps), uint256.NewInt(MaxBasisPoints))
	if overflow {
		return nil, fmt.Errorf("slippage on %s overflows", amount)
	}
	return res.ToBig(), nil
}

// SumAmounts adds amounts, ignoring nil entries.
func SumAmounts(amounts ...*big.Int) *big.Int {
	sum := new(big.Int)
	for _, a := range amounts {
		if a != nil {
			sum.Add(sum, a)
		}
	}
	return sum
}

// FormatUnits renders amount as a decimal number with the given decimals,
// without trailing zeros in the fractional part.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), base, new(big.Int))
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	return sign + whole.String() + "." + fracStr
}
