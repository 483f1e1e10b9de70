package types

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestApplySlippage(t *testing.T) {
	c := qt.New(t)

	res, err := ApplySlippage(big.NewInt(1_000_000), 100)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Int64(), qt.Equals, int64(990_000))

	// rounds down
	res, err = ApplySlippage(big.NewInt(999), 100)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Int64(), qt.Equals, int64(989))

	res, err = ApplySlippage(big.NewInt(12345), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Int64(), qt.Equals, int64(12345))

	res, err = ApplySlippage(big.NewInt(12345), MaxBasisPoints)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Sign(), qt.Equals, 0)

	// no intermediate overflow close to the uint256 bound
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	res, err = ApplySlippage(maxUint, 5000)
	c.Assert(err, qt.IsNil)
	c.Assert(res.String(), qt.Equals, new(big.Int).Div(maxUint, big.NewInt(2)).String())

	_, err = ApplySlippage(big.NewInt(1), 10_001)
	c.Assert(err, qt.ErrorMatches, "slippage of 10001 bps exceeds 10000")

	_, err = ApplySlippage(new(big.Int).Lsh(big.NewInt(1), 256), 1)
	c.Assert(err, qt.ErrorMatches, "amount .* out of uint256 range")
}

func TestSumAmounts(t *testing.T) {
	c := qt.New(t)
	c.Assert(SumAmounts().Sign(), qt.Equals, 0)
	c.Assert(SumAmounts(big.NewInt(1), nil, big.NewInt(41)).Int64(), qt.Equals, int64(42))
}

func TestFormatUnits(t *testing.T) {
	c := qt.New(t)
	c.Assert(FormatUnits(big.NewInt(1_500_000_000_000_000_000), 18), qt.Equals, "1.5")
	c.Assert(FormatUnits(big.NewInt(1_000_000), 6), qt.Equals, "1")
	c.Assert(FormatUnits(big.NewInt(1), 6), qt.Equals, "0.000001")
	c.Assert(FormatUnits(big.NewInt(-2_500), 3), qt.Equals, "-2.5")
	c.Assert(FormatUnits(big.NewInt(7), 0), qt.Equals, "7")
	c.Assert(FormatUnits(nil, 18), qt.Equals, "0")
}
