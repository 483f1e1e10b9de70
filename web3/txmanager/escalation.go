package txmanager

import "math/big"

const (
	// escalationStepPercent is the price increase applied after each timeout.
	escalationStepPercent = 10
	// DefaultMaxGasIncreasePercentage bounds the escalation relative to the
	// seed price.
	DefaultMaxGasIncreasePercentage = 100
)

// Ceiling returns the highest price escalation can reach from seed:
// seed * (100 + maxIncreasePct) / 100, computed on the max fee for EIP-1559
// prices and on the gas price for legacy ones.
func Ceiling(seed GasPrice, maxIncreasePct int64) *big.Int {
	base := seed.GasPrice
	if seed.IsEIP1559() {
		base = seed.MaxFeePerGas
	}
	return mulFrac(base, 100+maxIncreasePct, 100)
}

// NextGasPrice raises current by one step, clamped to ceiling, and reports
// whether the ceiling has been reached. The priority fee of EIP-1559 prices
// grows by the same step and is not clamped. Every step raises a positive
// value by at least one wei.
func NextGasPrice(current GasPrice, ceiling *big.Int) (GasPrice, bool) {
	if current.IsEIP1559() {
		maxFee := minBig(step(current.MaxFeePerGas), ceiling)
		tip := step(current.MaxPriorityFeePerGas)
		return EIP1559Price(maxFee, tip), maxFee.Cmp(ceiling) == 0
	}
	raised := step(current.GasPrice)
	atCeiling := raised.Cmp(ceiling) >= 0
	return LegacyPrice(minBig(raised, ceiling)), atCeiling
}

// step applies the escalation percentage to x. Below ten wei the floor of the
// percentage is x itself, so x+1 is used instead.
func step(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	raised := mulFrac(x, 100+escalationStepPercent, 100)
	if x.Sign() > 0 && raised.Cmp(x) <= 0 {
		raised.Add(x, big.NewInt(1))
	}
	return raised
}
