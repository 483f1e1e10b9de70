package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
)

// baseFeeMultiplier leaves room for the base fee to grow for a few blocks
// before the max fee stops covering it.
const baseFeeMultiplier = 2

// FeeData returns the current fee suggestion of the node. On London chains
// the max fee is 2*baseFee + tip; otherwise only the legacy gas price is
// filled.
func (n *Node) FeeData(ctx context.Context) (txmanager.FeeData, error) {
	var fees txmanager.FeeData

	h, err := n.cli.HeaderByNumber(ctx, nil)
	if err != nil {
		return fees, fmt.Errorf("header by number: %w", err)
	}
	if h.BaseFee == nil {
		gasPrice, err := n.cli.SuggestGasPrice(ctx)
		if err != nil {
			return fees, fmt.Errorf("suggest gas price: %w", err)
		}
		fees.GasPrice = gasPrice
		return fees, nil
	}

	tip, err := n.cli.SuggestGasTipCap(ctx)
	if err != nil {
		return fees, fmt.Errorf("suggest tip: %w", err)
	}
	feeCap := new(big.Int).Mul(h.BaseFee, big.NewInt(baseFeeMultiplier))
	feeCap.Add(feeCap, tip)
	fees.MaxFeePerGas = feeCap
	fees.MaxPriorityFeePerGas = tip

	// some nodes answer eth_gasPrice next to the 1559 fields; it is only
	// informative here
	if gasPrice, err := n.cli.SuggestGasPrice(ctx); err == nil {
		fees.GasPrice = gasPrice
	} else {
		log.Debugw("eth_gasPrice unavailable", "error", err.Error())
	}
	return fees, nil
}

// SuggestGasPrice returns the node legacy gas price.
func (n *Node) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return n.cli.SuggestGasPrice(ctx)
}
