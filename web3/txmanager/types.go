package txmanager

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GasPrice holds the pricing of one transaction. Exactly one variant is
// populated: MaxFeePerGas and MaxPriorityFeePerGas for EIP-1559
// transactions, or GasPrice for legacy ones.
type GasPrice struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// EIP1559Price builds a dynamic fee gas price.
func EIP1559Price(maxFee, maxPriorityFee *big.Int) GasPrice {
	return GasPrice{MaxFeePerGas: copyBig(maxFee), MaxPriorityFeePerGas: copyBig(maxPriorityFee)}
}

// LegacyPrice builds a legacy gas price.
func LegacyPrice(gasPrice *big.Int) GasPrice {
	return GasPrice{GasPrice: copyBig(gasPrice)}
}

// IsEIP1559 reports whether the dynamic fee variant is populated.
func (g GasPrice) IsEIP1559() bool {
	return g.MaxFeePerGas != nil && g.MaxPriorityFeePerGas != nil
}

// Valid reports whether exactly one variant is fully populated.
func (g GasPrice) Valid() bool {
	if g.IsEIP1559() {
		return g.GasPrice == nil
	}
	return g.GasPrice != nil && g.MaxFeePerGas == nil && g.MaxPriorityFeePerGas == nil
}

func (g GasPrice) String() string {
	if g.IsEIP1559() {
		return fmt.Sprintf("maxFee=%s maxPriorityFee=%s", g.MaxFeePerGas, g.MaxPriorityFeePerGas)
	}
	return fmt.Sprintf("gasPrice=%s", g.GasPrice)
}

// FeeData is the node's current fee suggestion. Any field may be nil when
// the node does not provide it.
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// TxRequest describes a transaction to submit. From, To, Data, Value, Nonce
// and GasLimit stay the same across every replacement of the request; only
// the gas price fields change.
type TxRequest struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Value    *big.Int
	Nonce    *uint64
	GasLimit uint64

	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// WithGasPrice returns a copy of the request priced with p. The fields of the
// variant not used by p are cleared.
func (r TxRequest) WithGasPrice(p GasPrice) TxRequest {
	if p.IsEIP1559() {
		r.MaxFeePerGas = copyBig(p.MaxFeePerGas)
		r.MaxPriorityFeePerGas = copyBig(p.MaxPriorityFeePerGas)
		r.GasPrice = nil
		return r
	}
	r.GasPrice = copyBig(p.GasPrice)
	r.MaxFeePerGas = nil
	r.MaxPriorityFeePerGas = nil
	return r
}

// Price returns the gas price the request carries.
func (r TxRequest) Price() GasPrice {
	return GasPrice{
		MaxFeePerGas:         r.MaxFeePerGas,
		MaxPriorityFeePerGas: r.MaxPriorityFeePerGas,
		GasPrice:             r.GasPrice,
	}
}

// SubmittedTx is a transaction accepted by the node.
type SubmittedTx interface {
	Hash() common.Hash
	// Wait blocks until the transaction is mined and returns its receipt.
	// A transaction whose nonce was consumed by another one returns a
	// *ProviderError describing the replacement.
	Wait(ctx context.Context) (*types.Receipt, error)
}

// FeeSource provides the node's fee suggestions.
type FeeSource interface {
	FeeData(ctx context.Context) (FeeData, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Backend is the node access used by the Executor. Implementations sign the
// requests with their own key.
type Backend interface {
	FeeSource
	EstimateGas(ctx context.Context, req TxRequest) (uint64, error)
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, req TxRequest) (SubmittedTx, error)
	WaitForTransaction(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}
