package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

var _ txmanager.Backend = (*Node)(nil)

// ErrNoSigner is returned when a transaction is sent before
// SetAccountPrivateKey.
var ErrNoSigner = errors.New("no signer configured")

// EstimateGas estimates the gas limit of req. Gas price fields are left out
// so the estimation does not depend on the account balance.
func (n *Node) EstimateGas(ctx context.Context, req txmanager.TxRequest) (uint64, error) {
	return n.cli.EstimateGas(ctx, goethereum.CallMsg{
		From:  req.From,
		To:    req.To,
		Data:  req.Data,
		Value: req.Value,
	})
}

// NonceAt returns the confirmed nonce of account.
func (n *Node) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return n.cli.NonceAt(ctx, account, nil)
}

// SendTransaction signs req with the account key and broadcasts it. A nonce
// rejected as too low is reported as a NonceExpired provider error and an
// underpriced replacement as an Underpriced one. A transaction the node
// already knows is treated as sent.
func (n *Node) SendTransaction(ctx context.Context, req txmanager.TxRequest) (txmanager.SubmittedTx, error) {
	if n.signer == nil {
		return nil, ErrNoSigner
	}
	if req.Nonce == nil {
		return nil, fmt.Errorf("transaction without nonce")
	}
	if req.From != (common.Address{}) && req.From != n.signer.Address() {
		return nil, fmt.Errorf("sender %s does not match signer %s", req.From.Hex(), n.signer.Address().Hex())
	}
	tx, err := n.buildTx(req)
	if err != nil {
		return nil, err
	}
	signed, err := n.signer.SignTx(tx, new(big.Int).SetUint64(n.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	// remember where the search for a replacement starts before the
	// transaction can be mined
	startBlock, err := n.cli.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	if err := n.cli.SendTransaction(ctx, signed); err != nil {
		switch {
		case txmanager.IsAlreadyKnown(err):
			log.Debugw("transaction already known by the node", "hash", signed.Hash().Hex())
		case txmanager.IsNonceTooLow(err):
			return nil, txmanager.NewNonceExpiredError(err)
		case txmanager.IsUnderpriced(err):
			return nil, txmanager.NewUnderpricedError(err)
		default:
			return nil, fmt.Errorf("failed to send transaction: %w", err)
		}
	}
	return &pendingTx{
		node:       n,
		hash:       signed.Hash(),
		from:       n.signer.Address(),
		nonce:      signed.Nonce(),
		startBlock: startBlock,
	}, nil
}

// WaitForTransaction blocks until hash is mined and returns its receipt.
func (n *Node) WaitForTransaction(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	for {
		receipt, err := n.receipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		if err := sleepCtx(ctx, n.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (n *Node) buildTx(req txmanager.TxRequest) (*gethtypes.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	price := req.Price()
	if !price.Valid() {
		return nil, fmt.Errorf("invalid gas price: %s", price.String())
	}
	if price.IsEIP1559() {
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(n.ChainID),
			Nonce:     *req.Nonce,
			GasTipCap: price.MaxPriorityFeePerGas,
			GasFeeCap: price.MaxFeePerGas,
			Gas:       req.GasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		}), nil
	}
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    *req.Nonce,
		GasPrice: price.GasPrice,
		Gas:      req.GasLimit,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	}), nil
}

// receipt returns the receipt of hash, or nil while it is pending. Transient
// node errors are logged and reported as pending.
func (n *Node) receipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	receipt, err := n.cli.TransactionReceipt(ctx, hash)
	if err == nil {
		return receipt, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, goethereum.NotFound) {
		log.Debugw("failed to get transaction receipt", "hash", hash.Hex(), "error", err.Error())
	}
	return nil, nil
}
