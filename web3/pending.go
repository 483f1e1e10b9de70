package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// maxReplacementScanBlocks bounds the number of blocks inspected when
// looking for the transaction that consumed a nonce.
const maxReplacementScanBlocks = 256

// pendingTx is a transaction broadcast by Node.
type pendingTx struct {
	node       *Node
	hash       common.Hash
	from       common.Address
	nonce      uint64
	startBlock uint64
}

func (t *pendingTx) Hash() common.Hash { return t.hash }

// Wait polls the receipt of the transaction until it is mined. When the
// account nonce moves past the transaction nonce without a receipt, the
// blocks mined since submission are searched for the transaction that took
// its place: a match is reported as a replacement, no match as an expired
// nonce.
func (t *pendingTx) Wait(ctx context.Context) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(t.node.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := t.node.receipt(ctx, t.hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		consumed, err := t.nonceConsumed(ctx)
		if err != nil {
			log.Debugw("failed to check account nonce", "hash", t.hash.Hex(), "error", err.Error())
		}
		if consumed {
			// the transaction may have been mined right after the receipt poll
			if receipt, err := t.node.receipt(ctx, t.hash); err != nil || receipt != nil {
				return receipt, err
			}
			hash, found, err := t.node.findNonceConsumer(ctx, t.from, t.nonce, t.startBlock)
			if err != nil {
				return nil, txmanager.NewNonceExpiredError(err)
			}
			if !found {
				return nil, txmanager.NewNonceExpiredError(nil)
			}
			if hash != t.hash {
				return nil, txmanager.NewReplacedError(hash)
			}
			// our own transaction: its receipt shows up on the next poll
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *pendingTx) nonceConsumed(ctx context.Context) (bool, error) {
	nonce, err := t.node.NonceAt(ctx, t.from)
	if err != nil {
		return false, err
	}
	return nonce > t.nonce, nil
}

// findNonceConsumer scans the blocks from startBlock to the head for a
// transaction sent by from with the given nonce.
func (n *Node) findNonceConsumer(ctx context.Context, from common.Address, nonce, startBlock uint64) (common.Hash, bool, error) {
	head, err := n.cli.BlockNumber(ctx)
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("failed to get block number: %w", err)
	}
	if head >= maxReplacementScanBlocks && startBlock < head-maxReplacementScanBlocks {
		startBlock = head - maxReplacementScanBlocks
	}
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(n.ChainID))
	for number := startBlock; number <= head; number++ {
		block, err := n.cli.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return common.Hash{}, false, fmt.Errorf("failed to get block %d: %w", number, err)
		}
		for _, tx := range block.Transactions() {
			if tx.Nonce() != nonce {
				continue
			}
			sender, err := gethtypes.Sender(signer, tx)
			if err != nil {
				continue
			}
			if sender == from {
				return tx.Hash(), true, nil
			}
		}
	}
	return common.Hash{}, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
