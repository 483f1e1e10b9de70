package web3

import (
	"context"
	"fmt"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// maxLogsRange is the widest block range requested in one eth_getLogs call.
const maxLogsRange = 5000

// TradeTokens returns the distinct sell and buy tokens of the settlement
// Trade events in [fromBlock, toBlock], in order of first appearance. The
// native token placeholder is left out.
func (n *Node) TradeTokens(ctx context.Context, settlement common.Address, fromBlock, toBlock uint64) ([]common.Address, error) {
	tradeEvent := settlementABI.Events["Trade"]
	seen := make(map[common.Address]struct{})
	var tokens []common.Address
	add := func(token common.Address) {
		if token == NativeTokenAddress {
			return
		}
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	for start := fromBlock; start <= toBlock; start += maxLogsRange {
		end := min(start+maxLogsRange-1, toBlock)
		logs, err := n.cli.FilterLogs(ctx, goethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{settlement},
			Topics:    [][]common.Hash{{tradeEvent.ID}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to filter trade logs %d-%d: %w", start, end, err)
		}
		for _, l := range logs {
			values, err := tradeEvent.Inputs.NonIndexed().Unpack(l.Data)
			if err != nil || len(values) < 2 {
				continue
			}
			if sell, ok := values[0].(common.Address); ok {
				add(sell)
			}
			if buy, ok := values[1].(common.Address); ok {
				add(buy)
			}
		}
	}
	return tokens, nil
}
