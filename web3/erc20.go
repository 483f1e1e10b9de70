package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is the metadata of an ERC-20 token.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// TokenBalances returns the balanceOf(owner) of every token. Entries are nil
// for tokens whose call failed.
func (n *Node) TokenBalances(ctx context.Context, tokens []common.Address, owner common.Address) ([]*big.Int, error) {
	balances, _, err := aggregateEach(ctx, n, tokens, "balanceOf", decodeUint256, owner)
	return balances, err
}

// TokenAllowances returns the allowance(owner, spender) of every token.
// Entries are nil for tokens whose call failed.
func (n *Node) TokenAllowances(ctx context.Context, tokens []common.Address, owner, spender common.Address) ([]*big.Int, error) {
	allowances, _, err := aggregateEach(ctx, n, tokens, "allowance", decodeUint256, owner, spender)
	return allowances, err
}

// TokenInfos returns the decimals and symbol of every token. Tokens that do
// not answer decimals() are left out; a missing symbol is left empty.
// Results are cached for the lifetime of the node.
func (n *Node) TokenInfos(ctx context.Context, tokens []common.Address) ([]TokenInfo, error) {
	var missing []common.Address
	for _, token := range tokens {
		if _, ok := n.tokens.Get(token); !ok {
			missing = append(missing, token)
		}
	}
	if len(missing) > 0 {
		decimals, ok, err := aggregateEach(ctx, n, missing, "decimals", decodeUint8)
		if err != nil {
			return nil, err
		}
		symbols, _, err := aggregateEach(ctx, n, missing, "symbol", decodeString)
		if err != nil {
			return nil, err
		}
		for i, token := range missing {
			if !ok[i] {
				continue
			}
			n.tokens.Add(token, TokenInfo{Address: token, Symbol: symbols[i], Decimals: decimals[i]})
		}
	}

	infos := make([]TokenInfo, 0, len(tokens))
	for _, token := range tokens {
		if info, ok := n.tokens.Get(token); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// TokenSymbol returns the symbol of token.
func (n *Node) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	if info, ok := n.tokens.Get(token); ok && info.Symbol != "" {
		return info.Symbol, nil
	}
	res, err := n.callView(ctx, token, erc20ABI, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := res[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", res[0])
	}
	return symbol, nil
}

// aggregateEach calls the same ERC-20 method on every token through
// Multicall3 and decodes each successful answer. ok[i] reports whether the
// i-th value was decoded.
func aggregateEach[T any](ctx context.Context, n *Node, tokens []common.Address, method string,
	decode func([]any) (T, bool), args ...any,
) (values []T, ok []bool, err error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	calls := make([]Call, len(tokens))
	for i, token := range tokens {
		calls[i] = Call{Target: token, CallData: data}
	}
	results, err := n.TryAggregate(ctx, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", method, err)
	}
	values = make([]T, len(tokens))
	ok = make([]bool, len(tokens))
	for i, res := range results {
		if !res.Success || len(res.ReturnData) == 0 {
			continue
		}
		decoded, err := erc20ABI.Unpack(method, res.ReturnData)
		if err != nil || len(decoded) == 0 {
			continue
		}
		values[i], ok[i] = decode(decoded)
	}
	return values, ok, nil
}

func decodeUint256(values []any) (*big.Int, bool) {
	v, ok := values[0].(*big.Int)
	return v, ok
}

func decodeUint8(values []any) (uint8, bool) {
	v, ok := values[0].(uint8)
	return v, ok
}

func decodeString(values []any) (string, bool) {
	v, ok := values[0].(string)
	return v, ok
}

