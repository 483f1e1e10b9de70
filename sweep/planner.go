package sweep

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/orderbook"
	"github.com/cowdao-grants/cowfee/types"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// quoteConcurrency is the number of quote requests in flight.
const quoteConcurrency = 8

// TokenToSwap is a token selected for selling.
type TokenToSwap struct {
	web3.TokenInfo
	Balance   *big.Int
	Allowance *big.Int
	// BuyAmount is the quoted amount of wrapped native token after
	// slippage, the minimum accepted by the order.
	BuyAmount     *big.Int
	NeedsApproval bool
}

// Plan returns the tokens worth selling, by decreasing buy amount. A token is
// kept when the settlement holds some, the order book quotes it and the
// quote after slippage exceeds the module minOut.
func (s *Sweeper) Plan(ctx context.Context, info *web3.ModuleInfo) ([]TokenToSwap, error) {
	candidates, err := s.discoverTokens(ctx, info.Settlement)
	if err != nil {
		return nil, err
	}
	candidates = slices.DeleteFunc(candidates, func(t web3.TokenInfo) bool {
		return t.Address == info.WrappedNativeToken
	})
	if len(candidates) == 0 {
		return nil, nil
	}

	tokens, err := s.withBalances(ctx, info, candidates)
	if err != nil {
		return nil, err
	}
	log.Infow("tokens with balance", "count", len(tokens))

	quoted := s.quote(ctx, info, tokens)
	log.Infow("tokens after filtering by quotes", "count", len(quoted))

	toSwap := slices.DeleteFunc(quoted, func(t TokenToSwap) bool {
		return t.BuyAmount.Cmp(info.MinOut) <= 0
	})
	log.Infow("tokens after filtering by minOut", "count", len(toSwap), "minOut", info.MinOut.String())

	slices.SortStableFunc(toSwap, func(a, b TokenToSwap) int {
		return b.BuyAmount.Cmp(a.BuyAmount)
	})
	return toSwap, nil
}

// withBalances reads the settlement balances and vault relayer allowances of
// candidates, and drops the tokens without balance.
func (s *Sweeper) withBalances(ctx context.Context, info *web3.ModuleInfo, candidates []web3.TokenInfo) ([]TokenToSwap, error) {
	addresses := make([]common.Address, len(candidates))
	for i, c := range candidates {
		addresses[i] = c.Address
	}

	var balances, allowances []*big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balances, err = s.svc.Chain.TokenBalances(gctx, addresses, info.Settlement)
		if err != nil {
			return fmt.Errorf("failed to get balances: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		allowances, err = s.svc.Chain.TokenAllowances(gctx, addresses, info.Settlement, info.VaultRelayer)
		if err != nil {
			return fmt.Errorf("failed to get allowances: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tokens := make([]TokenToSwap, 0, len(candidates))
	for i, c := range candidates {
		if balances[i] == nil || balances[i].Sign() <= 0 {
			continue
		}
		allowance := allowances[i]
		if allowance == nil {
			allowance = new(big.Int)
		}
		tokens = append(tokens, TokenToSwap{
			TokenInfo:     c,
			Balance:       balances[i],
			Allowance:     allowance,
			NeedsApproval: allowance.Cmp(balances[i]) < 0,
		})
	}
	return tokens, nil
}

// quote asks a sell quote of the whole balance of every token and sets the
// buy amount after slippage. Tokens without quote are left out.
func (s *Sweeper) quote(ctx context.Context, info *web3.ModuleInfo, tokens []TokenToSwap) []TokenToSwap {
	ok := make([]bool, len(tokens))
	var g errgroup.Group
	g.SetLimit(quoteConcurrency)
	for i := range tokens {
		g.Go(func() error {
			t := &tokens[i]
			resp, err := s.svc.OrderBook.Quote(ctx, orderbook.QuoteRequest{
				SellToken:           t.Address,
				BuyToken:            info.WrappedNativeToken,
				From:                info.Settlement,
				Kind:                orderbook.KindSell,
				SellAmountBeforeFee: types.NewBigInt(t.Balance),
			})
			if err != nil {
				log.Debugw("no quote for token",
					"token", t.Address.Hex(),
					"symbol", t.Symbol,
					"error", err.Error())
				return nil
			}
			buyAmount, err := types.ApplySlippage(resp.Quote.BuyAmount.MathBigInt(), s.cfg.BuyAmountSlippageBps)
			if err != nil {
				log.Warnw("invalid quote", "token", t.Address.Hex(), "error", err.Error())
				return nil
			}
			t.BuyAmount = buyAmount
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	quoted := make([]TokenToSwap, 0, len(tokens))
	for i, t := range tokens {
		if ok[i] {
			quoted = append(quoted, t)
		}
	}
	return quoted
}
