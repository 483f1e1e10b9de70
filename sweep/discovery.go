package sweep

import (
	"context"
	"fmt"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/ethereum/go-ethereum/common"
)

// Strategy selects how the candidate tokens are discovered.
type Strategy string

const (
	// StrategyExplorer lists the settlement holdings through the network
	// block explorer API.
	StrategyExplorer Strategy = "explorer"
	// StrategyChain collects the tokens traded by the settlement in the last
	// blocks.
	StrategyChain Strategy = "chain"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case StrategyExplorer, StrategyChain:
		return s, nil
	}
	return "", fmt.Errorf("unknown token list strategy %q, available: [%s %s]", name, StrategyExplorer, StrategyChain)
}

// discoverTokens returns the candidate tokens held by settlement.
func (s *Sweeper) discoverTokens(ctx context.Context, settlement common.Address) ([]web3.TokenInfo, error) {
	switch s.cfg.TokenListStrategy {
	case StrategyChain:
		return s.tokensFromChain(ctx, settlement)
	default:
		return s.tokensFromExplorer(ctx, settlement)
	}
}

func (s *Sweeper) tokensFromChain(ctx context.Context, settlement common.Address) ([]web3.TokenInfo, error) {
	head, err := s.svc.Chain.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	var from uint64
	if head > s.cfg.LookbackRange {
		from = head - s.cfg.LookbackRange
	}
	log.Infow("querying settlement trades", "from", from, "to", head)
	tokens, err := s.svc.Chain.TradeTokens(ctx, settlement, from, head)
	if err != nil {
		return nil, err
	}
	log.Infow("found traded tokens", "count", len(tokens))
	infos, err := s.svc.Chain.TokenInfos(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to get token decimals: %w", err)
	}
	return infos, nil
}

func (s *Sweeper) tokensFromExplorer(ctx context.Context, settlement common.Address) ([]web3.TokenInfo, error) {
	holdings, err := s.svc.Tokens.TokenHoldings(ctx, settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement tokens: %w", err)
	}
	infos := make([]web3.TokenInfo, 0, len(holdings))
	for _, h := range holdings {
		infos = append(infos, web3.TokenInfo{Address: h.Address, Symbol: h.Symbol, Decimals: h.Decimals})
	}
	log.Infow("found held tokens", "count", len(infos))
	return infos, nil
}
