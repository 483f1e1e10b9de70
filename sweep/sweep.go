// Package sweep converts the fee tokens held by the settlement into the
// wrapped native token: it plans which tokens are worth selling, posts
// pre-signed orders for them and calls the fee module drip.
package sweep

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/appdata"
	"github.com/cowdao-grants/cowfee/config"
	"github.com/cowdao-grants/cowfee/explorer"
	"github.com/cowdao-grants/cowfee/orderbook"
	"github.com/cowdao-grants/cowfee/prompt"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultMaxOrders      = 250
	DefaultSlippageBps    = 100
	DefaultLookbackRange  = 1000
	DefaultStrategy       = StrategyExplorer
	wrappedNativeDecimals = 18
)

// Chain is the node access used by a sweep. *web3.Node implements it.
type Chain interface {
	ModuleInfo(ctx context.Context, module common.Address) (*web3.ModuleInfo, error)
	NextValidTo(ctx context.Context, module common.Address) (uint32, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TradeTokens(ctx context.Context, settlement common.Address, fromBlock, toBlock uint64) ([]common.Address, error)
	TokenInfos(ctx context.Context, tokens []common.Address) ([]web3.TokenInfo, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenBalances(ctx context.Context, tokens []common.Address, owner common.Address) ([]*big.Int, error)
	TokenAllowances(ctx context.Context, tokens []common.Address, owner, spender common.Address) ([]*big.Int, error)
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, req txmanager.TxRequest) (uint64, error)
}

// OrderBook quotes and accepts orders. *orderbook.Client implements it.
type OrderBook interface {
	Quote(ctx context.Context, req orderbook.QuoteRequest) (*orderbook.QuoteResponse, error)
	SendOrder(ctx context.Context, order orderbook.OrderCreation) (string, error)
}

// TokenLister lists the tokens held by an address. *explorer.Client
// implements it.
type TokenLister interface {
	TokenHoldings(ctx context.Context, address common.Address) ([]explorer.TokenHolding, error)
}

// Executor sends a transaction until it is mined. *txmanager.Executor
// implements it.
type Executor interface {
	Execute(ctx context.Context, base txmanager.TxRequest, operation string, opts ...txmanager.Option) (*common.Hash, error)
}

// Config holds the settings of a sweep. ExecutorOptions tune the gas
// escalation of the drip transaction.
type Config struct {
	Module               common.Address
	Network              config.Network
	MaxOrders            int
	BuyAmountSlippageBps uint64
	TokenListStrategy    Strategy
	LookbackRange        uint64
	ConfirmDrip          bool
	ExecutorOptions      []txmanager.Option
}

// Services are the collaborators of a sweep. Tokens is only required by the
// explorer strategy; a nil Confirmer asks on the terminal.
type Services struct {
	Chain     Chain
	OrderBook OrderBook
	Tokens    TokenLister
	Executor  Executor
	Confirmer prompt.Confirmer
}

// Sweeper runs fee sweeps for one fee module.
type Sweeper struct {
	cfg     Config
	svc     Services
	keeper  common.Address
	appData *appdata.Info
}

// New creates a Sweeper signing as keeper.
func New(cfg Config, svc Services, keeper common.Address) (*Sweeper, error) {
	if svc.Chain == nil || svc.OrderBook == nil || svc.Executor == nil {
		return nil, fmt.Errorf("chain, order book and executor are required")
	}
	if cfg.MaxOrders <= 0 {
		cfg.MaxOrders = DefaultMaxOrders
	}
	if cfg.BuyAmountSlippageBps >= 10_000 {
		return nil, fmt.Errorf("invalid buy amount slippage: %d bps", cfg.BuyAmountSlippageBps)
	}
	if cfg.TokenListStrategy == "" {
		cfg.TokenListStrategy = DefaultStrategy
	}
	if _, err := ParseStrategy(string(cfg.TokenListStrategy)); err != nil {
		return nil, err
	}
	if cfg.TokenListStrategy == StrategyExplorer && svc.Tokens == nil {
		return nil, fmt.Errorf("the %s strategy needs a token lister", StrategyExplorer)
	}
	if svc.Confirmer == nil {
		svc.Confirmer = prompt.NewTerminal()
	}
	info, err := appdata.Default().Encode()
	if err != nil {
		return nil, err
	}
	return &Sweeper{cfg: cfg, svc: svc, keeper: keeper, appData: info}, nil
}

// AppData returns the app data attached to the orders.
func (s *Sweeper) AppData() *appdata.Info {
	return s.appData
}

// EthToWrap returns the native balance of the settlement when it reaches the
// module minOut, zero otherwise.
func (s *Sweeper) EthToWrap(ctx context.Context, info *web3.ModuleInfo) (*big.Int, error) {
	balance, err := s.svc.Chain.BalanceAt(ctx, info.Settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement balance: %w", err)
	}
	if balance.Cmp(info.MinOut) >= 0 {
		return balance, nil
	}
	return new(big.Int), nil
}
