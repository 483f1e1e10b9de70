package sweep

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/cowdao-grants/cowfee/explorer"
	"github.com/cowdao-grants/cowfee/orderbook"
	"github.com/cowdao-grants/cowfee/types"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testModule     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testSettlement = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	testRelayer    = common.HexToAddress("0xC92E8bdf79f0507f65a392b0ab4667716BFE0110")
	testWNT        = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testReceiver   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testKeeper     = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func tokenAddr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(0x1000 + n))
}

func ether(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1e15))
}

type fakeChain struct {
	mu sync.Mutex

	info        web3.ModuleInfo
	validTo     uint32
	native      *big.Int
	head        uint64
	traded      []common.Address
	decimals    map[common.Address]uint8
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]*big.Int
	estimateErr error

	tradeRange [2]uint64
	estimated  []txmanager.TxRequest
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		info: web3.ModuleInfo{
			Address:            testModule,
			Receiver:           testReceiver,
			WrappedNativeToken: testWNT,
			Keeper:             testKeeper,
			Settlement:         testSettlement,
			VaultRelayer:       testRelayer,
			MinOut:             ether(5),
		},
		validTo:    1_700_000_000,
		native:     big.NewInt(0),
		decimals:   map[common.Address]uint8{testWNT: 18},
		balances:   map[common.Address]*big.Int{},
		allowances: map[common.Address]*big.Int{},
	}
}

func (f *fakeChain) ModuleInfo(context.Context, common.Address) (*web3.ModuleInfo, error) {
	info := f.info
	return &info, nil
}

func (f *fakeChain) NextValidTo(context.Context, common.Address) (uint32, error) {
	return f.validTo, nil
}

func (f *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) TradeTokens(_ context.Context, _ common.Address, from, to uint64) ([]common.Address, error) {
	f.tradeRange = [2]uint64{from, to}
	return f.traded, nil
}

func (f *fakeChain) TokenInfos(_ context.Context, tokens []common.Address) ([]web3.TokenInfo, error) {
	var infos []web3.TokenInfo
	for _, t := range tokens {
		if d, ok := f.decimals[t]; ok {
			symbol := "TKN"
			if t == testWNT {
				symbol = "WETH"
			}
			infos = append(infos, web3.TokenInfo{Address: t, Symbol: symbol, Decimals: d})
		}
	}
	return infos, nil
}

func (f *fakeChain) TokenSymbol(_ context.Context, token common.Address) (string, error) {
	if token != testWNT {
		return "", errors.New("execution reverted")
	}
	return "WETH", nil
}

func (f *fakeChain) TokenBalances(_ context.Context, tokens []common.Address, owner common.Address) ([]*big.Int, error) {
	if owner != testSettlement {
		return nil, errors.New("unexpected owner")
	}
	out := make([]*big.Int, len(tokens))
	for i, t := range tokens {
		out[i] = f.balances[t]
	}
	return out, nil
}

func (f *fakeChain) TokenAllowances(_ context.Context, tokens []common.Address, owner, spender common.Address) ([]*big.Int, error) {
	if owner != testSettlement || spender != testRelayer {
		return nil, errors.New("unexpected owner or spender")
	}
	out := make([]*big.Int, len(tokens))
	for i, t := range tokens {
		out[i] = f.allowances[t]
	}
	return out, nil
}

func (f *fakeChain) NonceAt(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, req txmanager.TxRequest) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated = append(f.estimated, req)
	return 250_000, f.estimateErr
}

// fakeOrderBook quotes buyAmounts[token] and rejects the orders of the
// tokens in rejected.
type fakeOrderBook struct {
	mu sync.Mutex

	buyAmounts map[common.Address]*big.Int
	rejected   map[common.Address]bool

	orders []orderbook.OrderCreation
}

func newFakeOrderBook() *fakeOrderBook {
	return &fakeOrderBook{
		buyAmounts: map[common.Address]*big.Int{},
		rejected:   map[common.Address]bool{},
	}
}

func (f *fakeOrderBook) Quote(_ context.Context, req orderbook.QuoteRequest) (*orderbook.QuoteResponse, error) {
	amount, ok := f.buyAmounts[req.SellToken]
	if !ok {
		return nil, &orderbook.APIError{StatusCode: 400, ErrorType: "NoLiquidity"}
	}
	return &orderbook.QuoteResponse{Quote: orderbook.Quote{
		SellToken:  req.SellToken,
		BuyToken:   req.BuyToken,
		SellAmount: req.SellAmountBeforeFee,
		BuyAmount:  types.NewBigInt(amount),
	}}, nil
}

func (f *fakeOrderBook) SendOrder(_ context.Context, order orderbook.OrderCreation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	if f.rejected[order.SellToken] {
		return "", &orderbook.APIError{StatusCode: 400, ErrorType: "InsufficientBalance"}
	}
	return "0x" + order.SellToken.Hex()[2:], nil
}

type fakeLister struct {
	holdings []explorer.TokenHolding
	err      error
}

func (f *fakeLister) TokenHoldings(context.Context, common.Address) ([]explorer.TokenHolding, error) {
	return f.holdings, f.err
}

// fakeExecutor records executions and answers results in order; missing
// results are a mined transaction.
type fakeExecutor struct {
	mu sync.Mutex

	results []error
	calls   []txmanager.TxRequest
	ops     []string
}

func (f *fakeExecutor) Execute(_ context.Context, base txmanager.TxRequest, operation string, _ ...txmanager.Option) (*common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.calls)
	f.calls = append(f.calls, base)
	f.ops = append(f.ops, operation)
	if idx < len(f.results) && f.results[idx] != nil {
		return nil, f.results[idx]
	}
	hash := common.BigToHash(big.NewInt(int64(idx + 1)))
	return &hash, nil
}
