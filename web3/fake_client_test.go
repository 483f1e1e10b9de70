package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

var _ Client = &fakeClient{}

type methodFunc func(args []any) ([]any, error)

type fakeContract struct {
	abi     abi.ABI
	methods map[string]methodFunc
}

// fakeClient answers contract calls from in-memory handlers, routing
// Multicall3 requests to the handlers of each target.
type fakeClient struct {
	mu sync.Mutex

	contracts map[common.Address]*fakeContract
	logs      []gethtypes.Log
	header    *gethtypes.Header
	tip       *big.Int
	gasPrice  *big.Int
	nonce     uint64
	head      uint64
	blocks    map[uint64]*gethtypes.Block

	calls       map[string]int
	multicalls  int
	logsQueries []goethereum.FilterQuery
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		contracts: map[common.Address]*fakeContract{},
		blocks:    map[uint64]*gethtypes.Block{},
		calls:     map[string]int{},
	}
}

func (f *fakeClient) handle(addr common.Address, def abi.ABI, method string, fn methodFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[addr]
	if !ok {
		c = &fakeContract{abi: def, methods: map[string]methodFunc{}}
		f.contracts[addr] = c
	}
	c.methods[method] = fn
}

func (f *fakeClient) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeClient) dispatch(to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	c, ok := f.contracts[to]
	f.mu.Unlock()
	if !ok || len(data) < 4 {
		return nil, errors.New("execution reverted")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	fn, ok := c.methods[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[method.Name]++
	f.mu.Unlock()
	out, err := fn(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeClient) CallContract(_ context.Context, msg goethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if *msg.To != Multicall3Address {
		return f.dispatch(*msg.To, msg.Data)
	}
	f.mu.Lock()
	f.multicalls++
	f.mu.Unlock()
	method := multicall3ABI.Methods["tryAggregate"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[1], new([]Call)).(*[]Call)
	results := make([]CallResult, len(calls))
	for i, call := range calls {
		out, err := f.dispatch(call.Target, call.CallData)
		results[i] = CallResult{Success: err == nil, ReturnData: out}
		if results[i].ReturnData == nil {
			results[i].ReturnData = []byte{}
		}
	}
	return method.Outputs.Pack(results)
}

func (f *fakeClient) EstimateGas(context.Context, goethereum.CallMsg) (uint64, error) {
	return 21_000, nil
}

func (f *fakeClient) FilterLogs(_ context.Context, q goethereum.FilterQuery) ([]gethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logsQueries = append(f.logsQueries, q)
	var logs []gethtypes.Log
	for _, l := range f.logs {
		if l.BlockNumber < q.FromBlock.Uint64() || l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (f *fakeClient) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	if f.header == nil {
		return nil, errors.New("no header")
	}
	return f.header, nil
}

func (f *fakeClient) BlockByNumber(_ context.Context, number *big.Int) (*gethtypes.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[number.Uint64()]; ok {
		return b, nil
	}
	return gethtypes.NewBlockWithHeader(&gethtypes.Header{Number: number}), nil
}

func (f *fakeClient) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return nil, errors.New("method not supported")
	}
	return f.gasPrice, nil
}

func (f *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if f.tip == nil {
		return nil, errors.New("method not supported")
	}
	return f.tip, nil
}

func (f *fakeClient) SendTransaction(context.Context, *gethtypes.Transaction) error {
	return nil
}

func (f *fakeClient) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return nil, goethereum.NotFound
}

func (f *fakeClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

// returns is a methodFunc answering fixed values.
func returns(values ...any) methodFunc {
	return func([]any) ([]any, error) { return values, nil }
}

func reverts(reason string) methodFunc {
	return func([]any) ([]any, error) { return nil, fmt.Errorf("execution reverted: %s", reason) }
}
