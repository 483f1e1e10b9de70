package txmanager

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var _ Backend = &mockBackend{}

// waitFunc decides the outcome of the Wait call of one submission.
type waitFunc func(ctx context.Context) (*types.Receipt, error)

// mockBackend records submissions. The wait behaviour of the n-th submission
// is waits[n]; submissions without an entry never get mined.
type mockBackend struct {
	mu sync.Mutex

	fees        FeeData
	feesErr     error
	gasPrice    *big.Int
	nonce       uint64
	gas         uint64
	estimateErr error
	sendErrs    map[int]error
	waits       []waitFunc
	replacement map[common.Hash]*types.Receipt

	sent      []TxRequest
	estimated int
	nonceReqs int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		nonce:       7,
		gas:         100_000,
		sendErrs:    map[int]error{},
		replacement: map[common.Hash]*types.Receipt{},
	}
}

func (m *mockBackend) FeeData(context.Context) (FeeData, error) {
	return m.fees, m.feesErr
}

func (m *mockBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if m.gasPrice == nil {
		return nil, errors.New("no gas price")
	}
	return m.gasPrice, nil
}

func (m *mockBackend) EstimateGas(context.Context, TxRequest) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimated++
	return m.gas, m.estimateErr
}

func (m *mockBackend) NonceAt(context.Context, common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonceReqs++
	return m.nonce, nil
}

func (m *mockBackend) SendTransaction(_ context.Context, req TxRequest) (SubmittedTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.sent)
	m.sent = append(m.sent, req)
	if err, ok := m.sendErrs[idx]; ok {
		return nil, err
	}
	var wait waitFunc
	if idx < len(m.waits) {
		wait = m.waits[idx]
	}
	return &mockTx{hash: hashOf(idx), wait: wait}, nil
}

func (m *mockBackend) WaitForTransaction(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.replacement[hash]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	return receipt, nil
}

func (m *mockBackend) sentRequests() []TxRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TxRequest(nil), m.sent...)
}

type mockTx struct {
	hash common.Hash
	wait waitFunc
}

func (t *mockTx) Hash() common.Hash { return t.hash }

func (t *mockTx) Wait(ctx context.Context) (*types.Receipt, error) {
	if t.wait == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return t.wait(ctx)
}

func hashOf(idx int) common.Hash {
	return common.BigToHash(big.NewInt(int64(idx + 1)))
}

func mined(status uint64) waitFunc {
	return func(context.Context) (*types.Receipt, error) {
		return &types.Receipt{Status: status, BlockNumber: big.NewInt(1)}, nil
	}
}

func failWith(err error) waitFunc {
	return func(context.Context) (*types.Receipt, error) {
		return nil, err
	}
}

// never returns a wait that blocks until the wait is abandoned.
func never() waitFunc {
	return nil
}
