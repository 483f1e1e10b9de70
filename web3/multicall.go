package web3

import (
	"context"
	"fmt"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// multicallConcurrency is the number of Multicall3 requests in flight.
const multicallConcurrency = 4

// Call is one call aggregated in a Multicall3 request.
type Call struct {
	Target   common.Address
	CallData []byte
}

// CallResult is the outcome of one aggregated call.
type CallResult struct {
	Success    bool
	ReturnData []byte
}

// TryAggregate runs calls through Multicall3 tryAggregate without requiring
// success, split in chunks of the configured multicall size. Results are
// returned in the order of calls; a failed call only marks its own result.
func (n *Node) TryAggregate(ctx context.Context, calls []Call) ([]CallResult, error) {
	results := make([]CallResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(multicallConcurrency)
	for start := 0; start < len(calls); start += n.multicallSize {
		end := min(start+n.multicallSize, len(calls))
		g.Go(func() error {
			chunk, err := n.tryAggregate(gctx, calls[start:end])
			if err != nil {
				return fmt.Errorf("multicall chunk %d-%d: %w", start, end, err)
			}
			copy(results[start:end], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (n *Node) tryAggregate(ctx context.Context, calls []Call) ([]CallResult, error) {
	data, err := multicall3ABI.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack tryAggregate: %w", err)
	}
	out, err := n.cli.CallContract(ctx, goethereum.CallMsg{To: &Multicall3Address, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	res, err := multicall3ABI.Unpack("tryAggregate", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack tryAggregate: %w", err)
	}
	results := *abi.ConvertType(res[0], new([]CallResult)).(*[]CallResult)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}

// callView calls a view method of contract and returns its decoded outputs.
func (n *Node) callView(ctx context.Context, contract common.Address, def abi.ABI, method string, args ...any) ([]any, error) {
	data, err := def.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := n.cli.CallContract(ctx, goethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	res, err := def.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return res, nil
}
