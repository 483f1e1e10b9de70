package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	// defaultRetries is the number of attempts on one endpoint before
	// switching to the next one.
	defaultRetries = 2
	// defaultRetrySleep is the pause between attempts on the same endpoint.
	defaultRetrySleep = 200 * time.Millisecond
)

var (
	defaultTimeout    = 5 * time.Second
	filterLogsTimeout = 20 * time.Second
)

// Client balances the calls of one chain among the endpoints of a Web3Pool,
// retrying on each endpoint and failing over to the next one.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chain served by the client.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// EthClient returns the ethclient of the next endpoint.
func (c *Client) EthClient() (*ethclient.Client, error) {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	return endpoint.client, nil
}

// call runs fn against the pool with a per-attempt timeout.
func call[T any](c *Client, ctx context.Context, timeout time.Duration,
	fn func(ctx context.Context, cli *ethclient.Client) (T, error),
) (T, error) {
	var zero T
	res, err := c.retryAndCheckErr(func(endpoint *Web3Endpoint) (any, error) {
		internalCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(internalCtx, endpoint.client)
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// CodeAt returns the contract code of account.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) ([]byte, error) {
		return cli.CodeAt(ctx, account, blockNumber)
	})
}

// CallContract executes a read-only call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) ([]byte, error) {
		return cli.CallContract(ctx, msg, blockNumber)
	})
}

// EstimateGas returns the gas needed by msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (uint64, error) {
		return cli.EstimateGas(ctx, msg)
	})
}

// FilterLogs returns the logs matching query.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return call(c, ctx, filterLogsTimeout, func(ctx context.Context, cli *ethclient.Client) ([]gethtypes.Log, error) {
		return cli.FilterLogs(ctx, query)
	})
}

// HeaderByNumber returns a block header, the latest one if number is nil.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (*gethtypes.Header, error) {
		return cli.HeaderByNumber(ctx, number)
	})
}

// BlockByNumber returns a full block, the latest one if number is nil.
func (c *Client) BlockByNumber(ctx context.Context, number *big.Int) (*gethtypes.Block, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (*gethtypes.Block, error) {
		return cli.BlockByNumber(ctx, number)
	})
}

// NonceAt returns the confirmed nonce of account.
func (c *Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (uint64, error) {
		return cli.NonceAt(ctx, account, blockNumber)
	})
}

// PendingNonceAt returns the nonce of account including pooled transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (uint64, error) {
		return cli.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice returns the node legacy gas price (eth_gasPrice).
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap returns the node priority fee (eth_maxPriorityFeePerGas).
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasTipCap(ctx)
	})
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	_, err := call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (struct{}, error) {
		return struct{}{}, cli.SendTransaction(ctx, tx)
	})
	return err
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while it is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	// a missing receipt is the normal answer for pending transactions and
	// must not disable endpoints
	cli, err := c.EthClient()
	if err != nil {
		return nil, err
	}
	internalCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return cli.TransactionReceipt(internalCtx, hash)
}

// BalanceAt returns the native balance of account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (*big.Int, error) {
		return cli.BalanceAt(ctx, account, blockNumber)
	})
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(c, ctx, defaultTimeout, func(ctx context.Context, cli *ethclient.Client) (uint64, error) {
		return cli.BlockNumber(ctx)
	})
}

// retryAndCheckErr calls fn on the current endpoint up to defaultRetries
// times, then disables it and moves to the next one, until fn succeeds or
// every endpoint has failed. Permanent errors are returned at once.
func (c *Client) retryAndCheckErr(fn func(*Web3Endpoint) (any, error)) (any, error) {
	totalEndpoints := c.w3p.NumberOfEndpoints(c.chainID, false)
	if totalEndpoints == 0 {
		return nil, fmt.Errorf("no endpoints available for chainID %d", c.chainID)
	}

	tried := make(map[string]bool, totalEndpoints)
	var lastErr error
	for attempt := 0; attempt < totalEndpoints; attempt++ {
		endpoint, err := c.w3p.Endpoint(c.chainID)
		if err != nil {
			return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
		}
		if tried[endpoint.URI] {
			return nil, fmt.Errorf("endpoint rotation failed for chainID %d: %w", c.chainID, lastErr)
		}
		tried[endpoint.URI] = true

		for retry := range defaultRetries {
			res, err := fn(endpoint)
			if err == nil {
				if attempt > 0 {
					log.Debugw("RPC call succeeded after endpoint switch",
						"chainID", c.chainID,
						"uri", endpoint.URI,
						"endpointAttempts", attempt+1)
				}
				return res, nil
			}
			lastErr = err
			if IsPermanentError(err) {
				return nil, err
			}
			if retry < defaultRetries-1 {
				time.Sleep(defaultRetrySleep)
			}
		}

		log.Warnw("endpoint failed after retries, switching to next",
			"chainID", c.chainID,
			"uri", endpoint.URI,
			"error", ParseError(lastErr).Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
	}
	return nil, fmt.Errorf("all endpoints exhausted for chainID %d: %w", c.chainID, lastErr)
}
