package txmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// Default configuration values
	defaultWaitTimeForMaxGasPrice          = time.Hour
	defaultTimeoutBeforeIncreasingGasPrice = 5 * time.Minute
)

// Config holds the escalation settings of one execution.
type Config struct {
	// MaxGasIncreasePercentage bounds the price relative to the seed price.
	MaxGasIncreasePercentage int64
	// WaitTimeForMaxGasPrice is how long the last submission is waited once
	// the price ceiling is reached.
	WaitTimeForMaxGasPrice time.Duration
	// TimeoutBeforeIncreasingGasPrice is how long each submission is waited
	// before escalating.
	TimeoutBeforeIncreasingGasPrice time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		MaxGasIncreasePercentage:        DefaultMaxGasIncreasePercentage,
		WaitTimeForMaxGasPrice:          defaultWaitTimeForMaxGasPrice,
		TimeoutBeforeIncreasingGasPrice: defaultTimeoutBeforeIncreasingGasPrice,
	}
}

// Option modifies the Config of a single execution.
type Option func(*Config)

// WithMaxGasIncreasePercentage sets the escalation bound.
func WithMaxGasIncreasePercentage(pct int64) Option {
	return func(c *Config) { c.MaxGasIncreasePercentage = pct }
}

// WithWaitTimeForMaxGasPrice sets the final wait at the price ceiling.
func WithWaitTimeForMaxGasPrice(d time.Duration) Option {
	return func(c *Config) { c.WaitTimeForMaxGasPrice = d }
}

// WithTimeoutBeforeIncreasingGasPrice sets the wait of each submission.
func WithTimeoutBeforeIncreasingGasPrice(d time.Duration) Option {
	return func(c *Config) { c.TimeoutBeforeIncreasingGasPrice = d }
}

// Executor submits transactions and re-submits them with a higher gas price
// while they are not included, up to a ceiling derived from the seed price.
type Executor struct {
	backend Backend
	prices  *GasPriceProvider
	config  Config
}

// New creates an Executor. If prices is nil, the backend fee data is used.
func New(backend Backend, prices *GasPriceProvider, config Config) *Executor {
	if prices == nil {
		prices = NewGasPriceProvider(backend, nil)
	}
	return &Executor{backend: backend, prices: prices, config: config}
}

// Execute submits base and waits for its inclusion, escalating the gas price
// after every TimeoutBeforeIncreasingGasPrice. Earlier submissions are left
// pending: whichever one is mined first settles the nonce. operation names
// the transaction in logs and errors.
//
// It returns the hash of the mined transaction. A nil hash with a nil error
// means the nonce had already been consumed and nothing was done.
func (e *Executor) Execute(ctx context.Context, base TxRequest, operation string, opts ...Option) (*common.Hash, error) {
	cfg := e.config
	for _, opt := range opts {
		opt(&cfg)
	}

	req, err := e.prepare(ctx, base)
	if err != nil {
		return nil, err
	}
	price, err := e.prices.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	ceiling := Ceiling(price, cfg.MaxGasIncreasePercentage)
	log.Debugw("executing transaction",
		"operation", operation,
		"nonce", *req.Nonce,
		"gasLimit", req.GasLimit,
		"price", price.String(),
		"ceiling", ceiling.String())

	var last SubmittedTx
	for attempt := 1; ; attempt++ {
		tx, err := e.backend.SendTransaction(ctx, req.WithGasPrice(price))
		switch {
		case err == nil:
			last = tx
			log.Infow("transaction submitted",
				"operation", operation,
				"attempt", attempt,
				"hash", tx.Hash().Hex(),
				"price", price.String())
		case last != nil && KindOf(err) == KindUnderpriced:
			// the previous submission stays pooled; keep waiting on it
			log.Warnw("replacement refused as underpriced",
				"operation", operation,
				"attempt", attempt,
				"hash", last.Hash().Hex(),
				"price", price.String())
			tx = last
		default:
			return e.handleFailure(ctx, err, operation)
		}

		receipt, err := waitWithTimeout(ctx, tx, cfg.TimeoutBeforeIncreasingGasPrice, operation)
		if err == nil {
			return minedHash(receipt, tx.Hash(), operation)
		}
		if !isTimeout(err) || ctx.Err() != nil {
			return e.handleFailure(ctx, err, operation)
		}

		next, atCeiling := NextGasPrice(price, ceiling)
		if atCeiling {
			log.Warnw("gas price ceiling reached, waiting for last submission",
				"operation", operation,
				"hash", last.Hash().Hex(),
				"wait", cfg.WaitTimeForMaxGasPrice.String())
			receipt, err := waitWithTimeout(ctx, last, cfg.WaitTimeForMaxGasPrice, operation)
			if err == nil {
				return minedHash(receipt, last.Hash(), operation)
			}
			return e.handleFailure(ctx, err, operation)
		}
		log.Infow("transaction not mined in time, increasing gas price",
			"operation", operation,
			"hash", tx.Hash().Hex(),
			"timeout", cfg.TimeoutBeforeIncreasingGasPrice.String(),
			"price", next.String())
		price = next
	}
}

// prepare resolves the nonce and gas limit the request leaves unset. Both
// stay fixed for every submission.
func (e *Executor) prepare(ctx context.Context, base TxRequest) (TxRequest, error) {
	req := base
	if req.Nonce == nil {
		nonce, err := e.backend.NonceAt(ctx, req.From)
		if err != nil {
			return TxRequest{}, fmt.Errorf("failed to get nonce: %w", err)
		}
		req.Nonce = &nonce
	}
	if req.GasLimit == 0 {
		gas, err := e.backend.EstimateGas(ctx, req)
		if err != nil {
			return TxRequest{}, fmt.Errorf("%w: %w", ErrEstimateGas, err)
		}
		req.GasLimit = gas
	}
	return req, nil
}

// handleFailure resolves wait and send errors: a replacement is followed to
// its receipt, a consumed nonce ends the execution without error, anything
// else is returned unchanged.
func (e *Executor) handleFailure(ctx context.Context, err error, operation string) (*common.Hash, error) {
	if hash, ok := ReplacementHash(err); ok {
		log.Infow("transaction replaced, waiting for replacement",
			"operation", operation,
			"hash", hash.Hex())
		receipt, werr := e.backend.WaitForTransaction(ctx, hash)
		if werr != nil {
			return nil, fmt.Errorf("wait for replacement %s: %w", hash.Hex(), werr)
		}
		return minedHash(receipt, hash, operation)
	}
	if IsNonceAlreadyUsed(err) {
		log.Warnw("nonce already used, skipping transaction",
			"operation", operation,
			"error", err.Error())
		return nil, nil
	}
	return nil, err
}

func minedHash(receipt *types.Receipt, hash common.Hash, operation string) (*common.Hash, error) {
	if receipt == nil || receipt.Status == types.ReceiptStatusFailed {
		return nil, &FailedTxError{Operation: operation, Hash: hash}
	}
	log.Infow("transaction mined",
		"operation", operation,
		"hash", hash.Hex(),
		"block", receipt.BlockNumber)
	return &hash, nil
}
