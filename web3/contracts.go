package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cowdao-grants/cowfee/crypto/signatures/ethereum"
	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/web3/rpc"
	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// web3QueryTimeout is the timeout for web3 queries.
	web3QueryTimeout = 10 * time.Second

	// defaultPollInterval is the interval between receipt polls of a
	// submitted transaction.
	defaultPollInterval = 2 * time.Second

	// DefaultMulticallSize is the number of calls aggregated in one
	// Multicall3 request.
	DefaultMulticallSize = 500

	tokenCacheSize = 1024
)

// Client is the subset of the JSON-RPC API used by Node. It is satisfied by
// *rpc.Client and by the go-ethereum simulated backend client.
type Client interface {
	CallContract(ctx context.Context, msg goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg goethereum.CallMsg) (uint64, error)
	FilterLogs(ctx context.Context, query goethereum.FilterQuery) ([]gethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*gethtypes.Block, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Node gives access to one chain: contract reads, log queries and signed
// transaction submission.
type Node struct {
	ChainID uint64

	cli    Client
	pool   *rpc.Web3Pool
	signer *ethereum.Signer

	pollInterval  time.Duration
	multicallSize int
	tokens        *lru.Cache[common.Address, TokenInfo]
}

// New creates a Node balancing its calls among the given endpoints. Every
// endpoint must serve the same chain; unreachable ones are skipped.
func New(web3rpcs []string) (*Node, error) {
	w3pool := rpc.NewWeb3Pool()
	var chainID *uint64
	for _, uri := range web3rpcs {
		cID, err := w3pool.AddEndpoint(uri)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", uri, "error", err)
			continue
		}
		if chainID == nil {
			chainID = &cID
		}
		if *chainID != cID {
			w3pool.Close()
			return nil, fmt.Errorf("web3 endpoints have different chain IDs: %d and %d", *chainID, cID)
		}
	}
	if chainID == nil {
		return nil, fmt.Errorf("no web3 endpoints available")
	}
	cli, err := w3pool.Client(*chainID)
	if err != nil {
		w3pool.Close()
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	lastBlock, err := cli.BlockNumber(ctx)
	if err != nil {
		w3pool.Close()
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	log.Infow("web3 client initialized",
		"chainID", *chainID,
		"lastBlock", lastBlock,
		"numEndpoints", w3pool.NumberOfEndpoints(*chainID, true))

	n := NewWithClient(cli, *chainID)
	n.pool = w3pool
	return n, nil
}

// NewWithClient creates a Node on top of an existing client.
func NewWithClient(cli Client, chainID uint64) *Node {
	tokens, err := lru.New[common.Address, TokenInfo](tokenCacheSize)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &Node{
		ChainID:       chainID,
		cli:           cli,
		pollInterval:  defaultPollInterval,
		multicallSize: DefaultMulticallSize,
		tokens:        tokens,
	}
}

// SetAccountPrivateKey sets the key used to sign transactions.
func (n *Node) SetAccountPrivateKey(hexPrivKey string) error {
	signer, err := ethereum.NewSignerFromHex(hexPrivKey)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	n.signer = signer
	return nil
}

// AccountAddress returns the address of the signing account, or the zero
// address when no key is set.
func (n *Node) AccountAddress() common.Address {
	if n.signer == nil {
		return common.Address{}
	}
	return n.signer.Address()
}

// SetPollInterval changes the receipt polling interval of submitted
// transactions.
func (n *Node) SetPollInterval(d time.Duration) {
	if d > 0 {
		n.pollInterval = d
	}
}

// SetMulticallSize changes the number of calls per Multicall3 request.
func (n *Node) SetMulticallSize(size int) {
	if size > 0 {
		n.multicallSize = size
	}
}

// BalanceAt returns the latest native balance of account.
func (n *Node) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return n.cli.BalanceAt(ctx, account, nil)
}

// BlockNumber returns the latest block number.
func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	return n.cli.BlockNumber(ctx)
}

// Close releases the endpoints of the pool, if any.
func (n *Node) Close() {
	if n.pool != nil {
		n.pool.Close()
	}
}
