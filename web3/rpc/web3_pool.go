package rpc

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Web3Pool groups JSON-RPC endpoints by chain ID.
type Web3Pool struct {
	mtx       sync.RWMutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool creates an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{endpoints: make(map[uint64]*Web3Iterator)}
}

// AddEndpoint dials uri, asks its chain ID and registers it. It returns the
// chain ID served by the endpoint.
func (p *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	rpcClient, err := gethrpc.DialContext(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("failed to dial %s: %w", uri, err)
	}
	client := ethclient.NewClient(rpcClient)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("failed to get chain ID from %s: %w", uri, err)
	}
	p.add(&Web3Endpoint{
		ChainID:   chainID.Uint64(),
		URI:       uri,
		client:    client,
		rpcClient: rpcClient,
	})
	return chainID.Uint64(), nil
}

func (p *Web3Pool) add(ep *Web3Endpoint) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if it, ok := p.endpoints[ep.ChainID]; ok {
		it.Add(ep)
		return
	}
	p.endpoints[ep.ChainID] = NewWeb3Iterator(ep)
}

// Endpoint returns the next endpoint for chainID.
func (p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	p.mtx.RLock()
	it, ok := p.endpoints[chainID]
	p.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no endpoints for chainID %d", chainID)
	}
	return it.Next()
}

// DisableEndpoint takes uri out of the rotation of chainID.
func (p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	p.mtx.RLock()
	it, ok := p.endpoints[chainID]
	p.mtx.RUnlock()
	if ok {
		it.Disable(uri)
	}
}

// NumberOfEndpoints returns the endpoints registered for chainID. With
// onlyAvailable the endpoints in cooldown are not counted.
func (p *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	p.mtx.RLock()
	it, ok := p.endpoints[chainID]
	p.mtx.RUnlock()
	if !ok {
		return 0
	}
	if onlyAvailable {
		return it.Available()
	}
	return it.Available() + it.Disabled()
}

// Client returns a Client balancing the calls among the endpoints of chainID.
func (p *Web3Pool) Client(chainID uint64) (*Client, error) {
	if p.NumberOfEndpoints(chainID, false) == 0 {
		return nil, fmt.Errorf("no endpoints for chainID %d", chainID)
	}
	return &Client{w3p: p, chainID: chainID}, nil
}

// Close closes every endpoint connection.
func (p *Web3Pool) Close() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, it := range p.endpoints {
		it.mtx.Lock()
		for _, ep := range slices.Concat(it.available, it.disabled) {
			if ep.client != nil {
				ep.client.Close()
			}
		}
		it.mtx.Unlock()
	}
}
