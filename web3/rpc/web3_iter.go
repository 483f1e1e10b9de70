package rpc

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// endpointCooldown is how long a failing endpoint stays out of the rotation.
var endpointCooldown = 5 * time.Minute

// Web3Endpoint is a JSON-RPC endpoint bound to a chain.
type Web3Endpoint struct {
	ChainID    uint64 `json:"chainId"`
	URI        string
	client     *ethclient.Client
	rpcClient  *gethrpc.Client
	disabledAt time.Time
}

// Web3Iterator hands out the endpoints of a chain in round-robin order.
// Failing endpoints are disabled for a cooldown period; when every endpoint
// is disabled all of them are put back in the rotation.
type Web3Iterator struct {
	mtx       sync.Mutex
	nextIndex int
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
}

// NewWeb3Iterator creates a Web3Iterator with the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{available: append([]*Web3Endpoint{}, endpoints...)}
}

// Available returns the number of endpoints in the rotation.
func (it *Web3Iterator) Available() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.available)
}

// Disabled returns the number of endpoints in cooldown.
func (it *Web3Iterator) Disabled() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.disabled)
}

// Add puts new endpoints in the rotation.
func (it *Web3Iterator) Add(endpoints ...*Web3Endpoint) {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	it.available = append(it.available, endpoints...)
}

// Next returns the next endpoint of the rotation.
func (it *Web3Iterator) Next() (*Web3Endpoint, error) {
	if it == nil {
		return nil, fmt.Errorf("nil Web3Iterator")
	}
	it.mtx.Lock()
	defer it.mtx.Unlock()

	it.reenableExpired()
	if len(it.available) == 0 {
		return nil, fmt.Errorf("no registered endpoints")
	}
	if it.nextIndex >= len(it.available) {
		it.nextIndex = 0
	}
	ep := it.available[it.nextIndex]
	it.nextIndex = (it.nextIndex + 1) % len(it.available)
	return ep, nil
}

// reenableExpired moves back the endpoints whose cooldown is over. The caller
// must hold the lock.
func (it *Web3Iterator) reenableExpired() {
	if len(it.disabled) == 0 {
		return
	}
	now := time.Now()
	kept := it.disabled[:0]
	for _, ep := range it.disabled {
		if now.Sub(ep.disabledAt) >= endpointCooldown {
			ep.disabledAt = time.Time{}
			it.available = append(it.available, ep)
			continue
		}
		kept = append(kept, ep)
	}
	it.disabled = kept
}

// Disable takes the endpoint identified by uri out of the rotation. Unknown
// or already disabled endpoints are ignored.
func (it *Web3Iterator) Disable(uri string) {
	it.mtx.Lock()
	defer it.mtx.Unlock()

	index := slices.IndexFunc(it.available, func(ep *Web3Endpoint) bool { return ep.URI == uri })
	if index == -1 {
		return
	}
	ep := it.available[index]
	ep.disabledAt = time.Now()
	it.available = slices.Delete(it.available, index, index+1)
	it.disabled = append(it.disabled, ep)

	// keep pointing to the endpoint that followed the removed one
	if it.nextIndex > index {
		it.nextIndex--
	}

	if len(it.available) == 0 {
		for _, ep := range it.disabled {
			ep.disabledAt = time.Time{}
		}
		it.available, it.disabled = it.disabled, nil
		it.nextIndex = 0
		return
	}
	if it.nextIndex >= len(it.available) {
		it.nextIndex = 0
	}
}
