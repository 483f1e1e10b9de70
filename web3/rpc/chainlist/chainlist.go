// Package chainlist discovers public JSON-RPC endpoints from chainlist.org,
// used to extend the endpoint pool beyond the configured RPC URL.
package chainlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ChainListURL is the source of the chain metadata.
	ChainListURL = "https://chainlist.org/rpcs.json"
	// randShuffle is replaced by tests for deterministic ordering.
	randShuffle = rand.Shuffle
	// healthCheckTimeout bounds each endpoint probe.
	healthCheckTimeout = 3 * time.Second
	// maxConcurrentChecks bounds the endpoints probed at once.
	maxConcurrentChecks = 16
)

var (
	loadOnce   sync.Once
	chainsByID map[uint64]*Chain
	loadErr    error
)

// Chain is the subset of chainlist.org metadata used here.
type Chain struct {
	Name      string     `json:"name"`
	ShortName string     `json:"shortName"`
	ChainID   uint64     `json:"chainId"`
	RPC       []RPCEntry `json:"rpc"`
}

// RPCEntry is one advertised endpoint.
type RPCEntry struct {
	URL          string `json:"url"`
	Tracking     string `json:"tracking,omitempty"`
	IsOpenSource bool   `json:"isOpenSource,omitempty"`
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	Result  string `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func load() error {
	resp, err := http.Get(ChainListURL)
	if err != nil {
		return fmt.Errorf("failed to fetch chain list: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch chain list: %s", resp.Status)
	}
	var chains []Chain
	if err := json.NewDecoder(resp.Body).Decode(&chains); err != nil {
		return fmt.Errorf("failed to decode chain list: %w", err)
	}
	chainsByID = make(map[uint64]*Chain, len(chains))
	for i := range chains {
		chainsByID[chains[i].ChainID] = &chains[i]
	}
	return nil
}

// healthCheckFunc reports whether endpoint answers eth_chainId with chainID.
type healthCheckFunc func(ctx context.Context, endpoint string, chainID uint64) bool

var isHealthyEndpoint healthCheckFunc = func(ctx context.Context, endpoint string, chainID uint64) bool {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", Method: "eth_chainId", Params: []any{}, ID: 1})
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil || rpcResp.Error != nil {
		return false
	}
	got, err := strconv.ParseUint(strings.TrimPrefix(rpcResp.Result, "0x"), 16, 64)
	return err == nil && got == chainID
}

// EndpointList returns up to numEndpoints healthy HTTP endpoints for chainID,
// in random order. Endpoints that track users or do not serve the expected
// chain are skipped.
func EndpointList(ctx context.Context, chainID uint64, numEndpoints int) ([]string, error) {
	loadOnce.Do(func() {
		loadErr = load()
	})
	if loadErr != nil {
		return nil, fmt.Errorf("failed to initialize chain list: %w", loadErr)
	}
	chain, ok := chainsByID[chainID]
	if !ok {
		return nil, fmt.Errorf("chain ID %d not found", chainID)
	}

	urls := make([]string, 0, len(chain.RPC))
	for _, rpc := range chain.RPC {
		if !strings.HasPrefix(rpc.URL, "http") || strings.Contains(rpc.URL, "${") {
			continue
		}
		if rpc.Tracking == "yes" {
			continue
		}
		urls = append(urls, rpc.URL)
	}
	randShuffle(len(urls), func(i, j int) {
		urls[i], urls[j] = urls[j], urls[i]
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	healthy := make([]string, 0, numEndpoints)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for _, url := range urls {
		g.Go(func() error {
			if gctx.Err() != nil || !isHealthyEndpoint(gctx, url, chainID) {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if numEndpoints > 0 && len(healthy) >= numEndpoints {
				return nil
			}
			healthy = append(healthy, url)
			if numEndpoints > 0 && len(healthy) >= numEndpoints {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()
	return healthy, nil
}
