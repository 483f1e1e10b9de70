// Package gasstation fetches gas prices from chain specific gas station APIs,
// used in place of the node fee data on chains where the node suggestion is
// unreliable.
package gasstation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/cowdao-grants/cowfee/web3/txmanager"
)

// Speed selects a tier of the gas station response.
type Speed string

const (
	SafeLow  Speed = "safeLow"
	Standard Speed = "standard"
	Fast     Speed = "fast"
)

const (
	// PolygonURL is the Polygon PoS gas station.
	PolygonURL = "https://gasstation.polygon.technology/v2"

	defaultTimeout = 10 * time.Second
)

// Tier is a pair of fees expressed in gwei.
type Tier struct {
	MaxPriorityFee float64 `json:"maxPriorityFee"`
	MaxFee         float64 `json:"maxFee"`
}

// Response is the body returned by the gas station.
type Response struct {
	SafeLow          Tier    `json:"safeLow"`
	Standard         Tier    `json:"standard"`
	Fast             Tier    `json:"fast"`
	EstimatedBaseFee float64 `json:"estimatedBaseFee"`
	BlockTime        float64 `json:"blockTime"`
	BlockNumber      uint64  `json:"blockNumber"`
}

func (r *Response) tier(speed Speed) (Tier, error) {
	switch speed {
	case SafeLow:
		return r.SafeLow, nil
	case Standard:
		return r.Standard, nil
	case Fast:
		return r.Fast, nil
	}
	return Tier{}, fmt.Errorf("unknown gas station speed %q", speed)
}

// ParseFunc converts a decoded gas station body into a gas price.
type ParseFunc func(body []byte) (txmanager.GasPrice, error)

// Fetcher queries a gas station URL and parses the response with parse.
type Fetcher struct {
	url    string
	parse  ParseFunc
	client *http.Client
}

var _ txmanager.GasPriceFetcher = &Fetcher{}

// New returns a fetcher reading the given tier of a gas station that follows
// the Polygon response format.
func New(speed Speed, url string) *Fetcher {
	return NewCustom(url, func(body []byte) (txmanager.GasPrice, error) {
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return txmanager.GasPrice{}, fmt.Errorf("failed to decode gas station response: %w", err)
		}
		tier, err := resp.tier(speed)
		if err != nil {
			return txmanager.GasPrice{}, err
		}
		return txmanager.EIP1559Price(GweiToWei(tier.MaxFee), GweiToWei(tier.MaxPriorityFee)), nil
	})
}

// NewCustom returns a fetcher for an arbitrary API. parse may return either
// gas price variant.
func NewCustom(url string, parse ParseFunc) *Fetcher {
	return &Fetcher{
		url:    url,
		parse:  parse,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient replaces the HTTP client used by the fetcher.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

// FetchGasPrice implements txmanager.GasPriceFetcher.
func (f *Fetcher) FetchGasPrice(ctx context.Context) (txmanager.GasPrice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return txmanager.GasPrice{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return txmanager.GasPrice{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return txmanager.GasPrice{}, fmt.Errorf("gas station API returned %d: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return txmanager.GasPrice{}, fmt.Errorf("failed to read gas station response: %w", err)
	}
	return f.parse(body)
}

// GweiToWei converts a decimal gwei amount to wei, rounding up.
func GweiToWei(gwei float64) *big.Int {
	wei, _ := new(big.Float).SetFloat64(math.Ceil(gwei * 1e9)).Int(nil)
	return wei
}

// ForChain returns the gas price fetcher registered for chainID, or nil.
func ForChain(chainID uint64) txmanager.GasPriceFetcher {
	switch chainID {
	case 137:
		return New(Fast, PolygonURL)
	}
	return nil
}
