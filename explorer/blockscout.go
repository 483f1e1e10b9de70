// Package explorer lists the ERC-20 holdings of an address through a
// Blockscout v2 API.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultTimeout = 30 * time.Second
	// maxPages bounds the pagination of one listing.
	maxPages = 200
)

// TokenHolding is one ERC-20 token held by an address.
type TokenHolding struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
	Balance  *big.Int
}

type tokenItem struct {
	Token struct {
		Address     string `json:"address"`
		AddressHash string `json:"address_hash"`
		Symbol      string `json:"symbol"`
		Decimals    string `json:"decimals"`
		Type        string `json:"type"`
	} `json:"token"`
	Value string `json:"value"`
}

type tokensPage struct {
	Items          []tokenItem                `json:"items"`
	NextPageParams map[string]json.RawMessage `json:"next_page_params"`
}

// Client queries one Blockscout instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the Blockscout v2 API at baseURL, for instance
// https://eth.blockscout.com/api/v2.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// TokenHoldings returns the ERC-20 tokens held by address with a positive
// balance, following every result page.
func (c *Client) TokenHoldings(ctx context.Context, address common.Address) ([]TokenHolding, error) {
	var holdings []TokenHolding
	params := url.Values{}
	for page := 0; page < maxPages; page++ {
		params.Set("type", "ERC-20")
		res, err := c.fetchPage(ctx, address, params)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			holding, ok := item.holding()
			if !ok {
				continue
			}
			holdings = append(holdings, holding)
		}
		if len(res.NextPageParams) == 0 {
			return holdings, nil
		}
		params = nextPageValues(res.NextPageParams)
	}
	log.Warnw("token listing truncated", "address", address.Hex(), "pages", maxPages)
	return holdings, nil
}

func (c *Client) fetchPage(ctx context.Context, address common.Address, params url.Values) (*tokensPage, error) {
	uri := fmt.Sprintf("%s/addresses/%s/tokens?%s", c.baseURL, address.Hex(), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer API returned %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	page := &tokensPage{}
	if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
		return nil, fmt.Errorf("failed to decode explorer response: %w", err)
	}
	return page, nil
}

func (item tokenItem) holding() (TokenHolding, bool) {
	addr := item.Token.AddressHash
	if addr == "" {
		addr = item.Token.Address
	}
	if !common.IsHexAddress(addr) {
		return TokenHolding{}, false
	}
	balance, ok := new(big.Int).SetString(item.Value, 10)
	if !ok || balance.Sign() <= 0 {
		return TokenHolding{}, false
	}
	decimals, err := strconv.ParseUint(item.Token.Decimals, 10, 8)
	if err != nil {
		decimals = 0
	}
	return TokenHolding{
		Address:  common.HexToAddress(addr),
		Symbol:   item.Token.Symbol,
		Decimals: uint8(decimals),
		Balance:  balance,
	}, true
}

// nextPageValues turns the next_page_params object into query values.
// Strings are used verbatim, numbers keep their JSON text and nulls are
// dropped.
func nextPageValues(raw map[string]json.RawMessage) url.Values {
	values := url.Values{}
	for key, v := range raw {
		text := strings.TrimSpace(string(v))
		if text == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			values.Set(key, s)
			continue
		}
		values.Set(key, text)
	}
	return values
}
