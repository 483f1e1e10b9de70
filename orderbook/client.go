// Package orderbook is a client of the order book HTTP API: price quotes and
// pre-signed order submission.
package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

const (
	quoteEndpoint  = "/api/v1/quote"
	ordersEndpoint = "/api/v1/orders"

	defaultRequestsPerSecond = 5
	defaultMaxAttempts       = 5
	defaultBackoff           = 500 * time.Millisecond
	defaultHTTPTimeout       = 30 * time.Second
	maxErrorBodySize         = 64 << 10

	errDuplicatedOrder = "DuplicatedOrder"
)

// Client talks to the order book API of one network. It is safe for
// concurrent use; requests share a rate limiter.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	chainID     uint64
	settlement  common.Address
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the number of requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetry sets the number of attempts of a request and the initial backoff
// between them, doubled after every attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(attempts, 1)
		c.backoff = backoff
	}
}

// WithChainID sets the network of the order book. It is needed to recover
// the UID of an order stored by an attempt whose response was lost.
func WithChainID(chainID uint64) Option {
	return func(c *Client) { c.chainID = chainID }
}

// WithSettlement overrides DefaultSettlement.
func WithSettlement(settlement common.Address) Option {
	return func(c *Client) { c.settlement = settlement }
}

// New creates a client for the order book at baseURL, for instance
// https://api.cow.fi/mainnet.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		limiter:     rate.NewLimiter(defaultRequestsPerSecond, defaultRequestsPerSecond),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		settlement:  DefaultSettlement,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote requests a price quote.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	resp := &QuoteResponse{}
	if err := c.do(ctx, http.MethodPost, quoteEndpoint, req, resp); err != nil {
		return nil, fmt.Errorf("quote %s: %w", req.SellToken.Hex(), err)
	}
	if resp.Quote.BuyAmount == nil {
		return nil, fmt.Errorf("quote %s: missing buy amount", req.SellToken.Hex())
	}
	return resp, nil
}

// SendOrder submits an order and returns its UID. When a retried submission
// is rejected as a duplicate, an earlier attempt stored the order and its UID
// is computed locally.
func (c *Client) SendOrder(ctx context.Context, order OrderCreation) (string, error) {
	var uid string
	attempts, err := c.request(ctx, http.MethodPost, ordersEndpoint, order, &uid)
	if err != nil && attempts > 1 && IsAPIError(err, errDuplicatedOrder) && c.chainID != 0 {
		recovered, uidErr := OrderUID(order, c.chainID, c.settlement)
		if uidErr == nil {
			log.Warnw("order stored by an earlier attempt",
				"token", order.SellToken.Hex(),
				"uid", recovered)
			return recovered, nil
		}
		log.Warnw("cannot recover order uid", "error", uidErr.Error())
	}
	if err != nil {
		return "", fmt.Errorf("order %s: %w", order.SellToken.Hex(), err)
	}
	return uid, nil
}

// do sends a JSON request and decodes the JSON response into out. Transport
// errors, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.request(ctx, method, path, body, out)
	return err
}

// request is do, also returning the number of attempts made.
func (c *Client) request(ctx context.Context, method, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			log.Debugw("retrying order book request",
				"path", path,
				"attempt", attempt,
				"error", lastErr.Error())
			if err := sleep(ctx, backoff); err != nil {
				return attempt - 1, err
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return attempt - 1, err
		}

		retry, err := c.send(ctx, method, path, payload, out)
		if err == nil {
			return attempt, nil
		}
		if !retry {
			return attempt, err
		}
		lastErr = err
	}
	return c.maxAttempts, fmt.Errorf("giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

// send performs one request and reports whether a failure may be retried.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			apiErr.Description = strings.TrimSpace(string(data))
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

// IsAPIError reports whether err carries an order book error of errorType.
func IsAPIError(err error, errorType string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorType == errorType
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
