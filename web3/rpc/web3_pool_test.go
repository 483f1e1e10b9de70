package rpc

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func testEndpoints(n int) []*Web3Endpoint {
	eps := make([]*Web3Endpoint, n)
	for i := range eps {
		eps[i] = &Web3Endpoint{ChainID: 100, URI: fmt.Sprintf("http://node%d.example.com", i+1)}
	}
	return eps
}

func testPool(n int) *Web3Pool {
	pool := NewWeb3Pool()
	pool.endpoints[100] = NewWeb3Iterator(testEndpoints(n)...)
	return pool
}

func TestPoolDisableAndReset(t *testing.T) {
	c := qt.New(t)
	pool := testPool(3)
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 3)

	pool.DisableEndpoint(100, "http://node1.example.com")
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 2)
	c.Assert(pool.NumberOfEndpoints(100, false), qt.Equals, 3)

	pool.DisableEndpoint(100, "http://node2.example.com")
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 1)

	// disabling the last one puts all of them back
	pool.DisableEndpoint(100, "http://node3.example.com")
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 3)

	// unknown endpoints and chains are ignored
	pool.DisableEndpoint(100, "http://unknown.example.com")
	pool.DisableEndpoint(1, "http://node1.example.com")
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 3)
	c.Assert(pool.NumberOfEndpoints(1, false), qt.Equals, 0)
}

func TestPoolClient(t *testing.T) {
	c := qt.New(t)
	pool := testPool(1)
	cli, err := pool.Client(100)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.ChainID(), qt.Equals, uint64(100))

	_, err = pool.Client(1)
	c.Assert(err, qt.ErrorMatches, "no endpoints for chainID 1")
}

func TestIteratorRoundRobin(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints(3)...)
	for _, want := range []string{"node1", "node2", "node3", "node1"} {
		ep, err := it.Next()
		c.Assert(err, qt.IsNil)
		c.Assert(ep.URI, qt.Equals, "http://"+want+".example.com")
	}
}

func TestIteratorDisableKeepsOrder(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints(3)...)

	ep, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "http://node1.example.com")

	// node2 was next; its successor takes its place
	it.Disable("http://node2.example.com")
	ep, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "http://node3.example.com")
	ep, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "http://node1.example.com")
}

func TestIteratorDisableCurrent(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints(3)...)

	ep, err := it.Next()
	c.Assert(err, qt.IsNil)
	it.Disable(ep.URI)

	ep, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URI, qt.Equals, "http://node2.example.com")
}

func TestIteratorCooldown(t *testing.T) {
	c := qt.New(t)
	prev := endpointCooldown
	endpointCooldown = 10 * time.Millisecond
	defer func() { endpointCooldown = prev }()

	it := NewWeb3Iterator(testEndpoints(2)...)
	it.Disable("http://node1.example.com")
	c.Assert(it.Available(), qt.Equals, 1)
	c.Assert(it.Disabled(), qt.Equals, 1)

	time.Sleep(20 * time.Millisecond)
	_, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(it.Available(), qt.Equals, 2)
	c.Assert(it.Disabled(), qt.Equals, 0)
}

func TestIteratorEmpty(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator()
	_, err := it.Next()
	c.Assert(err, qt.IsNotNil)
	c.Assert(it.Available(), qt.Equals, 0)
}

func TestIteratorConcurrentAccess(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(testEndpoints(3)...)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = it.Next()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 10 {
			it.Disable("http://node1.example.com")
		}
	}()
	wg.Wait()
	c.Assert(it.Available()+it.Disabled(), qt.Equals, 3)
}

func TestRetrySwitchesEndpoint(t *testing.T) {
	c := qt.New(t)
	cli := &Client{w3p: testPool(2), chainID: 100}

	calls := 0
	seen := []string{}
	res, err := cli.retryAndCheckErr(func(ep *Web3Endpoint) (any, error) {
		calls++
		seen = append(seen, ep.URI)
		if calls <= defaultRetries {
			return nil, errors.New("connection reset")
		}
		return "ok", nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.Equals, "ok")
	c.Assert(calls, qt.Equals, defaultRetries+1)
	c.Assert(seen[len(seen)-1], qt.Equals, "http://node2.example.com")
}

func TestRetryAllEndpointsFail(t *testing.T) {
	c := qt.New(t)
	pool := testPool(2)
	cli := &Client{w3p: pool, chainID: 100}

	_, err := cli.retryAndCheckErr(func(*Web3Endpoint) (any, error) {
		return nil, errors.New("connection reset")
	})
	c.Assert(err, qt.ErrorMatches, "all endpoints exhausted for chainID 100: connection reset")
	c.Assert(pool.NumberOfEndpoints(100, true), qt.Equals, 2)
}

func TestRetryPermanentError(t *testing.T) {
	c := qt.New(t)
	cli := &Client{w3p: testPool(2), chainID: 100}

	calls := 0
	nonceErr := errors.New("nonce too low: next nonce 8, tx nonce 7")
	_, err := cli.retryAndCheckErr(func(*Web3Endpoint) (any, error) {
		calls++
		return nil, nonceErr
	})
	c.Assert(err, qt.Equals, nonceErr)
	c.Assert(calls, qt.Equals, 1)
}

func TestRetryNoEndpoints(t *testing.T) {
	c := qt.New(t)
	cli := &Client{w3p: NewWeb3Pool(), chainID: 999}
	_, err := cli.retryAndCheckErr(func(*Web3Endpoint) (any, error) { return nil, nil })
	c.Assert(err, qt.IsNotNil)
}

func TestParseError(t *testing.T) {
	c := qt.New(t)
	c.Assert(ParseError(nil), qt.IsNil)
	perr := ParseError(errors.New("execution reverted"))
	c.Assert(perr.Message, qt.Equals, "execution reverted")
	c.Assert(IsPermanentError(perr), qt.IsTrue)
	c.Assert(IsPermanentError(errors.New("i/o timeout")), qt.IsFalse)
}
