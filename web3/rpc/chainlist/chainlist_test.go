package chainlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-chi/chi/v5"
)

func resetGlobals() {
	loadOnce = sync.Once{}
	chainsByID = nil
	loadErr = nil
}

// mockChainList serves chains from a local server and replaces the health
// check with healthy.
func mockChainList(c *qt.C, chains []Chain, healthy healthCheckFunc) {
	r := chi.NewRouter()
	r.Get("/rpcs.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chains)
	})
	srv := httptest.NewServer(r)

	prevURL, prevCheck := ChainListURL, isHealthyEndpoint
	ChainListURL = srv.URL + "/rpcs.json"
	isHealthyEndpoint = healthy
	resetGlobals()
	c.Cleanup(func() {
		ChainListURL, isHealthyEndpoint = prevURL, prevCheck
		srv.Close()
		resetGlobals()
	})
}

func allHealthy(context.Context, string, uint64) bool { return true }

var testChains = []Chain{
	{
		Name:      "Gnosis",
		ShortName: "gno",
		ChainID:   100,
		RPC: []RPCEntry{
			{URL: "https://gno-1.example.com"},
			{URL: "https://gno-2.example.com"},
			{URL: "https://gno-3.example.com", Tracking: "yes"},
			{URL: "wss://gno-4.example.com"},
			{URL: "https://gno-5.example.com/${API_KEY}"},
		},
	},
	{
		Name:      "Polygon",
		ShortName: "pol",
		ChainID:   137,
		RPC:       []RPCEntry{{URL: "https://pol-1.example.com"}, {URL: "https://pol-2.example.com"}},
	},
}

func TestEndpointList(t *testing.T) {
	c := qt.New(t)
	mockChainList(c, testChains, allHealthy)

	endpoints, err := EndpointList(context.Background(), 100, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(endpoints, qt.HasLen, 2)
	for _, ep := range endpoints {
		c.Assert(ep == "https://gno-1.example.com" || ep == "https://gno-2.example.com", qt.IsTrue)
	}

	endpoints, err = EndpointList(context.Background(), 137, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(endpoints, qt.HasLen, 1)

	_, err = EndpointList(context.Background(), 5, 1)
	c.Assert(err, qt.ErrorMatches, "chain ID 5 not found")
}

func TestEndpointListFiltersUnhealthy(t *testing.T) {
	c := qt.New(t)
	mockChainList(c, testChains, func(_ context.Context, ep string, _ uint64) bool {
		return ep == "https://pol-2.example.com"
	})

	endpoints, err := EndpointList(context.Background(), 137, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(endpoints, qt.DeepEquals, []string{"https://pol-2.example.com"})
}

func TestHealthCheckChainID(t *testing.T) {
	c := qt.New(t)
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x64"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c.Assert(isHealthyEndpoint(context.Background(), srv.URL, 100), qt.IsTrue)
	c.Assert(isHealthyEndpoint(context.Background(), srv.URL, 1), qt.IsFalse)
	c.Assert(isHealthyEndpoint(context.Background(), "http://127.0.0.1:1", 100), qt.IsFalse)
}
