package partner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method, path, query, auth, apiKey, body string
}

func recorder(t *testing.T, status int, reply string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*s = seen{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			apiKey: r.Header.Get("x-api-key"),
			body:   string(b),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

var wallet = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

func TestYieldPassesThrough(t *testing.T) {
	srv, s := recorder(t, http.StatusOK, `{"protocols":["hyperlend"]}`)
	y := NewYield(srv.URL+"/", srv.URL, "k1")

	out, err := y.ActiveProtocols(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"protocols":["hyperlend"]}`, string(out))
	assert.Equal(t, http.MethodGet, s.method)
	assert.Equal(t, "/active-protocols", s.path)
	assert.Equal(t, "k1", s.apiKey)

	_, err = y.HistoricalAPY(context.Background(), PoolQuery{PoolAddress: "0xabc", Chain: "hyperevm"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, s.method)
	assert.Equal(t, "/historical-apy", s.path)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(s.body), &body))
	assert.Equal(t, map[string]string{"pool_address": "0xabc", "chain": "hyperevm"}, body)

	_, err = y.ExchangeRates(context.Background(), []RatePair{{Domestic: "0x1", Foreign: "0x2", ChainID: "999"}})
	require.NoError(t, err)
	assert.Equal(t, "/", s.path)
	assert.JSONEq(t, `[{"domestic_token":"0x1","foreign_token":"0x2","chain_id":"999"}]`, s.body)
}

func TestYieldValidatesInput(t *testing.T) {
	y := NewYield("http://127.0.0.1:1", "http://127.0.0.1:1", "")
	_, err := y.DilutedAPY(context.Background(), PoolQuery{Chain: "hyperevm"})
	assert.Error(t, err)
	_, err = y.ExchangeRates(context.Background(), nil)
	assert.Error(t, err)
}

func TestExplorerPaths(t *testing.T) {
	srv, s := recorder(t, http.StatusOK, `{"holders":"12"}`)
	e := NewExplorer(srv.URL)

	_, err := e.Token(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/tokens/"+wallet.Hex(), s.path)
	assert.Empty(t, s.auth)

	out, err := e.TokenCounters(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/tokens/"+wallet.Hex()+"/counters", s.path)
	assert.JSONEq(t, `{"holders":"12"}`, string(out))
}

func TestPortfolioUsesBearerKey(t *testing.T) {
	srv, s := recorder(t, http.StatusOK, `{"data":{"items":[]}}`)
	p := NewPortfolio(srv.URL, "secret", "hyperevm-mainnet")

	_, err := p.Balances(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, "/v1/hyperevm-mainnet/address/"+wallet.Hex()+"/balances_v2/", s.path)
	assert.Equal(t, "Bearer secret", s.auth)

	_, err = p.HistoricalPortfolio(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.Equal(t, "days=7", s.query)

	_, err = p.Logs(context.Background(), wallet, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "/v1/hyperevm-mainnet/events/address/"+wallet.Hex()+"/", s.path)
	assert.Equal(t, "starting-block=10", s.query)

	_, err = p.GasPrices(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/v1/hyperevm-mainnet/event/erc20/gas_prices/", s.path)
}

func TestNonOKIsStatusError(t *testing.T) {
	srv, _ := recorder(t, http.StatusTooManyRequests, "slow down")
	_, err := NewExplorer(srv.URL).Token(context.Background(), wallet)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Body)
}

func TestInvalidJSONRejected(t *testing.T) {
	srv, _ := recorder(t, http.StatusOK, "<html>")
	_, err := NewExplorer(srv.URL).Token(context.Background(), wallet)
	assert.Error(t, err)
}
