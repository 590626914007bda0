package partner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
)

// Yield talks to the GlueX yield and exchange-rate APIs.
type Yield struct {
	api   *Client
	rates *Client
}

func NewYield(apiURL, ratesURL, apiKey string) *Yield {
	return &Yield{
		api:   NewClient(apiURL, apiKey, "x-api-key"),
		rates: NewClient(ratesURL, apiKey, "x-api-key"),
	}
}

func (y *Yield) ActiveProtocols(ctx context.Context) (json.RawMessage, error) {
	return y.api.get(ctx, "/active-protocols", nil)
}

// PoolQuery selects a pool for the APY endpoints.
type PoolQuery struct {
	PoolAddress    string `json:"pool_address,omitempty"`
	LPTokenAddress string `json:"lp_token_address,omitempty"`
	Chain          string `json:"chain"`
	InputToken     string `json:"input_token,omitempty"`
	InputAmount    string `json:"input_amount,omitempty"`
}

func (y *Yield) HistoricalAPY(ctx context.Context, q PoolQuery) (json.RawMessage, error) {
	return y.api.post(ctx, "/historical-apy", q)
}

// DilutedAPY needs InputToken and InputAmount set.
func (y *Yield) DilutedAPY(ctx context.Context, q PoolQuery) (json.RawMessage, error) {
	if q.InputToken == "" || q.InputAmount == "" {
		return nil, fmt.Errorf("diluted apy: input token and amount are required")
	}
	return y.api.post(ctx, "/diluted-apy", q)
}

// RatePair asks for the price of Foreign in units of Domestic.
type RatePair struct {
	Domestic string `json:"domestic_token"`
	Foreign  string `json:"foreign_token"`
	ChainID  string `json:"chain_id"`
}

func (y *Yield) ExchangeRates(ctx context.Context, pairs []RatePair) (json.RawMessage, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("exchange rates: no pairs")
	}
	return y.rates.post(ctx, "/", pairs)
}

// Explorer reads token data from a Blockscout v2 API.
type Explorer struct{ api *Client }

func NewExplorer(baseURL string) *Explorer {
	return &Explorer{api: NewClient(baseURL, "", "")}
}

func (e *Explorer) Token(ctx context.Context, token common.Address) (json.RawMessage, error) {
	return e.api.get(ctx, "/api/v2/tokens/"+token.Hex(), nil)
}

func (e *Explorer) TokenCounters(ctx context.Context, token common.Address) (json.RawMessage, error) {
	return e.api.get(ctx, "/api/v2/tokens/"+token.Hex()+"/counters", nil)
}

// Portfolio wraps the GoldRush (Covalent) wallet endpoints for one chain.
type Portfolio struct {
	api   *Client
	chain string
}

func NewPortfolio(baseURL, apiKey, chain string) *Portfolio {
	return &Portfolio{api: NewClient(baseURL, apiKey, "Authorization"), chain: chain}
}

func (p *Portfolio) Balances(ctx context.Context, addr common.Address) (json.RawMessage, error) {
	return p.api.get(ctx, fmt.Sprintf("/v1/%s/address/%s/balances_v2/", p.chain, addr.Hex()), nil)
}

func (p *Portfolio) HistoricalPortfolio(ctx context.Context, addr common.Address, days int) (json.RawMessage, error) {
	var q url.Values
	if days > 0 {
		q = url.Values{"days": {fmt.Sprint(days)}}
	}
	return p.api.get(ctx, fmt.Sprintf("/v1/%s/address/%s/portfolio_v2/", p.chain, addr.Hex()), q)
}

// Logs returns event logs of a contract between two blocks. A zero bound
// is left to the API default.
func (p *Portfolio) Logs(ctx context.Context, contract common.Address, from, to uint64) (json.RawMessage, error) {
	q := url.Values{}
	if from > 0 {
		q.Set("starting-block", fmt.Sprint(from))
	}
	if to > 0 {
		q.Set("ending-block", fmt.Sprint(to))
	}
	return p.api.get(ctx, fmt.Sprintf("/v1/%s/events/address/%s/", p.chain, contract.Hex()), q)
}

// GasPrices returns fee estimates for eventType (erc20, nativetokens, uniswapv3).
func (p *Portfolio) GasPrices(ctx context.Context, eventType string) (json.RawMessage, error) {
	if eventType == "" {
		eventType = "erc20"
	}
	return p.api.get(ctx, fmt.Sprintf("/v1/%s/event/%s/gas_prices/", p.chain, eventType), nil)
}
