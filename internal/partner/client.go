// Package partner holds thin pass-through clients for the REST APIs used
// next to the simulator: GlueX yields, the Blockscout explorer and GoldRush.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Client issues JSON requests against one base URL.
type Client struct {
	BaseURL    string
	APIKey     string
	AuthHeader string // header carrying APIKey; "Authorization" sends a Bearer token
	HTTPClient *http.Client

	log log.Logger
}

func NewClient(baseURL, apiKey, authHeader string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		AuthHeader: authHeader,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.Root().New("module", "partner", "base", baseURL),
	}
}

// StatusError is a non-200 answer.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "request failed: " + e.Status
	}
	return fmt.Sprintf("request failed: %s: %s", e.Status, e.Body)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	full := c.BaseURL + endpoint
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" && c.AuthHeader != "" {
		if strings.EqualFold(c.AuthHeader, "Authorization") {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		} else {
			req.Header.Set(c.AuthHeader, c.APIKey)
		}
	}
	c.log.Debug("Partner request", "method", req.Method, "url", req.URL.String())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Debug("Partner request failed", "status", resp.StatusCode, "body", string(body))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: response is not JSON", req.URL.Path)
	}
	return json.RawMessage(body), nil
}
