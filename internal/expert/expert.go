// Package expert enriches entity views with data from the Stellar Expert
// aggregator. Stellar Expert is not an authoritative source, so every call
// is best-effort: any failure returns nil and the caller renders without
// the enrichment.
package expert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.stellar.expert/explorer"

// AssetRating is Stellar Expert's composite ranking for one asset.
type AssetRating struct {
	Asset  string `json:"asset"`
	Rating struct {
		Age        int     `json:"age"`
		Trades     int     `json:"trades"`
		Payments   int     `json:"payments"`
		Trustlines int     `json:"trustlines"`
		Volume7d   int     `json:"volume7d"`
		Average    float64 `json:"average"`
	} `json:"rating"`
	TrustlinesTotal int   `json:"trustlines_total"`
	Payments        int64 `json:"payments"`
}

// NetworkStats is the aggregator's rollup of ledger activity.
type NetworkStats struct {
	Accounts   int64 `json:"accounts"`
	Assets     int64 `json:"assets"`
	Payments   int64 `json:"payments"`
	Trades     int64 `json:"trades"`
	Operations int64 `json:"operations"`
	LedgerSeq  int64 `json:"sequence"`
}

// ContractValidation is the aggregator's source-verification record.
type ContractValidation struct {
	Contract string `json:"address"`
	Status   string `json:"status"`
	Repo     string `json:"repository,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// Client talks to the Stellar Expert API for one network.
type Client struct {
	baseURL    string
	network    string
	httpClient *http.Client
}

// NewClient creates a client for "public" or "testnet". Stellar Expert
// indexes no other networks; callers on futurenet get nil enrichment.
func NewClient(network string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    defaultBaseURL,
		network:    network,
		httpClient: httpClient,
	}
}

// WithBaseURL overrides the API root, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// AssetRating fetches the composite rating for code-issuer. Nil on any
// failure.
func (c *Client) AssetRating(ctx context.Context, code, issuer string) *AssetRating {
	var out AssetRating
	path := fmt.Sprintf("/%s/asset/%s-%s/rating", c.network, url.PathEscape(code), url.PathEscape(issuer))
	if !c.get(ctx, path, &out) {
		return nil
	}
	return &out
}

// NetworkStats fetches network-wide aggregates. Nil on any failure.
func (c *Client) NetworkStats(ctx context.Context) *NetworkStats {
	var out NetworkStats
	if !c.get(ctx, fmt.Sprintf("/%s/ledger/ledger-stats", c.network), &out) {
		return nil
	}
	return &out
}

// ContractValidation fetches the source-verification status for a contract.
// Nil on any failure or when the contract was never submitted.
func (c *Client) ContractValidation(ctx context.Context, contractID string) *ContractValidation {
	var out ContractValidation
	path := fmt.Sprintf("/%s/contract-validation/%s", c.network, url.PathEscape(contractID))
	if !c.get(ctx, path, &out) {
		return nil
	}
	return &out
}

// get performs one JSON fetch. It never returns an error: enrichment
// failures are logged at debug and reported as a miss.
func (c *Client) get(ctx context.Context, path string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Stellar Expert fetch failed", "path", path, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("Stellar Expert returned non-200", "path", path, "status", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		slog.Debug("Stellar Expert payload unparseable", "path", path, "error", err)
		return false
	}
	return true
}
