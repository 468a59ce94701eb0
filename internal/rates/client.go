// Package rates fetches per-USD exchange rate tables over HTTP.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/currency"
)

const defaultTimeout = 10 * time.Second

// ErrFetch marks any failure to obtain a usable rate table. Callers fall
// back to cached or built-in rates on it.
var ErrFetch = errors.New("rate fetch failed")

// payload is the provider's wire format. ExpiresAt is optional; the
// converter applies its own TTL when it is absent.
type payload struct {
	Rates     map[string]float64 `json:"rates"`
	ExpiresAt time.Time          `json:"expires_at,omitzero"`
}

// Client implements currency.Provider against a JSON rate endpoint.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a rate client for the given endpoint URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current rate table.
func (c *Client) Fetch(ctx context.Context) (currency.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return currency.Table{}, fmt.Errorf("building rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return currency.Table{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return currency.Table{}, fmt.Errorf("%w: endpoint returned %s", ErrFetch, resp.Status)
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return currency.Table{}, fmt.Errorf("%w: decoding payload: %v", ErrFetch, err)
	}
	if len(p.Rates) == 0 {
		return currency.Table{}, fmt.Errorf("%w: payload contains no rates", ErrFetch)
	}

	return currency.Table{Rates: p.Rates, ExpiresAt: p.ExpiresAt}, nil
}
