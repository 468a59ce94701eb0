// Package currency converts amounts between currencies through a per-USD
// rate table and renders amounts for display.
package currency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultTTL is how long a fetched table stays valid when the provider
// does not declare its own expiry.
const defaultTTL = time.Hour

// Table maps currency codes to their rate per 1 USD. ExpiresAt zero means
// the provider declared no expiry.
type Table struct {
	Rates     map[string]float64
	ExpiresAt time.Time
}

// Provider fetches a fresh rate table.
type Provider interface {
	Fetch(ctx context.Context) (Table, error)
}

// fallbackRates is used when the provider cannot be reached. Stale but
// better than failing every conversion.
var fallbackRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"UAH": 41.5,
	"PLN": 4.0,
	"CHF": 0.88,
	"CAD": 1.36,
	"JPY": 150,
}

// Converter converts amounts between currencies, caching the rate table
// until its expiry. Safe for concurrent use; concurrent refreshes are
// coalesced into a single provider call.
type Converter struct {
	provider Provider
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	rates     map[string]float64
	expiresAt time.Time
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// NewConverter creates a converter backed by the given provider.
func NewConverter(p Provider, opts ...Option) *Converter {
	c := &Converter{
		provider: p,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert converts amount from one currency to another. Identity
// conversions never touch the provider. The USD legs are computed
// directly rather than through the generic pivot; the two forms round
// differently.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}

	rates, err := c.table(ctx)
	if err != nil {
		return 0, err
	}

	if from == "USD" {
		rate, ok := rates[to]
		if !ok {
			return 0, fmt.Errorf("no rate for currency %q", to)
		}
		return amount * rate, nil
	}
	if to == "USD" {
		rate, ok := rates[from]
		if !ok {
			return 0, fmt.Errorf("no rate for currency %q", from)
		}
		return amount / rate, nil
	}

	fromRate, ok := rates[from]
	if !ok {
		return 0, fmt.Errorf("no rate for currency %q", from)
	}
	toRate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("no rate for currency %q", to)
	}
	return (amount / fromRate) * toRate, nil
}

// Rate returns the per-USD rate for one currency.
func (c *Converter) Rate(ctx context.Context, code string) (float64, error) {
	if code == "USD" {
		return 1, nil
	}
	rates, err := c.table(ctx)
	if err != nil {
		return 0, err
	}
	rate, ok := rates[code]
	if !ok {
		return 0, fmt.Errorf("no rate for currency %q", code)
	}
	return rate, nil
}

// table returns the cached rate table, refreshing it when expired.
func (c *Converter) table(ctx context.Context) (map[string]float64, error) {
	c.mu.Lock()
	if c.rates != nil && c.now().Before(c.expiresAt) {
		rates := c.rates
		c.mu.Unlock()
		return rates, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("rates", func() (any, error) {
		return c.refresh(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]float64), nil
}

// refresh fetches a new table, falling back to the hardcoded rates when
// the provider fails or none is configured. Either way the result is
// cached.
func (c *Converter) refresh(ctx context.Context) map[string]float64 {
	rates := fallbackRates
	expiresAt := c.now().Add(defaultTTL)

	if c.provider != nil {
		table, err := c.provider.Fetch(ctx)
		if err != nil {
			c.logger.Warn("rate fetch failed, using fallback table", "error", err)
		} else {
			rates = table.Rates
			if !table.ExpiresAt.IsZero() {
				expiresAt = table.ExpiresAt
			}
		}
	}

	c.mu.Lock()
	c.rates = rates
	c.expiresAt = expiresAt
	c.mu.Unlock()
	return rates
}
