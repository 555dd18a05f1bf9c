// Package fx converts money between currencies. Rates come from an
// external exchange-rate API quoting every currency against a single
// canonical base, so any pair converts in two hops via the base.
package fx

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

// RateSource yields how many units of currency one unit of the
// canonical currency buys.
type RateSource interface {
	Rate(ctx context.Context, currency string) (float64, error)
}

const rateCacheTTL = time.Hour

// Client fetches rates over HTTP and caches them in redis. A fetch
// failure is surfaced as ErrRateUnavailable; there is no fallback rate.
type Client struct {
	httpClient *http.Client
	redis      redis.RedisClient
	apiURL     string
	base       string
}

func NewClient(apiURL, baseCurrency string, redisClient redis.RedisClient) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		redis:      redisClient,
		apiURL:     apiURL,
		base:       baseCurrency,
	}
}

func (c *Client) Rate(ctx context.Context, currency string) (float64, error) {
	if currency == c.base {
		return 1, nil
	}

	cacheKey := "fxrate:" + currency
	if cached, err := c.redis.Get(ctx, cacheKey); err == nil {
		if rate, err := strconv.ParseFloat(cached, 64); err == nil && rate > 0 {
			return rate, nil
		}
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Warn("rate cache read failed", "currency", currency, "error", err)
	}

	rates, err := c.fetchRates(ctx)
	if err != nil {
		slog.Error("failed to fetch exchange rates", "error", err)
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrRateUnavailable, err)
	}

	rate, ok := rates[currency]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: no rate for %s", pkgerrors.ErrRateUnavailable, currency)
	}

	for code, r := range rates {
		if r > 0 {
			if err := c.redis.Set(ctx, "fxrate:"+code, strconv.FormatFloat(r, 'f', -1, 64), rateCacheTTL); err != nil {
				slog.Warn("failed to cache exchange rate", "currency", code, "error", err)
			}
		}
	}

	return rate, nil
}

func (c *Client) fetchRates(ctx context.Context) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s", c.apiURL, c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates           map[string]float64 `json:"rates"`
		ConversionRates map[string]float64 `json:"conversion_rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	rates := body.Rates
	if len(rates) == 0 {
		rates = body.ConversionRates
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("rate API returned no rates")
	}
	return rates, nil
}
