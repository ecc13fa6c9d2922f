package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 10 * time.Minute

// Client fetches a single conversion rate from the exchange-rate service.
// Rates are cached in Redis so the one-shot currency fallback during
// checkout does not hammer the rate API.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *redis.Client
}

// NewClient creates a rate client. cache may be nil, in which case every
// lookup goes to the rate service.
func NewClient(baseURL string, timeout time.Duration, cache *redis.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
	}
}

// Rate returns the conversion rate from one currency to another.
func (c *Client) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return 1, nil
	}

	key := "fxrate:" + from + ":" + to
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
			if rate, perr := strconv.ParseFloat(cached, 64); perr == nil {
				return rate, nil
			}
		}
	}

	url := fmt.Sprintf("%s/rates?from=%s&to=%s", c.baseURL, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate %s->%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate service returned status %d for %s->%s", resp.StatusCode, from, to)
	}

	var body struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if body.Rate <= 0 {
		return 0, fmt.Errorf("rate service returned non-positive rate %f for %s->%s", body.Rate, from, to)
	}

	if c.cache != nil {
		// Cache failures must not block a payment; next lookup just pays
		// the HTTP round trip again.
		if err := c.cache.Set(ctx, key, strconv.FormatFloat(body.Rate, 'f', -1, 64), cacheTTL).Err(); err != nil {
			slog.Warn("Failed to cache exchange rate", "key", key, "err", err)
		}
	}
	return body.Rate, nil
}

// Convert applies a rate to a minor-unit amount, rounding half away from
// zero.
func Convert(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}
