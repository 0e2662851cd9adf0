package healthmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"grantlens/domain/core"
	"grantlens/internal/normalize"
	"grantlens/ports"
)

// sleepFunc is the sleep used between retries (injectable for tests)
var sleepFunc = time.Sleep

// observation is the service's wire shape for one metric value
type observation struct {
	State      string  `json:"state"`
	Year       int     `json:"year"`
	Metric     string  `json:"metric"`
	Value      *string `json:"value"`
	Suppressed bool    `json:"suppressed"`
	ReportedAt string  `json:"reported_at"`
}

// Config tunes the metrics client
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	CacheTTL          time.Duration
	UserAgent         string
}

// Client fetches outcome observations from the external public-health
// metrics service. Requests are rate limited and responses cached for the
// configured TTL; transient failures retry with exponential backoff, and
// exhausting retries is fatal for the run since a partial outcome pull
// cannot produce a valid merge.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *gocache.Cache
}

// NewClient creates a metrics client from configuration
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "grantlens/1.0"
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// FetchOutcomes pulls every (metric, year, state) combination in the
// query, one request per combination
func (c *Client) FetchOutcomes(ctx context.Context, query ports.OutcomeQuery) ([]normalize.RawOutcome, error) {
	start := time.Now()
	var raws []normalize.RawOutcome
	row := 0

	for _, metric := range query.Metrics {
		for year := query.YearFrom; year <= query.YearTo; year++ {
			for _, state := range query.States {
				obs, err := c.fetch(ctx, string(metric), year, state)
				if err != nil {
					return nil, core.NewExternalServiceError("health metrics", err)
				}
				for _, o := range obs {
					row++
					raws = append(raws, toRaw(row, o))
				}
			}
		}
	}

	log.Printf("[HealthMetrics] fetched %d observations in %v", len(raws), time.Since(start))
	return raws, nil
}

// fetch retrieves one page, serving repeats from the response cache
func (c *Client) fetch(ctx context.Context, metric string, year core.FiscalYear, state string) ([]observation, error) {
	key := fmt.Sprintf("%s|%d|%s", metric, year, state)
	if cached, found := c.cache.Get(key); found {
		return cached.([]observation), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			log.Printf("[HealthMetrics] retry %d for %s after %v", attempt, key, backoff)
			sleepFunc(backoff)
		}

		obs, retryable, err := c.doRequest(ctx, metric, year, state)
		if err == nil {
			c.cache.Set(key, obs, gocache.DefaultExpiration)
			return obs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// doRequest performs one HTTP round trip. The second return reports
// whether the failure is transient: 5xx and 429 responses and transport
// errors retry, while 4xx responses and malformed JSON do not.
func (c *Client) doRequest(ctx context.Context, metric string, year core.FiscalYear, state string) ([]observation, bool, error) {
	endpoint := fmt.Sprintf("%s/v1/metrics?%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.Values{
		"metric": {metric},
		"year":   {strconv.Itoa(int(year))},
		"state":  {state},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("status %d from metrics service", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("status %d from metrics service", resp.StatusCode)
	}

	var obs []observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, false, fmt.Errorf("decode metrics response: %w", err)
	}
	return obs, false, nil
}

// toRaw converts a wire observation into a raw row, preserving the
// suppression indicator through normalization
func toRaw(row int, o observation) normalize.RawOutcome {
	value := ""
	if o.Value != nil {
		value = *o.Value
	}
	reported, err := time.Parse(time.RFC3339, o.ReportedAt)
	if err != nil {
		reported = time.Time{}
	}
	return normalize.RawOutcome{
		Row:        row,
		Geography:  o.State,
		Year:       o.Year,
		Metric:     o.Metric,
		Value:      value,
		Suppressed: o.Suppressed,
		ReportedAt: reported,
	}
}
