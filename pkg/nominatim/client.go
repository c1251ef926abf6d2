// Package nominatim resolves free-text addresses with the OpenStreetMap
// Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/expose-cli/internal/resilience"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "expose-cli/1.0"
)

// Client resolves addresses to places.
type Client interface {
	// Resolve returns the best match for address, or nil when nothing
	// matched or the service could not be reached. It errors only for a
	// blank address.
	Resolve(ctx context.Context, address string) (*Place, error)
}

// Place is a geocoded location.
type Place struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Address is the structured part of a Nominatim match.
type Address struct {
	City     string `json:"city,omitempty"`
	Town     string `json:"town,omitempty"`
	Village  string `json:"village,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Locality returns the city, town or village, whichever is set first.
func (p *Place) Locality() string {
	if p == nil {
		return ""
	}
	switch {
	case p.Address.City != "":
		return p.Address.City
	case p.Address.Town != "":
		return p.Address.Town
	default:
		return p.Address.Village
	}
}

// Cache stores resolved places by normalized address.
type Cache interface {
	Get(ctx context.Context, key string) (*Place, error)
	Set(ctx context.Context, key string, p *Place) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Nominatim host.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithUserAgent sets the User-Agent header. The public instance rejects
// requests without one.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit sets the requests-per-second ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithCache enables a lookup cache in front of the API.
func WithCache(cache Cache) Option {
	return func(c *httpClient) { c.cache = cache }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     Cache
	breaker   *resilience.CircuitBreaker
}

// NewClient creates a Nominatim client limited to one request per second.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.OnStateChange = resilience.BreakerLogger("nominatim")
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
	return c
}

type searchResult struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

func (c *httpClient) Resolve(ctx context.Context, address string) (*Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, eris.New("nominatim: empty address")
	}

	key := CacheKey(address)
	if c.cache != nil {
		if p, err := c.cache.Get(ctx, key); err != nil {
			zap.L().Debug("nominatim: cache read failed", zap.Error(err))
		} else if p != nil {
			return p, nil
		}
	}

	p, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Place, error) {
		return c.search(ctx, address)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		zap.L().Debug("nominatim: circuit open, lookup skipped", zap.String("address", address))
		return nil, nil
	case err != nil:
		zap.L().Warn("nominatim: lookup failed", zap.String("address", address), zap.Error(err))
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, p); err != nil {
			zap.L().Debug("nominatim: cache write failed", zap.Error(err))
		}
	}
	return p, nil
}

func (c *httpClient) search(ctx context.Context, address string) (*Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"q":              {address},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("nominatim", resp); err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse response")
	}
	if len(results) == 0 {
		return nil, nil
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: parse lat %q", first.Lat)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: parse lon %q", first.Lon)
	}
	return &Place{
		Lat:         lat,
		Lon:         lon,
		DisplayName: first.DisplayName,
		Address:     first.Address,
	}, nil
}
