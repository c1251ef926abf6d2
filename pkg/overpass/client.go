// Package overpass finds points of interest around a coordinate using the
// OpenStreetMap Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultRadius is the search radius in meters when none is given.
	DefaultRadius = 2000
)

// Client queries nearby amenities.
type Client interface {
	FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int) (*Result, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the interpreter endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewClient creates an Overpass client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("overpass", "interpreter")
	if c.breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.OnStateChange = resilience.BreakerLogger("overpass")
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
	return c
}

type element struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags Tags `json:"tags"`
}

type interpreterResponse struct {
	Elements []element `json:"elements"`
}

// FetchNearby queries all categories in one request and groups the answer.
// While the circuit is open it fails fast with resilience.ErrCircuitOpen.
func (c *httpClient) FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int) (*Result, error) {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadius
	}
	query := BuildQuery(lat, lon, radiusMeters)

	resp, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*interpreterResponse, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*interpreterResponse, error) {
			return c.post(ctx, query)
		})
	})
	if err != nil {
		return nil, err
	}

	items := make([]Amenity, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		if a, ok := toAmenity(lat, lon, el); ok {
			items = append(items, a)
		}
	}

	result := Group(Point{Lat: lat, Lon: lon}, items, c.now().UTC())
	zap.L().Debug("overpass: amenities grouped",
		zap.Int("elements", len(resp.Elements)),
		zap.Int("kept", result.Total()),
	)
	return result, nil
}

func (c *httpClient) post(ctx context.Context, query string) (*interpreterResponse, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("overpass", resp); err != nil {
		return nil, eris.Wrap(err, "overpass: interpreter")
	}

	var out interpreterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}
	return &out, nil
}

// toAmenity converts a raw element. Elements that match no rule or carry no
// coordinates are rejected.
func toAmenity(originLat, originLon float64, el element) (Amenity, bool) {
	category := Categorize(el.Tags)
	if category == "" {
		return Amenity{}, false
	}

	var lat, lon float64
	switch {
	case el.Lat != nil && el.Lon != nil:
		lat, lon = *el.Lat, *el.Lon
	case el.Center != nil:
		lat, lon = el.Center.Lat, el.Center.Lon
	default:
		return Amenity{}, false
	}

	return Amenity{
		Type:     Type(el.Tags),
		Name:     Name(el.Tags),
		Lat:      lat,
		Lon:      lon,
		Distance: Distance(originLat, originLon, lat, lon),
		Category: category,
	}, true
}

type selector struct {
	kinds string // "n" node, "w" way, "nw" both
	key   string
	value string
}

var selectors = []selector{
	{"nw", "amenity", "school"},
	{"nw", "amenity", "kindergarten"},
	{"nw", "shop", "supermarket"},
	{"n", "shop", "grocery"},
	{"n", "shop", "convenience"},
	{"n", "amenity", "doctors"},
	{"n", "amenity", "clinic"},
	{"w", "amenity", "hospital"},
	{"n", "amenity", "pharmacy"},
	{"n", "public_transport", "stop_position"},
	{"n", "highway", "bus_stop"},
	{"n", "railway", "station"},
	{"n", "railway", "tram_stop"},
	{"n", "station", "subway"},
	{"n", "amenity", "restaurant"},
	{"n", "amenity", "cafe"},
	{"nw", "leisure", "park"},
	{"n", "leisure", "playground"},
	{"n", "amenity", "bank"},
	{"n", "amenity", "atm"},
}

// BuildQuery renders the Overpass QL union for every category around the point.
func BuildQuery(lat, lon float64, radiusMeters int) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	around := fmt.Sprintf("(around:%d,%g,%g)", radiusMeters, lat, lon)
	for _, s := range selectors {
		if strings.Contains(s.kinds, "n") {
			fmt.Fprintf(&b, "  node[%q=%q]%s;\n", s.key, s.value, around)
		}
		if strings.Contains(s.kinds, "w") {
			fmt.Fprintf(&b, "  way[%q=%q]%s;\n", s.key, s.value, around)
		}
	}
	b.WriteString(");\nout center;")
	return b.String()
}
