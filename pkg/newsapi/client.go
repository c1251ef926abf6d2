// Package newsapi searches recent local news with NewsAPI.org and labels
// each headline with a keyword sentiment.
package newsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/resilience"
)

const (
	defaultBaseURL  = "https://newsapi.org"
	defaultLanguage = "de"

	// DefaultLimit is the page size used when the caller passes 0.
	DefaultLimit = 10
)

// Article is a news item with its derived sentiment.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	Sentiment   Sentiment `json:"sentiment"`
}

// Client searches news. Search never fails; an empty slice means nothing
// was found or the service was unavailable.
type Client interface {
	Search(ctx context.Context, locality string, limit int) []Article
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithLanguage sets the article language filter.
func WithLanguage(lang string) Option {
	return func(c *httpClient) {
		if lang != "" {
			c.language = lang
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
}

// NewClient creates a NewsAPI client. An empty apiKey yields a client whose
// searches always return nothing.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		language: defaultLanguage,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type everythingResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (c *httpClient) Search(ctx context.Context, locality string, limit int) []Article {
	locality = strings.TrimSpace(locality)
	if c.apiKey == "" || locality == "" {
		return []Article{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	articles, err := c.everything(ctx, locality, limit)
	if err != nil {
		zap.L().Warn("newsapi: search failed", zap.String("locality", locality), zap.Error(err))
		return []Article{}
	}
	return articles
}

func (c *httpClient) everything(ctx context.Context, q string, limit int) ([]Article, error) {
	params := url.Values{
		"q":        {q},
		"language": {c.language},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "newsapi: build request")
	}
	// Header auth keeps the key out of logged URLs.
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "newsapi: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("newsapi", resp); err != nil {
		return nil, err
	}

	var body everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "newsapi: parse response")
	}

	out := make([]Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		published, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			zap.L().Debug("newsapi: unparsable publishedAt, leaving date unset",
				zap.String("url", a.URL),
				zap.String("published_at", a.PublishedAt),
			)
			published = time.Time{}
		}
		out = append(out, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: published,
			Sentiment:   Classify(a.Title),
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LocalityQuery picks the search token for a location: the city when known,
// else the postcode, else the raw address.
func LocalityQuery(city, postcode, address string) string {
	for _, s := range []string{city, postcode, address} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
