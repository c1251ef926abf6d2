package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/analysis"
	"github.com/sells-group/expose-cli/internal/cache"
	"github.com/sells-group/expose-cli/internal/resilience"
	"github.com/sells-group/expose-cli/internal/store"
	"github.com/sells-group/expose-cli/internal/translate"
	"github.com/sells-group/expose-cli/pkg/anthropic"
	"github.com/sells-group/expose-cli/pkg/manus"
	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/nominatim"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// appStore is a Store that can report its health.
type appStore interface {
	store.Store
	Ping(ctx context.Context) error
}

func initStore(ctx context.Context) (appStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "expose.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (appStore, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// appEnv bundles the wired service and what must be released with it.
type appEnv struct {
	Store   appStore
	Service *analysis.Service
	closers []func()
}

func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	e := &appEnv{Store: st}
	e.closers = append(e.closers, func() { st.Close() }) //nolint:errcheck

	geo, closeCache := initGeocoder(ctx)
	if closeCache != nil {
		e.closers = append(e.closers, closeCache)
	}

	var news newsapi.Client
	if cfg.News.Key != "" {
		news = newsapi.NewClient(cfg.News.Key,
			newsapi.WithBaseURL(cfg.News.BaseURL),
			newsapi.WithLanguage(cfg.News.Language),
		)
	} else {
		zap.L().Debug("news lookups disabled: no news.key")
	}

	e.Service = analysis.New(analysis.Deps{
		Store:     st,
		Tasks:     initTasks(),
		Geocoder:  geo,
		Amenities: overpass.NewClient(
			overpass.WithBaseURL(cfg.Overpass.BaseURL),
			overpass.WithBreaker(newBreaker("overpass")),
		),
		News:      news,
	}, analysisConfig())
	return e, nil
}

func analysisConfig() analysis.Config {
	a := cfg.Analysis
	return analysis.Config{
		EnrichmentTimeout: a.EnrichmentTimeout(),
		TaskTimeout:       a.TaskTimeout(),
		StatusTimeout:     a.StatusTimeout(),
		StaleProcessing:   a.StaleProcessing(),
		RadiusMeters:      cfg.Overpass.RadiusMeters,
		NewsLimit:         cfg.News.Limit,
		MaxUploadBytes:    int(a.MaxUploadBytes()),
	}
}

func initTasks() manus.Client {
	return manus.NewClient(cfg.Manus.Key,
		manus.WithBaseURL(cfg.Manus.BaseURL),
		manus.WithTaskURLBase(cfg.Manus.TaskURLBase),
		manus.WithProjectID(cfg.Manus.ProjectID),
		manus.WithRetry(resilience.DefaultRetryConfig()),
	)
}

// newBreaker builds a circuit breaker for an enrichment service from the
// circuit config section.
func newBreaker(service string) *resilience.CircuitBreaker {
	bc := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	bc.OnStateChange = resilience.BreakerLogger(service)
	return resilience.NewCircuitBreaker(bc)
}

// initGeocoder builds the Nominatim client, fronted by Redis when
// redis.url is set. A Redis outage disables the cache, not geocoding.
func initGeocoder(ctx context.Context) (nominatim.Client, func()) {
	opts := []nominatim.Option{
		nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
		nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
		nominatim.WithRateLimit(cfg.Nominatim.RPS),
		nominatim.WithBreaker(newBreaker("nominatim")),
	}
	if cfg.Redis.URL == "" {
		return nominatim.NewClient(opts...), nil
	}

	ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
	gc, err := cache.NewGeocodeCache(ctx, cfg.Redis.URL, ttl)
	if err != nil {
		zap.L().Warn("geocode cache disabled", zap.Error(err))
		return nominatim.NewClient(opts...), nil
	}
	opts = append(opts, nominatim.WithCache(gc))
	return nominatim.NewClient(opts...), func() { gc.Close() } //nolint:errcheck
}

// initTranslator returns nil when no anthropic.key is configured.
func initTranslator() *translate.Translator {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return translate.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
}
