package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/expose-cli/internal/metrics"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/resilience"
	"github.com/sells-group/expose-cli/pkg/manus"
	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/nominatim"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// enrichment is what the best-effort branches produced. Either field may
// be nil.
type enrichment struct {
	neighborhood *model.Neighborhood
	amenities    *overpass.Result
}

func (e enrichment) empty() bool {
	return e.neighborhood == nil && e.amenities == nil
}

// headlines converts stored news for the task prompt.
func (e enrichment) headlines() []manus.Headline {
	if e.neighborhood == nil {
		return nil
	}
	out := make([]manus.Headline, 0, len(e.neighborhood.News))
	for _, a := range e.neighborhood.News {
		out = append(out, manus.Headline{
			Title:       a.Title,
			PublishedAt: a.PublishedAt,
			Sentiment:   string(a.Sentiment),
		})
	}
	return out
}

// enrich geocodes address and fans out the amenity and news lookups. No
// failure here is returned; each is logged and counted as a skip.
func (s *Service) enrich(ctx context.Context, id, address string) enrichment {
	if address == "" {
		return enrichment{}
	}
	log := zap.L().With(zap.String("analysis_id", id))

	place := s.geocode(ctx, log, address)

	var (
		amen *overpass.Result
		news []newsapi.Article
		g    errgroup.Group
	)
	if place != nil && s.amenities != nil {
		g.Go(func() error {
			amen = s.fetchAmenities(ctx, log, place)
			return nil
		})
	}
	if s.news != nil {
		g.Go(func() error {
			news = s.searchNews(ctx, log, address, place)
			return nil
		})
	}
	_ = g.Wait()

	out := enrichment{amenities: amen}
	if place != nil || len(news) > 0 {
		nb := &model.Neighborhood{
			Address:   address,
			Postcode:  nominatim.ExtractPostcode(address, place),
			News:      news,
			FetchedAt: s.now().UTC(),
		}
		if nb.News == nil {
			nb.News = []newsapi.Article{}
		}
		if place != nil {
			if place.DisplayName != "" {
				nb.Address = place.DisplayName
			}
			nb.City = place.Locality()
			nb.Location = &model.Location{Lat: place.Lat, Lon: place.Lon}
		}
		out.neighborhood = nb
	}
	return out
}

func skip(log *zap.Logger, branch, reason string, err error) {
	metrics.EnrichmentSkipped.WithLabelValues(branch).Inc()
	log.Warn("enrichment skipped",
		zap.String("branch", branch),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *Service) geocode(ctx context.Context, log *zap.Logger, address string) *nominatim.Place {
	if s.geocoder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EnrichmentTimeout)
	defer cancel()

	start := time.Now()
	place, err := s.geocoder.Resolve(ctx, address)
	metrics.ObserveCall("nominatim", start)
	switch {
	case err != nil:
		skip(log, "geocode", "error", err)
		return nil
	case place == nil:
		skip(log, "geocode", "no_match", nil)
		return nil
	}
	return place
}

func (s *Service) fetchAmenities(ctx context.Context, log *zap.Logger, place *nominatim.Place) *overpass.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EnrichmentTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.amenities.FetchNearby(ctx, place.Lat, place.Lon, s.cfg.RadiusMeters)
	metrics.ObserveCall("overpass", start)
	if err != nil {
		reason := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			reason = "circuit_open"
		}
		skip(log, "amenities", reason, err)
		return nil
	}
	return res
}

func (s *Service) searchNews(ctx context.Context, log *zap.Logger, address string, place *nominatim.Place) []newsapi.Article {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EnrichmentTimeout)
	defer cancel()

	q := newsapi.LocalityQuery(place.Locality(), nominatim.ExtractPostcode(address, place), address)
	start := time.Now()
	items := s.news.Search(ctx, q, s.cfg.NewsLimit)
	metrics.ObserveCall("newsapi", start)
	if len(items) == 0 {
		skip(log, "news", "no_results", nil)
		return nil
	}
	return items
}
