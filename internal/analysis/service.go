// Package analysis drives a listing analysis from upload to a normalized
// result. Each call is an independent unit of work; completion of the
// external task is discovered only when a caller polls.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/document"
	"github.com/sells-group/expose-cli/internal/metrics"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/store"
	"github.com/sells-group/expose-cli/pkg/manus"
	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/nominatim"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// Config bounds the external calls made by the service.
type Config struct {
	EnrichmentTimeout time.Duration
	TaskTimeout       time.Duration
	StatusTimeout     time.Duration
	// StaleProcessing is how long a processing record without a task id
	// stays claimed before start may take it over.
	StaleProcessing time.Duration
	RadiusMeters    int
	NewsLimit       int
	MaxUploadBytes  int
}

// DefaultConfig returns the production timeouts.
func DefaultConfig() Config {
	return Config{
		EnrichmentTimeout: 15 * time.Second,
		TaskTimeout:       60 * time.Second,
		StatusTimeout:     20 * time.Second,
		StaleProcessing:   10 * time.Minute,
		RadiusMeters:      overpass.DefaultRadius,
		NewsLimit:         8,
		MaxUploadBytes:    document.DefaultMaxBytes,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.EnrichmentTimeout <= 0 {
		c.EnrichmentTimeout = d.EnrichmentTimeout
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	if c.StaleProcessing <= 0 {
		c.StaleProcessing = d.StaleProcessing
	}
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = d.RadiusMeters
	}
	if c.NewsLimit <= 0 {
		c.NewsLimit = d.NewsLimit
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	return c
}

// Deps are the external collaborators. Geocoder, Amenities and News are
// optional; a nil adapter skips its enrichment branch.
type Deps struct {
	Store     store.Store
	Tasks     manus.Client
	Geocoder  nominatim.Client
	Amenities overpass.Client
	News      newsapi.Client
}

// Service is the analysis lifecycle orchestrator.
type Service struct {
	store     store.Store
	tasks     manus.Client
	geocoder  nominatim.Client
	amenities overpass.Client
	news      newsapi.Client
	cfg       Config
	now       func() time.Time
}

// New creates a Service.
func New(deps Deps, cfg Config) *Service {
	return &Service{
		store:     deps.Store,
		tasks:     deps.Tasks,
		geocoder:  deps.Geocoder,
		amenities: deps.Amenities,
		news:      deps.News,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Upload validates data as a listing PDF and stores a new analysis.
func (s *Service) Upload(ctx context.Context, data []byte, address string) (*model.Analysis, error) {
	const op = "upload"
	pages, err := document.Validate(data, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, newError(KindInvalid, op, err)
	}
	doc := model.Document{Filename: document.GenerateFilename(s.now()), Data: data}
	a, err := s.store.CreateAnalysis(ctx, doc, strings.TrimSpace(address))
	if err != nil {
		return nil, eris.Wrap(err, op)
	}
	zap.L().Info("analysis uploaded",
		zap.String("analysis_id", a.ID),
		zap.String("file_name", doc.Filename),
		zap.Int("bytes", len(data)),
		zap.Int("pages", pages),
	)
	return a, nil
}

// Get returns one analysis.
func (s *Service) Get(ctx context.Context, id string) (*model.Analysis, error) {
	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, storeError("get", err)
	}
	return a, nil
}

// List returns summaries, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]model.AnalysisSummary, error) {
	out, err := s.store.ListAnalyses(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "list")
	}
	return out, nil
}

// Delete removes an analysis in any state.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteAnalysis(ctx, id); err != nil {
		return storeError("delete", err)
	}
	zap.L().Info("analysis deleted", zap.String("analysis_id", id))
	return nil
}

// SetAddress changes the address of an analysis that has not completed.
func (s *Service) SetAddress(ctx context.Context, id, address string) (*model.Analysis, error) {
	const op = "set address"
	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}
	if a.Status == model.StatusCompleted {
		return nil, newError(KindPreconditionFailed, op, eris.Errorf("analysis %s is completed", id))
	}
	address = strings.TrimSpace(address)
	if err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{Address: &address}); err != nil {
		return nil, storeError(op, err)
	}
	a.Address = address
	return a, nil
}

// TaskURL is the browser link for a task, or "" without one.
func (s *Service) TaskURL(taskID string) string {
	if taskID == "" || s.tasks == nil {
		return ""
	}
	return s.tasks.TaskURL(taskID)
}

func storeError(op string, err error) error {
	if store.IsNotFound(err) {
		return newError(KindNotFound, op, err)
	}
	return eris.Wrap(err, op)
}

// markFailed records a failure for id. It runs on a context detached from
// the caller so an abandoned request still leaves the record restartable.
func (s *Service) markFailed(ctx context.Context, id, stage string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	msg := stage + " failed"
	if cause != nil {
		msg = cause.Error()
	}
	err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{
		Status: model.Ptr(model.StatusFailed),
		Error:  &msg,
	})
	metrics.AnalysesFailed.WithLabelValues(stage).Inc()

	log := zap.L().With(zap.String("analysis_id", id), zap.String("stage", stage))
	if err != nil {
		log.Error("analysis: could not record failure", zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	log.Warn("analysis failed", zap.NamedError("cause", cause))
}
