// Package server exposes the analysis lifecycle over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/analysis"
	"github.com/sells-group/expose-cli/internal/document"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/translate"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API.
type Server struct {
	svc         *analysis.Service
	translator  *translate.Translator
	pinger      Pinger
	corsOrigins []string
	maxUpload   int64
	timeout     time.Duration
}

// Option configures the server.
type Option func(*Server)

// WithTranslator enables POST /api/translate.
func WithTranslator(t *translate.Translator) Option {
	return func(s *Server) { s.translator = t }
}

// WithPinger makes /health check the store.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxUploadBytes caps the accepted document size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Server.
func New(svc *analysis.Service, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		corsOrigins: []string{"*"},
		maxUpload:   document.DefaultMaxBytes,
		timeout:     2 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/translate", s.handleTranslate)

		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handleSetAddress)
				r.Delete("/", s.handleDelete)
				r.Post("/run", s.handleRun)
				r.Get("/poll", s.handlePoll)
				r.Get("/amenities.geojson", s.handleAmenitiesGeoJSON)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			zap.L().Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	FileName  string    `json:"file_name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing on top of the document itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	a, err := s.svc.Upload(r.Context(), data, r.FormValue("address"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:        a.ID,
		Status:    string(a.Status),
		FileName:  a.Document.Filename,
		Address:   a.Address,
		CreatedAt: a.CreatedAt,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := s.svc.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.AnalysisSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSetAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := s.svc.SetAddress(r.Context(), chi.URLParam(r, "id"), req.Address)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	// The body is optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.svc.Start(r.Context(), chi.URLParam(r, "id"), req.Address)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Poll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAmenitiesGeoJSON(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if a.Amenities == nil {
		writeError(w, http.StatusNotFound, "no amenities for this analysis")
		return
	}
	body, err := a.Amenities.GeoJSON()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if !s.translator.Configured() {
		writeError(w, http.StatusServiceUnavailable, "translation is not configured")
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	lang, err := translate.ParseLanguage(req.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, `targetLanguage must be "en" or "de"`)
		return
	}

	out, err := s.translator.Text(r.Context(), req.Text, lang)
	switch {
	case errors.Is(err, translate.ErrEmpty):
		writeError(w, http.StatusBadRequest, "text is required")
		return
	case err != nil:
		zap.L().Error("translation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "translation failed")
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: out})
}

// statusFor maps an orchestrator error kind to an HTTP status.
func statusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindNotFound:
		return http.StatusNotFound
	case analysis.KindInvalid:
		return http.StatusBadRequest
	case analysis.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case analysis.KindUnavailable:
		return http.StatusServiceUnavailable
	case analysis.KindAdapterFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := analysis.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSONError(w, status, msg, kind.String())
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSONError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
