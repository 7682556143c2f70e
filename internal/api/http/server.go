package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"starcatalog/searchservice/internal/catalog"
	"starcatalog/searchservice/internal/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CatalogService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	PersonDetail(ctx context.Context, id string) (domain.PersonDetail, error)
	FilmDetail(ctx context.Context, id string) (domain.FilmDetail, error)
}

type StatsService interface {
	CurrentStats(ctx context.Context) (domain.StatsSnapshot, error)
	Recompute(ctx context.Context) (domain.StatsSnapshot, error)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	catalog   CatalogService
	stats     StatsService
	checks    map[string]HealthCheck
	logger    *slog.Logger
	rateRPS   float64
	rateBurst int
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithStats(stats StatsService) ServerOption {
	return func(s *Server) {
		s.stats = stats
	}
}

func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		if check != nil {
			s.checks[name] = check
		}
	}
}

// WithRateLimit sets the global token bucket. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog:   catalogService,
		checks:    make(map[string]HealthCheck),
		logger:    slog.Default(),
		rateRPS:   50,
		rateBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /people/{id}", s.handlePerson)
	mux.HandleFunc("GET /films/{id}", s.handleFilm)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /stats/recompute", s.handleStatsRecompute)
	var handler http.Handler = otelhttp.NewHandler(observeMiddleware(s.logger, mux), "catalog-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	if s.rateRPS > 0 {
		handler = rateLimitMiddleware(s.rateRPS, s.rateBurst, handler)
	}
	return recoveryMiddleware(s.logger, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if status != http.StatusOK {
		payload["status"] = "degraded"
	}
	if len(checks) > 0 {
		payload["checks"] = checks
	}
	writeJSON(w, status, payload)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	q := r.URL.Query()

	resource, err := domain.ParseResourceKind(resourceParam(q))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	term := strings.TrimSpace(firstParam(q.Get("q"), q.Get("query")))
	if len(term) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	page, err := parseInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}
	limit, err := parseInt(r, "limit", catalog.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	page, limit = catalog.NormalizePaging(page, limit)

	response, err := s.catalog.Search(r.Context(), domain.SearchRequest{
		Resource: resource,
		Term:     term,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("resource", string(resource)),
			slog.String("query", truncate(term, 80)),
			slog.String("error", err.Error()),
		)
		s.writeServiceError(w, err, "search failed")
		return
	}

	s.logger.Info("search completed",
		slog.String("resource", string(resource)),
		slog.String("query", truncate(term, 80)),
		slog.Int("page", page),
		slog.Int("results", response.Meta.Total),
		slog.Float64("responseTimeMs", response.Meta.ResponseTimeMs),
	)
	writeJSON(w, http.StatusOK, response)
}

type personDetailsBody struct {
	BirthYear string `json:"birthYear"`
	Gender    string `json:"gender"`
	EyeColor  string `json:"eyeColor"`
	HairColor string `json:"hairColor"`
	Height    string `json:"height"`
	Mass      string `json:"mass"`
}

type personResponse struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Details personDetailsBody `json:"details"`
	Movies  []domain.MovieRef `json:"movies"`
}

func toPersonResponse(person domain.PersonDetail) personResponse {
	movies := person.Movies
	if movies == nil {
		movies = []domain.MovieRef{}
	}
	return personResponse{
		ID:   person.ID,
		Name: person.Name,
		Details: personDetailsBody{
			BirthYear: person.BirthYear,
			Gender:    person.Gender,
			EyeColor:  person.EyeColor,
			HairColor: person.HairColor,
			Height:    person.Height,
			Mass:      person.Mass,
		},
		Movies: movies,
	}
}

func (s *Server) handlePerson(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	person, err := s.catalog.PersonDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Person not found")
			return
		}
		s.logger.Warn("person detail failed", slog.String("id", id), slog.String("error", err.Error()))
		s.writeServiceError(w, err, "person lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (s *Server) handleFilm(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	film, err := s.catalog.FilmDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Film not found")
			return
		}
		s.logger.Warn("film detail failed", slog.String("id", id), slog.String("error", err.Error()))
		s.writeServiceError(w, err, "film lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, film)
}

type statsResponse struct {
	Stats        domain.StatsSnapshot `json:"stats"`
	CalculatedAt time.Time            `json:"calculated_at"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.serveStats(w, r, false)
}

func (s *Server) handleStatsRecompute(w http.ResponseWriter, r *http.Request) {
	s.serveStats(w, r, true)
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request, recompute bool) {
	if s.stats == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "stats service is not configured")
		return
	}
	var (
		snapshot domain.StatsSnapshot
		err      error
	)
	if recompute {
		snapshot, err = s.stats.Recompute(r.Context())
	} else {
		snapshot, err = s.stats.CurrentStats(r.Context())
	}
	if err != nil {
		s.logger.Error("stats request failed",
			slog.Bool("recompute", recompute),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: snapshot, CalculatedAt: snapshot.GeneratedAt})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidResource):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// resourceParam defaults to people only when neither resource nor type is present;
// an explicit empty value is rejected by ParseResourceKind.
func resourceParam(q url.Values) string {
	for _, key := range []string{"resource", "type"} {
		if q.Has(key) {
			return q.Get(key)
		}
	}
	return string(domain.ResourcePeople)
}

func firstParam(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
