package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"starcatalog/searchservice/internal/domain"
	"starcatalog/searchservice/internal/providers/swapi"
)

const (
	// DefaultLimit applies when the caller supplies no limit at all.
	DefaultLimit = 10
	MaxLimit     = 50
)

var ErrUpstream = errors.New("upstream catalog error")

// Upstream is the catalog API as seen by the aggregator.
type Upstream interface {
	FetchCollection(ctx context.Context, kind domain.ResourceKind, term string, page int) (swapi.ListPayload, error)
	FetchByID(ctx context.Context, kind domain.ResourceKind, id string) (json.RawMessage, error)
	FetchMany(ctx context.Context, urls []string) map[string]json.RawMessage
}

// QueryLogger receives one entry per successful search.
type QueryLogger interface {
	LogSearch(ctx context.Context, entry domain.QueryLogEntry) error
}

type Service struct {
	upstream Upstream
	queries  QueryLogger
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithQueryLogger(queries QueryLogger) ServiceOption {
	return func(s *Service) {
		s.queries = queries
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(upstream Upstream, opts ...ServiceOption) *Service {
	svc := &Service{
		upstream: upstream,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func wrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// NormalizePaging clamps page to >= 1 and limit to [1, MaxLimit]. A limit of 0 is
// a value like any other and becomes 1; callers apply DefaultLimit for a missing limit.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	if !request.Resource.Valid() {
		return domain.SearchResponse{}, domain.ErrInvalidResource
	}
	page, limit := NormalizePaging(request.Page, request.Limit)
	term := strings.TrimSpace(request.Term)

	startedAt := time.Now()
	payload, err := s.upstream.FetchCollection(ctx, request.Resource, term, page)
	if err != nil {
		return domain.SearchResponse{}, wrapUpstream(err)
	}
	elapsedMs := float64(time.Since(startedAt).Microseconds()) / 1000

	rawItems := payload.Items()
	var termRef *string
	if term != "" {
		termRef = &term
	}
	s.logSearch(ctx, domain.QueryLogEntry{
		Resource:       request.Resource,
		Term:           termRef,
		Page:           page,
		Limit:          limit,
		ResultCount:    len(rawItems),
		ResponseTimeMs: elapsedMs,
		SearchedAt:     s.now().UTC(),
	})

	items := make([]domain.SearchListItem, 0, len(rawItems))
	for _, raw := range rawItems {
		items = append(items, NormalizeListItem(request.Resource, raw))
	}

	return domain.SearchResponse{
		Data: items,
		Meta: domain.SearchMeta{
			Page:           page,
			PerPage:        limit,
			Total:          len(items),
			Resource:       request.Resource,
			Query:          termRef,
			HasNext:        payload.HasNext(),
			HasPrevious:    payload.HasPrevious(),
			ResponseTimeMs: roundMs(elapsedMs),
		},
	}, nil
}

func (s *Service) logSearch(ctx context.Context, entry domain.QueryLogEntry) {
	if s.queries == nil {
		return
	}
	if err := s.queries.LogSearch(ctx, entry); err != nil {
		s.logger.Warn("query log write failed",
			slog.String("resource", string(entry.Resource)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) PersonDetail(ctx context.Context, id string) (domain.PersonDetail, error) {
	raw, urls, related, err := s.fetchDetail(ctx, domain.ResourcePeople, id)
	if err != nil {
		return domain.PersonDetail{}, err
	}
	movies := make([]domain.MovieRef, 0, len(urls))
	for _, filmURL := range urls {
		body, ok := related[filmURL]
		if !ok {
			continue
		}
		movies = append(movies, NormalizeMovieRef(filmURL, body))
	}
	return NormalizePersonDetail(id, raw, movies), nil
}

func (s *Service) FilmDetail(ctx context.Context, id string) (domain.FilmDetail, error) {
	raw, urls, related, err := s.fetchDetail(ctx, domain.ResourceFilms, id)
	if err != nil {
		return domain.FilmDetail{}, err
	}
	characters := make([]domain.CharacterRef, 0, len(urls))
	for _, characterURL := range urls {
		body, ok := related[characterURL]
		if !ok {
			continue
		}
		characters = append(characters, NormalizeCharacterRef(characterURL, body))
	}
	return NormalizeFilmDetail(id, raw, characters), nil
}

// fetchDetail loads the primary entity and fans out to its related URLs. The URL
// list is returned in payload order; related holds only the fetches that succeeded.
func (s *Service) fetchDetail(ctx context.Context, kind domain.ResourceKind, id string) (json.RawMessage, []string, map[string]json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, nil, domain.ErrNotFound
	}

	raw, err := s.upstream.FetchByID(ctx, kind, id)
	if err != nil {
		var upstreamErr *swapi.UpstreamFetchError
		if errors.As(err, &upstreamErr) && upstreamErr.NotFound() {
			return nil, nil, nil, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
		}
		return nil, nil, nil, wrapUpstream(err)
	}
	if isEmptyPayload(raw) {
		return nil, nil, nil, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}

	urls := decodeEntity(raw).relatedURLs(kind)
	related := s.upstream.FetchMany(ctx, urls)
	if dropped := countMissing(urls, related); dropped > 0 {
		s.logger.Debug("related entities partially failed",
			slog.String("resource", string(kind)),
			slog.String("id", id),
			slog.String("field", kind.RelatedField()),
			slog.Int("requested", len(urls)),
			slog.Int("dropped", dropped),
		)
	}
	return raw, urls, related, nil
}

func countMissing(urls []string, related map[string]json.RawMessage) int {
	missing := 0
	for _, u := range urls {
		if _, ok := related[u]; !ok {
			missing++
		}
	}
	return missing
}

func roundMs(value float64) float64 {
	return math.Round(value*100) / 100
}
