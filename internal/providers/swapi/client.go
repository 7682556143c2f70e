package swapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"starcatalog/searchservice/internal/domain"
	"starcatalog/searchservice/internal/metrics"
)

const (
	defaultBaseURL   = "https://swapi.dev/api"
	defaultUserAgent = "star-catalog-search/1.0"
	maxBodyBytes     = 4 << 20

	// StatusNetworkFailure marks an UpstreamFetchError that never got an HTTP response.
	StatusNetworkFailure = 0
)

// UpstreamFetchError reports a transport failure or a non-2xx upstream response.
type UpstreamFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	if e.Status == StatusNetworkFailure {
		return fmt.Sprintf("upstream request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream HTTP %d for %s: %v", e.Status, e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

func (e *UpstreamFetchError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	Logger    *slog.Logger
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// ListPayload is a collection page. swapi.dev names the item array "results";
// swapi.tech filtered searches name it "result".
type ListPayload struct {
	Count    *int              `json:"count,omitempty"`
	Next     *string           `json:"next,omitempty"`
	Previous *string           `json:"previous,omitempty"`
	Results  []json.RawMessage `json:"results,omitempty"`
	Result   []json.RawMessage `json:"result,omitempty"`
}

func (p ListPayload) Items() []json.RawMessage {
	if p.Results != nil {
		return p.Results
	}
	return p.Result
}

func (p ListPayload) HasNext() bool {
	return p.Next != nil && strings.TrimSpace(*p.Next) != ""
}

func (p ListPayload) HasPrevious() bool {
	return p.Previous != nil && strings.TrimSpace(*p.Previous) != ""
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		logger:    logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchCollection requests one page of a collection, filtered by term when non-empty.
func (c *Client) FetchCollection(ctx context.Context, kind domain.ResourceKind, term string, page int) (ListPayload, error) {
	if !kind.Valid() {
		return ListPayload{}, domain.ErrInvalidResource
	}
	if page < 1 {
		page = 1
	}
	params := url.Values{"page": {strconv.Itoa(page)}}
	if term = strings.TrimSpace(term); term != "" {
		params.Set(kind.QueryKey(), term)
	}
	reqURL := c.baseURL + "/" + string(kind) + "/?" + params.Encode()

	body, err := c.get(ctx, "collection", reqURL)
	if err != nil {
		return ListPayload{}, err
	}
	var payload ListPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ListPayload{}, &UpstreamFetchError{URL: reqURL, Status: http.StatusOK, Err: fmt.Errorf("decode list payload: %w", err)}
	}
	return payload, nil
}

func (c *Client) FetchByID(ctx context.Context, kind domain.ResourceKind, id string) (json.RawMessage, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidResource
	}
	reqURL := c.baseURL + "/" + string(kind) + "/" + url.PathEscape(strings.TrimSpace(id))
	return c.get(ctx, "detail", reqURL)
}

func (c *Client) FetchByURL(ctx context.Context, rawURL string) (json.RawMessage, error) {
	return c.get(ctx, "url", rawURL)
}

func (c *Client) get(ctx context.Context, operation, rawURL string) (json.RawMessage, error) {
	startedAt := time.Now()
	body, err := c.do(ctx, rawURL)
	metrics.UpstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(startedAt).Seconds())
	metrics.UpstreamRequestsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	return body, err
}

func (c *Client) do(ctx context.Context, rawURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Status: StatusNetworkFailure, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Status: StatusNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		message := strings.TrimSpace(string(snippet))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamFetchError{URL: rawURL, Status: resp.StatusCode, Err: errors.New(message)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Status: StatusNetworkFailure, Err: fmt.Errorf("read body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &UpstreamFetchError{URL: rawURL, Status: resp.StatusCode, Err: errors.New("response is not valid json")}
	}
	return json.RawMessage(body), nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var upstreamErr *UpstreamFetchError
	if errors.As(err, &upstreamErr) {
		if upstreamErr.Status == StatusNetworkFailure {
			return "network_error"
		}
		return strconv.Itoa(upstreamErr.Status)
	}
	return "error"
}
