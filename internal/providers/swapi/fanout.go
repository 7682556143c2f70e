package swapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"starcatalog/searchservice/internal/metrics"
)

// FetchMany fetches every URL concurrently and returns the successful payloads keyed
// by URL. A failed fetch only removes its own URL from the result; it never fails the
// batch. Duplicate URLs are requested once.
func (c *Client) FetchMany(ctx context.Context, urls []string) map[string]json.RawMessage {
	unique := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		unique = append(unique, raw)
	}
	metrics.FanOutSize.Observe(float64(len(unique)))

	results := make(map[string]json.RawMessage, len(unique))
	if len(unique) == 0 {
		return results
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	for _, target := range unique {
		group.Go(func() error {
			body, err := c.get(ctx, "related", target)
			if err != nil {
				metrics.FanOutFailuresTotal.Inc()
				c.logger.Debug("related fetch dropped",
					slog.String("url", target),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			results[target] = body
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return results
}
