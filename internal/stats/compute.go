package stats

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"starcatalog/searchservice/internal/domain"
)

const topQueriesLimit = 5

// Summary is the pre-aggregated form of a query log. Stores that can aggregate
// server-side return it instead of the raw entries.
type Summary struct {
	Total           int
	TotalResponseMs float64
	// Terms may be unsorted and hold more than the top entries; blank terms are excluded.
	Terms     []domain.TermHits
	Resources []domain.ResourceHits
	// Hours is indexed by UTC hour.
	Hours [24]int
}

// Summarizer is implemented by query log stores that aggregate without loading every entry.
// topN bounds Terms; stores must apply the same hits desc, term asc ordering before cutting.
type Summarizer interface {
	Summarize(ctx context.Context, topN int) (Summary, error)
}

// Compute summarizes the full query log as of now. It never mutates entries.
//
// Ties are broken deterministically: terms and resources by name ascending,
// busiest hour by the lowest hour. Hours are read in UTC.
func Compute(entries []domain.QueryLogEntry, now time.Time) domain.StatsSnapshot {
	return FromSummary(Summarize(entries), now)
}

// Summarize folds entries into a Summary with every term kept.
func Summarize(entries []domain.QueryLogEntry) Summary {
	summary := Summary{Total: len(entries)}
	termHits := make(map[string]int)
	resourceHits := make(map[domain.ResourceKind]int)
	for _, entry := range entries {
		if entry.Term != nil && strings.TrimSpace(*entry.Term) != "" {
			termHits[*entry.Term]++
		}
		resourceHits[entry.Resource]++
		summary.Hours[entry.SearchedAt.UTC().Hour()]++
		summary.TotalResponseMs += entry.ResponseTimeMs
	}
	for term, hits := range termHits {
		summary.Terms = append(summary.Terms, domain.TermHits{Term: term, Hits: hits})
	}
	for resource, hits := range resourceHits {
		summary.Resources = append(summary.Resources, domain.ResourceHits{Resource: resource, Hits: hits})
	}
	return summary
}

// FromSummary builds the snapshot: ordering, the top-terms cut, rounding and the
// busiest hour are all decided here so every store yields the same result.
func FromSummary(summary Summary, now time.Time) domain.StatsSnapshot {
	snapshot := domain.StatsSnapshot{
		TotalSearches: summary.Total,
		TopQueries:    append([]domain.TermHits{}, summary.Terms...),
		ByResource:    append([]domain.ResourceHits{}, summary.Resources...),
		GeneratedAt:   now.UTC(),
	}
	if summary.Total == 0 {
		snapshot.TopQueries = []domain.TermHits{}
		snapshot.ByResource = []domain.ResourceHits{}
		return snapshot
	}

	sort.Slice(snapshot.TopQueries, func(i, j int) bool {
		a, b := snapshot.TopQueries[i], snapshot.TopQueries[j]
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		return a.Term < b.Term
	})
	if len(snapshot.TopQueries) > topQueriesLimit {
		snapshot.TopQueries = snapshot.TopQueries[:topQueriesLimit]
	}

	sort.Slice(snapshot.ByResource, func(i, j int) bool {
		a, b := snapshot.ByResource[i], snapshot.ByResource[j]
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		return a.Resource < b.Resource
	})

	avg := math.Round(summary.TotalResponseMs/float64(summary.Total)*100) / 100
	snapshot.AvgResponseMs = &avg

	busiest := domain.HourHits{Hour: 0, Hits: summary.Hours[0]}
	for hour := 1; hour < len(summary.Hours); hour++ {
		if summary.Hours[hour] > busiest.Hits {
			busiest = domain.HourHits{Hour: hour, Hits: summary.Hours[hour]}
		}
	}
	snapshot.BusiestHour = &busiest
	return snapshot
}
