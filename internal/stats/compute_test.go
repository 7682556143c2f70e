package stats

import (
	"testing"
	"time"

	"starcatalog/searchservice/internal/domain"
)

func entryAt(resource domain.ResourceKind, term string, ms float64, at time.Time) domain.QueryLogEntry {
	entry := domain.QueryLogEntry{
		Resource:       resource,
		Page:           1,
		Limit:          10,
		ResponseTimeMs: ms,
		SearchedAt:     at,
	}
	if term != "" {
		entry.Term = &term
	}
	return entry
}

func TestComputeEmptyLog(t *testing.T) {
	now := time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC)
	snapshot := Compute(nil, now)
	if snapshot.TotalSearches != 0 {
		t.Fatalf("expected 0 searches, got %d", snapshot.TotalSearches)
	}
	if snapshot.AvgResponseMs != nil {
		t.Fatalf("expected nil average, got %v", *snapshot.AvgResponseMs)
	}
	if snapshot.BusiestHour != nil {
		t.Fatalf("expected nil busiest hour, got %#v", snapshot.BusiestHour)
	}
	if snapshot.TopQueries == nil || snapshot.ByResource == nil {
		t.Fatalf("expected empty arrays, got %#v", snapshot)
	}
	if !snapshot.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected generatedAt: %s", snapshot.GeneratedAt)
	}
}

func TestComputeScenario(t *testing.T) {
	day := time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)
	entries := []domain.QueryLogEntry{
		entryAt(domain.ResourcePeople, "luke", 100, day.Add(10*time.Hour)),
		entryAt(domain.ResourcePeople, "vader", 200, day.Add(10*time.Hour+30*time.Minute)),
		entryAt(domain.ResourceFilms, "hope", 150, day.Add(11*time.Hour)),
	}
	snapshot := Compute(entries, day.Add(12*time.Hour))

	if snapshot.TotalSearches != 3 {
		t.Fatalf("expected 3 searches, got %d", snapshot.TotalSearches)
	}
	if snapshot.AvgResponseMs == nil || *snapshot.AvgResponseMs != 150.0 {
		t.Fatalf("expected avg 150, got %v", snapshot.AvgResponseMs)
	}
	if len(snapshot.ByResource) != 2 ||
		snapshot.ByResource[0] != (domain.ResourceHits{Resource: domain.ResourcePeople, Hits: 2}) ||
		snapshot.ByResource[1] != (domain.ResourceHits{Resource: domain.ResourceFilms, Hits: 1}) {
		t.Fatalf("unexpected byResource: %#v", snapshot.ByResource)
	}
	if snapshot.BusiestHour == nil || *snapshot.BusiestHour != (domain.HourHits{Hour: 10, Hits: 2}) {
		t.Fatalf("unexpected busiest hour: %#v", snapshot.BusiestHour)
	}
	want := []domain.TermHits{{Term: "hope", Hits: 1}, {Term: "luke", Hits: 1}, {Term: "vader", Hits: 1}}
	if len(snapshot.TopQueries) != len(want) {
		t.Fatalf("unexpected top queries: %#v", snapshot.TopQueries)
	}
	for i := range want {
		if snapshot.TopQueries[i] != want[i] {
			t.Fatalf("top query %d: expected %#v, got %#v", i, want[i], snapshot.TopQueries[i])
		}
	}
}

func TestComputeTopQueriesLimitAndSkipsEmptyTerms(t *testing.T) {
	at := time.Date(2025, 11, 30, 8, 0, 0, 0, time.UTC)
	var entries []domain.QueryLogEntry
	for term, hits := range map[string]int{"luke": 4, "leia": 3, "han": 3, "yoda": 2, "r2": 1, "c3po": 1, "": 9} {
		for i := 0; i < hits; i++ {
			entries = append(entries, entryAt(domain.ResourcePeople, term, 10, at))
		}
	}
	blank := "   "
	entries = append(entries, domain.QueryLogEntry{Resource: domain.ResourcePeople, Term: &blank, SearchedAt: at})

	snapshot := Compute(entries, at)
	want := []domain.TermHits{
		{Term: "luke", Hits: 4},
		{Term: "han", Hits: 3},
		{Term: "leia", Hits: 3},
		{Term: "yoda", Hits: 2},
		{Term: "c3po", Hits: 1},
	}
	if len(snapshot.TopQueries) != len(want) {
		t.Fatalf("expected %d top queries, got %#v", len(want), snapshot.TopQueries)
	}
	for i := range want {
		if snapshot.TopQueries[i] != want[i] {
			t.Fatalf("top query %d: expected %#v, got %#v", i, want[i], snapshot.TopQueries[i])
		}
	}
	if snapshot.TotalSearches != len(entries) {
		t.Fatalf("empty terms still count as searches: got %d", snapshot.TotalSearches)
	}
}

func TestComputeBusiestHourTiePicksLowestHour(t *testing.T) {
	day := time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)
	entries := []domain.QueryLogEntry{
		entryAt(domain.ResourceFilms, "a", 1, day.Add(22*time.Hour)),
		entryAt(domain.ResourceFilms, "b", 2, day.Add(3*time.Hour)),
	}
	snapshot := Compute(entries, day)
	if snapshot.BusiestHour == nil || snapshot.BusiestHour.Hour != 3 || snapshot.BusiestHour.Hits != 1 {
		t.Fatalf("unexpected busiest hour: %#v", snapshot.BusiestHour)
	}
}

func TestComputeHourUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	entries := []domain.QueryLogEntry{
		entryAt(domain.ResourcePeople, "x", 1, time.Date(2025, 11, 30, 13, 0, 0, 0, zone)),
	}
	snapshot := Compute(entries, time.Now())
	if snapshot.BusiestHour.Hour != 10 {
		t.Fatalf("expected UTC hour 10, got %d", snapshot.BusiestHour.Hour)
	}
}

func TestComputeAverageRoundsToTwoDecimals(t *testing.T) {
	at := time.Date(2025, 11, 30, 8, 0, 0, 0, time.UTC)
	entries := []domain.QueryLogEntry{
		entryAt(domain.ResourcePeople, "", 10.123, at),
		entryAt(domain.ResourcePeople, "", 10.124, at),
		entryAt(domain.ResourcePeople, "", 0, at),
	}
	snapshot := Compute(entries, at)
	if snapshot.AvgResponseMs == nil || *snapshot.AvgResponseMs != 6.75 {
		t.Fatalf("expected 6.75, got %v", snapshot.AvgResponseMs)
	}
}

func TestSummarizeKeepsEveryTerm(t *testing.T) {
	at := time.Date(2025, 11, 30, 23, 30, 0, 0, time.UTC)
	var entries []domain.QueryLogEntry
	for _, term := range []string{"a", "b", "c", "d", "e", "f", "  ", ""} {
		entries = append(entries, entryAt(domain.ResourcePeople, term, 10, at))
	}
	summary := Summarize(entries)
	if summary.Total != 8 || len(summary.Terms) != 6 {
		t.Fatalf("expected 8 entries and 6 terms, got %d and %d", summary.Total, len(summary.Terms))
	}
	if summary.Hours[23] != 8 || summary.TotalResponseMs != 80 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestFromSummaryZeroTotal(t *testing.T) {
	snapshot := FromSummary(Summary{}, time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC))
	if snapshot.TopQueries == nil || snapshot.ByResource == nil {
		t.Fatal("expected empty, non-nil lists")
	}
	if snapshot.AvgResponseMs != nil || snapshot.BusiestHour != nil {
		t.Fatalf("expected null average and busiest hour, got %#v", snapshot)
	}
}

func TestFromSummaryDoesNotMutateInput(t *testing.T) {
	summary := Summary{
		Total: 2,
		Terms: []domain.TermHits{{Term: "b", Hits: 1}, {Term: "a", Hits: 1}},
	}
	snapshot := FromSummary(summary, time.Now())
	if snapshot.TopQueries[0].Term != "a" {
		t.Fatalf("expected alphabetical tie-break, got %#v", snapshot.TopQueries)
	}
	if summary.Terms[0].Term != "b" {
		t.Fatalf("summary terms were reordered: %#v", summary.Terms)
	}
}
