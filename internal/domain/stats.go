package domain

import "time"

// QueryLogEntry records one search invocation. Entries are never updated.
type QueryLogEntry struct {
	Resource       ResourceKind `json:"resource"`
	Term           *string      `json:"term"`
	Page           int          `json:"page"`
	Limit          int          `json:"limit"`
	ResultCount    int          `json:"resultsCount"`
	ResponseTimeMs float64      `json:"responseTimeMs"`
	SearchedAt     time.Time    `json:"searchedAt"`
}

type TermHits struct {
	Term string `json:"term" bson:"term"`
	Hits int    `json:"hits" bson:"hits"`
}

type ResourceHits struct {
	Resource ResourceKind `json:"resource" bson:"resource"`
	Hits     int          `json:"hits"     bson:"hits"`
}

type HourHits struct {
	Hour int `json:"hour" bson:"hour"`
	Hits int `json:"hits" bson:"hits"`
}

// StatsSnapshot is an immutable summary of the query log at GeneratedAt.
type StatsSnapshot struct {
	TotalSearches int            `json:"total_searches"`
	TopQueries    []TermHits     `json:"top_queries"`
	AvgResponseMs *float64       `json:"avg_response_ms"`
	ByResource    []ResourceHits `json:"by_resource"`
	BusiestHour   *HourHits      `json:"busiest_hour"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
