package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"starcatalog/searchservice/internal/domain"
	"starcatalog/searchservice/internal/stats"
)

const (
	QueryLogCollection = "query_log"
	SnapshotCollection = "stats_snapshots"
)

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type QueryLogRepository struct {
	collection *mongo.Collection
}

type queryLogDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Resource       string             `bson:"resource"`
	Term           *string            `bson:"term"`
	Page           int                `bson:"page"`
	Limit          int                `bson:"limit"`
	ResultCount    int                `bson:"resultsCount"`
	ResponseTimeMs float64            `bson:"responseTimeMs"`
	SearchedAt     int64              `bson:"searchedAt"` // unix millis
}

func NewQueryLogRepository(client *mongo.Client, dbName string) *QueryLogRepository {
	return &QueryLogRepository{collection: client.Database(dbName).Collection(QueryLogCollection)}
}

func (r *QueryLogRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "term", Value: 1}}},
		{Keys: bson.D{{Key: "searchedAt", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *QueryLogRepository) Append(ctx context.Context, entry domain.QueryLogEntry) error {
	doc := queryLogDoc{
		Resource:       string(entry.Resource),
		Term:           entry.Term,
		Page:           entry.Page,
		Limit:          entry.Limit,
		ResultCount:    entry.ResultCount,
		ResponseTimeMs: entry.ResponseTimeMs,
		SearchedAt:     entry.SearchedAt.UTC().UnixMilli(),
	}
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

// All returns the log in insertion order. Stats recomputation goes through Summarize.
func (r *QueryLogRepository) All(ctx context.Context) ([]domain.QueryLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "searchedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := make([]domain.QueryLogEntry, 0)
	for cursor.Next(ctx) {
		var doc queryLogDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		entries = append(entries, domain.QueryLogEntry{
			Resource:       domain.ResourceKind(doc.Resource),
			Term:           doc.Term,
			Page:           doc.Page,
			Limit:          doc.Limit,
			ResultCount:    doc.ResultCount,
			ResponseTimeMs: doc.ResponseTimeMs,
			SearchedAt:     time.UnixMilli(doc.SearchedAt).UTC(),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ stats.Summarizer = (*QueryLogRepository)(nil)

type summaryFacets struct {
	Totals []struct {
		Count   int     `bson:"count"`
		TotalMs float64 `bson:"totalMs"`
	} `bson:"totals"`
	Terms []struct {
		Term string `bson:"_id"`
		Hits int    `bson:"hits"`
	} `bson:"terms"`
	Resources []struct {
		Resource string `bson:"_id"`
		Hits     int    `bson:"hits"`
	} `bson:"resources"`
	Hours []struct {
		Hour int `bson:"_id"`
		Hits int `bson:"hits"`
	} `bson:"hours"`
}

// Summarize aggregates the log server-side in a single $facet pass. Terms are
// cut to topN after sorting by hits desc, term asc.
func (r *QueryLogRepository) Summarize(ctx context.Context, topN int) (stats.Summary, error) {
	countBy := func(key any) bson.D {
		return bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: key}, {Key: "hits", Value: bson.D{{Key: "$sum", Value: 1}}}}}}
	}
	byHitsThenKey := bson.D{{Key: "$sort", Value: bson.D{{Key: "hits", Value: -1}, {Key: "_id", Value: 1}}}}

	terms := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "term", Value: bson.D{{Key: "$type", Value: "string"}}}}}},
		{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$ne", Value: bson.A{bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: "$term"}}}}, ""}},
		}}}}},
		countBy("$term"),
		byHitsThenKey,
	}
	if topN > 0 {
		terms = append(terms, bson.D{{Key: "$limit", Value: topN}})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "totals", Value: mongo.Pipeline{
				{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
					{Key: "totalMs", Value: bson.D{{Key: "$sum", Value: "$responseTimeMs"}}},
				}}},
			}},
			{Key: "terms", Value: terms},
			{Key: "resources", Value: mongo.Pipeline{countBy("$resource"), byHitsThenKey}},
			{Key: "hours", Value: mongo.Pipeline{
				countBy(bson.D{{Key: "$hour", Value: bson.D{{Key: "$toDate", Value: "$searchedAt"}}}}),
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("aggregate query log: %w", err)
	}
	defer cursor.Close(ctx)

	var facets summaryFacets
	if cursor.Next(ctx) {
		if err := cursor.Decode(&facets); err != nil {
			return stats.Summary{}, fmt.Errorf("decode query log summary: %w", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return stats.Summary{}, err
	}

	var summary stats.Summary
	if len(facets.Totals) > 0 {
		summary.Total = facets.Totals[0].Count
		summary.TotalResponseMs = facets.Totals[0].TotalMs
	}
	for _, t := range facets.Terms {
		summary.Terms = append(summary.Terms, domain.TermHits{Term: t.Term, Hits: t.Hits})
	}
	for _, res := range facets.Resources {
		summary.Resources = append(summary.Resources, domain.ResourceHits{Resource: domain.ResourceKind(res.Resource), Hits: res.Hits})
	}
	for _, h := range facets.Hours {
		if h.Hour >= 0 && h.Hour < len(summary.Hours) {
			summary.Hours[h.Hour] = h.Hits
		}
	}
	return summary, nil
}

type SnapshotRepository struct {
	collection *mongo.Collection
}

type snapshotPayload struct {
	TotalSearches int                   `bson:"totalSearches"`
	TopQueries    []domain.TermHits     `bson:"topQueries"`
	AvgResponseMs *float64              `bson:"avgResponseMs"`
	ByResource    []domain.ResourceHits `bson:"byResource"`
	BusiestHour   *domain.HourHits      `bson:"busiestHour"`
}

type snapshotDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Payload      snapshotPayload    `bson:"payload"`
	CalculatedAt int64              `bson:"calculatedAt"` // unix millis
}

func NewSnapshotRepository(client *mongo.Client, dbName string) *SnapshotRepository {
	return &SnapshotRepository{collection: client.Database(dbName).Collection(SnapshotCollection)}
}

func (r *SnapshotRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "calculatedAt", Value: -1}},
	})
	return err
}

func (r *SnapshotRepository) Insert(ctx context.Context, snapshot domain.StatsSnapshot) error {
	doc := snapshotDoc{
		Payload: snapshotPayload{
			TotalSearches: snapshot.TotalSearches,
			TopQueries:    snapshot.TopQueries,
			AvgResponseMs: snapshot.AvgResponseMs,
			ByResource:    snapshot.ByResource,
			BusiestHour:   snapshot.BusiestHour,
		},
		CalculatedAt: snapshot.GeneratedAt.UTC().UnixMilli(),
	}
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

// Latest returns the snapshot with the newest calculatedAt. Equal timestamps resolve
// to the most recent insert.
func (r *SnapshotRepository) Latest(ctx context.Context) (domain.StatsSnapshot, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "calculatedAt", Value: -1}, {Key: "_id", Value: -1}})
	var doc snapshotDoc
	if err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.StatsSnapshot{}, false, nil
		}
		return domain.StatsSnapshot{}, false, fmt.Errorf("find latest snapshot: %w", err)
	}
	return fromSnapshotDoc(doc), true, nil
}

func fromSnapshotDoc(doc snapshotDoc) domain.StatsSnapshot {
	snapshot := domain.StatsSnapshot{
		TotalSearches: doc.Payload.TotalSearches,
		TopQueries:    doc.Payload.TopQueries,
		AvgResponseMs: doc.Payload.AvgResponseMs,
		ByResource:    doc.Payload.ByResource,
		BusiestHour:   doc.Payload.BusiestHour,
		GeneratedAt:   time.UnixMilli(doc.CalculatedAt).UTC(),
	}
	if snapshot.TopQueries == nil {
		snapshot.TopQueries = []domain.TermHits{}
	}
	if snapshot.ByResource == nil {
		snapshot.ByResource = []domain.ResourceHits{}
	}
	return snapshot
}
