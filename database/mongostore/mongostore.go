// Package mongostore is the MongoDB FindingStore.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clousec/clousec/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const findingsCollection = "findings"

// Store keeps findings in a single collection with a unique fingerprint index.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// Open connects, pings with backoff retry, and ensures the indexes.
func Open(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 5 * time.Minute

	err = backoff.RetryNotify(func() error {
		return client.Ping(ctx, readpref.Primary())
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to MongoDB", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(findingsCollection),
		logger:     logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connected", zap.String("database", database))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("finding_fingerprint"),
		},
		{
			Keys: bson.D{
				{Key: "service", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "issue", Value: 1},
				{Key: "region", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("finding_identity"),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("finding_status")},
		{Keys: bson.D{{Key: "severity", Value: 1}}, Options: options.Index().SetName("finding_severity")},
		{Keys: bson.D{{Key: "service", Value: 1}}, Options: options.Index().SetName("finding_service")},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create finding indexes: %w", err)
	}
	return nil
}

// Upsert sets the mutable fields and writes first_seen only on insert. The
// document is returned as it was before the update to recover the prior status.
func (s *Store) Upsert(ctx context.Context, f model.Finding) (model.FindingStatus, error) {
	now := f.LastSeen.UTC()
	filter := bson.D{{Key: "fingerprint", Value: f.Fingerprint}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "service", Value: f.Service},
			{Key: "resource_id", Value: f.ResourceID},
			{Key: "issue", Value: f.Issue},
			{Key: "region", Value: f.Region},
			{Key: "severity", Value: f.Severity},
			{Key: "status", Value: model.StatusOpen},
			{Key: "last_seen", Value: now},
			{Key: "resolved_at", Value: nil},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "first_seen", Value: now},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: "status", Value: 1}})

	var prior struct {
		Status model.FindingStatus `bson:"status"`
	}
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prior)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to upsert finding %s: %w", f.Fingerprint, err)
	}
	return prior.Status, nil
}

// Resolve updates the finding only while it is OPEN.
func (s *Store) Resolve(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "fingerprint", Value: fingerprint},
		{Key: "status", Value: model.StatusOpen},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: model.StatusResolved},
		{Key: "resolved_at", Value: at.UTC()},
	}}}

	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to resolve finding %s: %w", fingerprint, err)
	}
	return res.ModifiedCount > 0, nil
}

// Find returns findings matching filter, oldest first.
func (s *Store) Find(ctx context.Context, filter model.FindingFilter) ([]model.Finding, error) {
	opts := options.Find().SetSort(bson.D{{Key: "first_seen", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer cursor.Close(ctx)

	findings := []model.Finding{}
	if err := cursor.All(ctx, &findings); err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	return findings, nil
}

func filterDocument(filter model.FindingFilter) bson.D {
	doc := bson.D{}
	if filter.Status != "" {
		doc = append(doc, bson.E{Key: "status", Value: filter.Status})
	}
	if filter.Service != "" {
		doc = append(doc, bson.E{Key: "service", Value: filter.Service})
	}
	if filter.Severity != "" {
		doc = append(doc, bson.E{Key: "severity", Value: filter.Severity})
	}
	return doc
}

type countBucket struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}

type facetResult struct {
	ByStatus     []countBucket   `bson:"by_status"`
	BySeverity   []countBucket   `bson:"by_severity"`
	ByService    []countBucket   `bson:"by_service"`
	OpenFindings []model.Finding `bson:"open_findings"`
}

func countBy(field string) bson.A {
	return bson.A{bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$" + field},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}}
}

// Aggregate computes the dashboard in one $facet pipeline.
func (s *Store) Aggregate(ctx context.Context, sample int) (model.DashboardSummary, error) {
	// $limit must be positive
	limit := sample
	if limit < 1 {
		limit = 1
	}

	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "by_status", Value: countBy("status")},
			{Key: "by_severity", Value: countBy("severity")},
			{Key: "by_service", Value: countBy("service")},
			{Key: "open_findings", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "status", Value: model.StatusOpen}}}},
				bson.D{{Key: "$limit", Value: limit}},
			}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("failed to aggregate findings: %w", err)
	}
	defer cursor.Close(ctx)

	var results []facetResult
	if err := cursor.All(ctx, &results); err != nil {
		return model.DashboardSummary{}, fmt.Errorf("failed to read summary: %w", err)
	}
	if len(results) == 0 {
		return model.NewDashboardSummary(), nil
	}
	return results[0].summary(sample), nil
}

func (r facetResult) summary(sample int) model.DashboardSummary {
	summary := model.NewDashboardSummary()
	for _, b := range r.ByStatus {
		switch model.FindingStatus(b.Key) {
		case model.StatusOpen:
			summary.Open = b.Count
		case model.StatusResolved:
			summary.Resolved = b.Count
		}
	}
	for _, b := range r.BySeverity {
		summary.BySeverity[b.Key] = b.Count
	}
	for _, b := range r.ByService {
		summary.ByService[b.Key] = b.Count
	}
	for _, f := range r.OpenFindings {
		if len(summary.OpenFindings) >= sample {
			break
		}
		summary.OpenFindings = append(summary.OpenFindings, f)
	}
	return summary
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
