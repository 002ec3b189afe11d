package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"github.com/clousec/clousec/model"
	"go.uber.org/zap"
)

const findingsCollection = "findings"

// indexConfig is one persistent index on the findings collection
type indexConfig struct {
	IdxName   string
	IdxFields []string
	Unique    bool
}

var findingIndexes = []indexConfig{
	{IdxName: "finding_identity", IdxFields: []string{"service", "resource_id", "issue", "region"}, Unique: true},
	{IdxName: "finding_status", IdxFields: []string{"status"}},
	{IdxName: "finding_severity", IdxFields: []string{"severity"}},
	{IdxName: "finding_service", IdxFields: []string{"service"}},
}

// ArangoStore is the ArangoDB FindingStore. The fingerprint is the document _key.
type ArangoStore struct {
	Database   arangodb.Database
	Collection arangodb.Collection
	logger     *zap.Logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// OpenArango connects with backoff retry, then creates the database, the findings
// collection and its indexes when missing.
func OpenArango(ctx context.Context, opts Options) (*ArangoStore, error) {
	const initialInterval = 5 * time.Second
	const maxInterval = time.Minute

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var client arangodb.Client

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // retry until ctx is cancelled

	err := backoff.RetryNotify(func() error {
		logger.Info("Attempting to connect to ArangoDB", zap.String("url", opts.URI))
		endpoint := connection.NewRoundRobinEndpoints([]string{opts.URI})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, opts.User, opts.Password))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to ArangoDB", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ArangoDB: %w", err)
	}

	db, err := ensureDatabase(ctx, client, opts.Database)
	if err != nil {
		return nil, err
	}

	col, err := ensureCollection(ctx, db, findingsCollection)
	if err != nil {
		return nil, err
	}

	if err := ensureIndexes(ctx, col, findingIndexes, logger); err != nil {
		return nil, err
	}

	logger.Sugar().Infof("Database initialization complete for %s", opts.Database)

	return &ArangoStore{Database: db, Collection: col, logger: logger}, nil
}

func ensureDatabase(ctx context.Context, client arangodb.Client, name string) (arangodb.Database, error) {
	exists, err := client.DatabaseExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database %s: %w", name, err)
	}

	if exists {
		db, err := client.GetDatabase(ctx, name, &arangodb.GetDatabaseOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get database %s: %w", name, err)
		}
		return db, nil
	}

	db, err := client.CreateDatabase(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return db, nil
}

func ensureCollection(ctx context.Context, db arangodb.Database, name string) (arangodb.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if exists {
		col, err := db.GetCollection(ctx, name, &arangodb.GetCollectionOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to use collection %s: %w", name, err)
		}
		return col, nil
	}

	col, err := db.CreateCollectionV2(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return col, nil
}

func ensureIndexes(ctx context.Context, col arangodb.Collection, idxList []indexConfig, logger *zap.Logger) error {
	existing := map[string]bool{}
	if indexes, err := col.Indexes(ctx); err == nil {
		for _, index := range indexes {
			existing[index.Name] = true
		}
	}

	False := false
	for _, idx := range idxList {
		if existing[idx.IdxName] {
			continue
		}

		unique := idx.Unique
		indexOptions := arangodb.CreatePersistentIndexOptions{
			Unique: &unique,
			Sparse: &False,
			Name:   idx.IdxName,
		}

		if _, _, err := col.EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.IdxName, err)
		}
		logger.Sugar().Infof("Created index: %s on %s%v", idx.IdxName, col.Name(), idx.IdxFields)
	}
	return nil
}

// Upsert inserts or reopens the finding in one UPSERT statement.
func (s *ArangoStore) Upsert(ctx context.Context, f model.Finding) (model.FindingStatus, error) {
	query := `
		UPSERT { _key: @key }
		INSERT {
			_key: @key,
			fingerprint: @key,
			service: @service,
			resource_id: @resource_id,
			issue: @issue,
			region: @region,
			severity: @severity,
			status: "OPEN",
			first_seen: @now,
			last_seen: @now,
			resolved_at: null
		}
		UPDATE {
			severity: @severity,
			status: "OPEN",
			last_seen: @now,
			resolved_at: null
		}
		IN findings
		RETURN OLD ? OLD.status : ""
	`
	bindVars := map[string]interface{}{
		"key":         f.Fingerprint,
		"service":     f.Service,
		"resource_id": f.ResourceID,
		"issue":       f.Issue,
		"region":      f.Region,
		"severity":    f.Severity,
		"now":         f.LastSeen.UTC(),
	}

	cursor, err := s.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return "", fmt.Errorf("failed to upsert finding %s: %w", f.Fingerprint, err)
	}
	defer cursor.Close()

	var prior string
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &prior); err != nil {
			return "", fmt.Errorf("failed to read upsert result: %w", err)
		}
	}
	return model.FindingStatus(prior), nil
}

// Resolve updates only an OPEN document, so a missing or already resolved
// finding is left untouched.
func (s *ArangoStore) Resolve(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	query := `
		FOR f IN findings
			FILTER f._key == @key AND f.status == "OPEN"
			UPDATE f WITH { status: "RESOLVED", resolved_at: @now } IN findings
			RETURN NEW._key
	`
	bindVars := map[string]interface{}{
		"key": fingerprint,
		"now": at.UTC(),
	}

	cursor, err := s.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return false, fmt.Errorf("failed to resolve finding %s: %w", fingerprint, err)
	}
	defer cursor.Close()

	return cursor.HasMore(), nil
}

// Find returns findings matching the filter, oldest first.
func (s *ArangoStore) Find(ctx context.Context, filter model.FindingFilter) ([]model.Finding, error) {
	query := `
		FOR f IN findings
			FILTER @status == "" OR f.status == @status
			FILTER @service == "" OR f.service == @service
			FILTER @severity == "" OR f.severity == @severity
			SORT f.first_seen ASC
	`
	bindVars := map[string]interface{}{
		"status":   filter.Status,
		"service":  filter.Service,
		"severity": filter.Severity,
	}
	if filter.Limit > 0 {
		query += "LIMIT @limit\n"
		bindVars["limit"] = filter.Limit
	}
	query += `RETURN UNSET(f, "_id", "_rev", "_key")`

	cursor, err := s.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer cursor.Close()

	findings := []model.Finding{}
	for cursor.HasMore() {
		var f model.Finding
		if _, err := cursor.ReadDocument(ctx, &f); err != nil {
			return nil, fmt.Errorf("failed to read finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

type countBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type arangoSummary struct {
	ByStatus     []countBucket   `json:"by_status"`
	BySeverity   []countBucket   `json:"by_severity"`
	ByService    []countBucket   `json:"by_service"`
	OpenFindings []model.Finding `json:"open_findings"`
}

// Aggregate computes the dashboard counts with COLLECT on the server.
func (s *ArangoStore) Aggregate(ctx context.Context, sample int) (model.DashboardSummary, error) {
	query := `
		LET by_status = (
			FOR f IN findings
				COLLECT key = f.status WITH COUNT INTO count
				RETURN { key, count }
		)
		LET by_severity = (
			FOR f IN findings
				COLLECT key = f.severity WITH COUNT INTO count
				RETURN { key, count }
		)
		LET by_service = (
			FOR f IN findings
				COLLECT key = f.service WITH COUNT INTO count
				RETURN { key, count }
		)
		LET open_findings = (
			FOR f IN findings
				FILTER f.status == "OPEN"
				LIMIT @sample
				RETURN UNSET(f, "_id", "_rev", "_key")
		)
		RETURN { by_status, by_severity, by_service, open_findings }
	`
	bindVars := map[string]interface{}{
		"sample": sample,
	}

	cursor, err := s.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("failed to aggregate findings: %w", err)
	}
	defer cursor.Close()

	var raw arangoSummary
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &raw); err != nil {
			return model.DashboardSummary{}, fmt.Errorf("failed to read summary: %w", err)
		}
	}
	return raw.summary(), nil
}

func (r arangoSummary) summary() model.DashboardSummary {
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
	if r.OpenFindings != nil {
		summary.OpenFindings = r.OpenFindings
	}
	return summary
}

// Close is a no-op; the HTTP connection pool is released with the process.
func (s *ArangoStore) Close(context.Context) error {
	return nil
}
