package graphql

import (
	"context"
	"testing"
	"time"

	"github.com/clousec/clousec/database/memstore"
	"github.com/clousec/clousec/internal/dashboard"
	"github.com/clousec/clousec/model"
	"github.com/clousec/clousec/util"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, f := range []model.Finding{
		{Service: model.ServiceS3, ResourceID: "logs", Issue: model.IssueS3PublicACL, Region: model.GlobalRegion, Severity: model.SeverityHigh},
		{Service: model.ServiceEC2, ResourceID: "sg-1", Issue: model.IssueSecurityGroupOpen, Region: "us-east-1", Severity: model.SeverityCritical},
	} {
		f.Fingerprint = util.Fingerprint(f.Service, f.ResourceID, f.Issue, f.Region)
		f.Status = model.StatusOpen
		f.LastSeen = now
		_, err := store.Upsert(context.Background(), f)
		require.NoError(t, err)
	}

	_, err := store.Resolve(context.Background(), util.Fingerprint(model.ServiceS3, "logs", model.IssueS3PublicACL, model.GlobalRegion), now)
	require.NoError(t, err)
	return store
}

func run(t *testing.T, schema graphql.Schema, query string) map[string]interface{} {
	t.Helper()
	result := graphql.Do(graphql.Params{Schema: schema, RequestString: query, Context: context.Background()})
	require.Empty(t, result.Errors)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestSchema_Findings(t *testing.T) {
	store := seed(t)
	schema, err := CreateSchema(store, dashboard.NewView(store))
	require.NoError(t, err)

	data := run(t, schema, `{ findings(status: "open") { resource_id status severity resolved_at } }`)
	rows := data["findings"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "sg-1", row["resource_id"])
	assert.Equal(t, "OPEN", row["status"])
	assert.Nil(t, row["resolved_at"])

	data = run(t, schema, `{ findings(service: "S3") { resource_id status resolved_at } }`)
	rows = data["findings"].([]interface{})
	require.Len(t, rows, 1)
	row = rows[0].(map[string]interface{})
	assert.Equal(t, "RESOLVED", row["status"])
	assert.Equal(t, "2025-03-01T12:00:00Z", row["resolved_at"])
}

func TestSchema_FindingsInvalidStatus(t *testing.T) {
	store := seed(t)
	schema, err := CreateSchema(store, dashboard.NewView(store))
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{Schema: schema, RequestString: `{ findings(status: "CLOSED") { fingerprint } }`})
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "invalid status")
}

func TestSchema_Dashboard(t *testing.T) {
	store := seed(t)
	schema, err := CreateSchema(store, dashboard.NewView(store))
	require.NoError(t, err)

	data := run(t, schema, `{ dashboard { open resolved by_service { name count } open_findings { resource_id } } }`)
	dash := data["dashboard"].(map[string]interface{})
	assert.Equal(t, 1, dash["open"])
	assert.Equal(t, 1, dash["resolved"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "EC2", "count": 1},
		map[string]interface{}{"name": "S3", "count": 1},
	}, dash["by_service"])
	assert.Len(t, dash["open_findings"], 1)
}
