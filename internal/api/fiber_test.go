package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clousec/clousec/database/memstore"
	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/graphql"
	"github.com/clousec/clousec/internal/dashboard"
	"github.com/clousec/clousec/restapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSweeper struct{}

func (noopSweeper) StartSweep(context.Context, ...string) error { return nil }

type noopDispatcher struct{}

func (noopDispatcher) Submit(context.Context, cloudevents.Target) bool { return true }

func TestNewFiberApp(t *testing.T) {
	store := memstore.New()
	view := dashboard.NewView(store)
	schema, err := graphql.CreateSchema(store, view)
	require.NoError(t, err)

	app := NewFiberApp(restapi.Services{
		Findings:   store,
		Dashboard:  view,
		Router:     cloudevents.NewRouter(),
		Dispatcher: noopDispatcher{},
		Sweeper:    noopSweeper{},
	}, schema)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/inventory", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "inventory is only mounted with a provider")
}
