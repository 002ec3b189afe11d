// Package graphql assembles the root GraphQL schema from the query modules.
package graphql

import (
	"github.com/clousec/clousec/graphql/modules/dashboard"
	"github.com/clousec/clousec/graphql/modules/findings"
	"github.com/graphql-go/graphql"
)

// CreateSchema builds the schema with the findings and dashboard queries.
func CreateSchema(store findings.Finder, view dashboard.Summarizer) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range findings.GetQueryFields(store) {
		fields[name] = field
	}
	for name, field := range dashboard.GetQueryFields(view) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}
