// Package dashboard defines the GraphQL types for the findings dashboard.
package dashboard

import (
	"github.com/clousec/clousec/graphql/modules/findings"
	"github.com/graphql-go/graphql"
)

// CountType is one bucket of a by-severity or by-service breakdown
var CountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Count",
	Fields: graphql.Fields{
		"name":  &graphql.Field{Type: graphql.String},
		"count": &graphql.Field{Type: graphql.Int},
	},
})

// DashboardType represents the aggregation view over the finding set
var DashboardType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Dashboard",
	Fields: graphql.Fields{
		"open":          &graphql.Field{Type: graphql.Int},
		"resolved":      &graphql.Field{Type: graphql.Int},
		"by_severity":   &graphql.Field{Type: graphql.NewList(CountType)},
		"by_service":    &graphql.Field{Type: graphql.NewList(CountType)},
		"open_findings": &graphql.Field{Type: graphql.NewList(findings.FindingType)},
	},
})
