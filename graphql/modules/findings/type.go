// Package findings defines the GraphQL types for findings.
package findings

import (
	"github.com/graphql-go/graphql"
)

// FindingType is one persisted misconfiguration
var FindingType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Finding",
	Fields: graphql.Fields{
		"fingerprint": &graphql.Field{Type: graphql.String},
		"service":     &graphql.Field{Type: graphql.String},
		"resource_id": &graphql.Field{Type: graphql.String},
		"issue":       &graphql.Field{Type: graphql.String},
		"region":      &graphql.Field{Type: graphql.String},
		"severity":    &graphql.Field{Type: graphql.String},
		"status":      &graphql.Field{Type: graphql.String},
		"first_seen":  &graphql.Field{Type: graphql.DateTime},
		"last_seen":   &graphql.Field{Type: graphql.DateTime},
		"resolved_at": &graphql.Field{Type: graphql.DateTime},
	},
})
