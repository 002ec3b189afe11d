package findings

import (
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the finding queries to be mounted in the root schema
func GetQueryFields(store Finder) graphql.Fields {
	return graphql.Fields{
		"findings": &graphql.Field{
			Type: graphql.NewList(FindingType),
			Args: graphql.FieldConfigArgument{
				"status":   &graphql.ArgumentConfig{Type: graphql.String},
				"service":  &graphql.ArgumentConfig{Type: graphql.String},
				"severity": &graphql.ArgumentConfig{Type: graphql.String},
				"limit":    &graphql.ArgumentConfig{Type: graphql.Int},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				filter, err := FilterFromArgs(p.Args)
				if err != nil {
					return nil, err
				}
				return ResolveFindings(p.Context, store, filter)
			},
		},
	}
}
