package dashboard

import (
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the dashboard queries to be mounted in the root schema
func GetQueryFields(view Summarizer) graphql.Fields {
	return graphql.Fields{
		"dashboard": &graphql.Field{
			Type: DashboardType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveDashboard(p.Context, view)
			},
		},
	}
}
