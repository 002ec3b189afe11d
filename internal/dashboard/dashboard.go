// Package dashboard computes the aggregation view over the finding set.
package dashboard

import (
	"context"

	"github.com/clousec/clousec/model"
)

// Aggregator is implemented by the finding stores, which compute the summary
// next to the data.
type Aggregator interface {
	Aggregate(ctx context.Context, sample int) (model.DashboardSummary, error)
}

// Summarize counts findings by status, severity and service, and keeps the
// first sample OPEN findings in the order given.
func Summarize(findings []model.Finding, sample int) model.DashboardSummary {
	summary := model.NewDashboardSummary()

	for _, f := range findings {
		switch f.Status {
		case model.StatusOpen:
			summary.Open++
			if len(summary.OpenFindings) < sample {
				summary.OpenFindings = append(summary.OpenFindings, f)
			}
		case model.StatusResolved:
			summary.Resolved++
		}
		summary.BySeverity[string(f.Severity)]++
		summary.ByService[f.Service]++
	}

	return summary
}

// View serves the dashboard. It never caches; every call reads the store.
type View struct {
	store Aggregator
}

// NewView returns a view over store.
func NewView(store Aggregator) *View {
	return &View{store: store}
}

// Summary returns the current summary with the standard open-finding sample.
func (v *View) Summary(ctx context.Context) (model.DashboardSummary, error) {
	return v.store.Aggregate(ctx, model.DashboardSampleSize)
}
