package dashboard

import (
	"context"
	"sort"

	"github.com/clousec/clousec/graphql/modules/findings"
	"github.com/clousec/clousec/model"
)

// Summarizer is implemented by dashboard.View.
type Summarizer interface {
	Summary(ctx context.Context) (model.DashboardSummary, error)
}

// ResolveDashboard recomputes the summary on every query.
func ResolveDashboard(ctx context.Context, view Summarizer) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := view.Summary(ctx)
	if err != nil {
		return nil, err
	}

	open := make([]map[string]interface{}, 0, len(summary.OpenFindings))
	for _, f := range summary.OpenFindings {
		open = append(open, findings.Row(f))
	}

	return map[string]interface{}{
		"open":          summary.Open,
		"resolved":      summary.Resolved,
		"by_severity":   counts(summary.BySeverity),
		"by_service":    counts(summary.ByService),
		"open_findings": open,
	}, nil
}

// counts flattens a breakdown map into rows sorted by name.
func counts(m map[string]int) []map[string]interface{} {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]interface{}{"name": name, "count": m[name]})
	}
	return rows
}
