package model

// DashboardSampleSize caps the open findings returned with a dashboard summary.
const DashboardSampleSize = 10

// DashboardSummary is the aggregation view over the finding set.
type DashboardSummary struct {
	Open         int            `json:"open"`
	Resolved     int            `json:"resolved"`
	BySeverity   map[string]int `json:"by_severity"`
	ByService    map[string]int `json:"by_service"`
	OpenFindings []Finding      `json:"open_findings"`
}

// NewDashboardSummary returns a summary with initialised maps so empty results
// serialise as {} rather than null.
func NewDashboardSummary() DashboardSummary {
	return DashboardSummary{
		BySeverity:   map[string]int{},
		ByService:    map[string]int{},
		OpenFindings: []Finding{},
	}
}
