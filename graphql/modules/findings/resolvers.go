package findings

import (
	"context"
	"fmt"
	"strings"

	"github.com/clousec/clousec/internal/scanner"
	"github.com/clousec/clousec/model"
)

// Finder is the read side of the finding store.
type Finder interface {
	Find(ctx context.Context, filter model.FindingFilter) ([]model.Finding, error)
}

// FilterFromArgs validates the optional status, service, severity and limit
// arguments. Values are case-insensitive.
func FilterFromArgs(args map[string]interface{}) (model.FindingFilter, error) {
	var filter model.FindingFilter

	str := func(key string) string {
		v, _ := args[key].(string)
		return strings.ToUpper(strings.TrimSpace(v))
	}

	status, ok := model.ParseFindingStatus(str("status"))
	if !ok {
		return filter, fmt.Errorf("invalid status %q", args["status"])
	}
	filter.Status = status

	if service := str("service"); service != "" {
		parsed, err := scanner.ParseService(service)
		if err != nil {
			return filter, err
		}
		filter.Service = parsed
	}

	if sev := model.Severity(str("severity")); sev != "" {
		if !sev.Valid() {
			return filter, fmt.Errorf("invalid severity %q", args["severity"])
		}
		filter.Severity = sev
	}

	if limit, ok := args["limit"].(int); ok && limit > 0 {
		filter.Limit = limit
	}
	return filter, nil
}

// ResolveFindings returns the matching findings as GraphQL rows.
func ResolveFindings(ctx context.Context, store Finder, filter model.FindingFilter) ([]map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	found, err := store.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(found))
	for _, f := range found {
		rows = append(rows, Row(f))
	}
	return rows, nil
}

// Row maps a finding onto the Finding type's fields.
func Row(f model.Finding) map[string]interface{} {
	row := map[string]interface{}{
		"fingerprint": f.Fingerprint,
		"service":     f.Service,
		"resource_id": f.ResourceID,
		"issue":       f.Issue,
		"region":      f.Region,
		"severity":    string(f.Severity),
		"status":      string(f.Status),
		"first_seen":  f.FirstSeen,
		"last_seen":   f.LastSeen,
		"resolved_at": nil,
	}
	if f.ResolvedAt != nil {
		row["resolved_at"] = *f.ResolvedAt
	}
	return row
}
