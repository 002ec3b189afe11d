// Package model defines the data structures shared across the ClouSec backend,
// including findings, cloud events and dashboard summaries.
package model

import "time"

// Severity is the tier assigned to a misconfiguration.
type Severity string

const (
	// SeverityMedium is the base tier for resources exposed to the world.
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh is used for public data exposure and sensitive ports.
	SeverityHigh Severity = "HIGH"
	// SeverityCritical is used for full port-range exposure and wildcard IAM grants.
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the known tiers.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Max returns the higher of the two tiers.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// FindingStatus is the lifecycle state of a finding.
type FindingStatus string

const (
	// StatusOpen means the misconfiguration was present at the last observation.
	StatusOpen FindingStatus = "OPEN"
	// StatusResolved means the misconfiguration was confirmed absent after being open.
	StatusResolved FindingStatus = "RESOLVED"
)

// ParseFindingStatus validates a status filter value. An empty string is allowed
// and means "any status".
func ParseFindingStatus(v string) (FindingStatus, bool) {
	switch FindingStatus(v) {
	case "", StatusOpen, StatusResolved:
		return FindingStatus(v), true
	}
	return "", false
}

// Services scanned by the backend
const (
	ServiceS3  = "S3"
	ServiceEC2 = "EC2"
	ServiceIAM = "IAM"
)

// GlobalRegion is the region recorded for resources that are not regional (S3, IAM).
const GlobalRegion = "global"

// Finding is the persisted record of one misconfiguration on one resource.
type Finding struct {
	Fingerprint string        `json:"fingerprint" bson:"fingerprint"`
	Service     string        `json:"service" bson:"service"`
	ResourceID  string        `json:"resource_id" bson:"resource_id"`
	Issue       string        `json:"issue" bson:"issue"`
	Region      string        `json:"region" bson:"region"`
	Severity    Severity      `json:"severity" bson:"severity"`
	Status      FindingStatus `json:"status" bson:"status"`
	FirstSeen   time.Time     `json:"first_seen" bson:"first_seen"`
	LastSeen    time.Time     `json:"last_seen" bson:"last_seen"`
	ResolvedAt  *time.Time    `json:"resolved_at" bson:"resolved_at"`
}

// FindingFilter narrows a finding query. Zero values match everything.
type FindingFilter struct {
	Status   FindingStatus
	Service  string
	Severity Severity
	Limit    int
}

// Matches reports whether f passes the filter.
func (ff FindingFilter) Matches(f Finding) bool {
	if ff.Status != "" && f.Status != ff.Status {
		return false
	}
	if ff.Service != "" && f.Service != ff.Service {
		return false
	}
	if ff.Severity != "" && f.Severity != ff.Severity {
		return false
	}
	return true
}

// Observation is one evaluator judgment about one issue on one resource.
// Present observations carry the classified severity; absent ones resolve.
type Observation struct {
	Service    string
	ResourceID string
	Issue      string
	Region     string
	Severity   Severity
	Present    bool
}
