// Package cloudevents defines the scan targets derived from cloud audit events.
package cloudevents

import (
	"time"

	"github.com/clousec/clousec/model"
)

// TargetKind is the resource type a targeted scan inspects.
type TargetKind string

// Target kinds
const (
	KindInstance      TargetKind = "instance"
	KindSecurityGroup TargetKind = "security_group"
	KindBucket        TargetKind = "bucket"
	KindRole          TargetKind = "iam_role"
	KindUser          TargetKind = "iam_user"
)

// Target is one resource to re-scan. Region is empty when the event did not
// carry one; the scanner then uses the provider's default region. Buckets and
// IAM principals are global.
type Target struct {
	Kind       TargetKind `json:"kind"`
	Region     string     `json:"region"`
	ResourceID string     `json:"resource_id"`
}

// Key identifies the target for debouncing.
func (t Target) Key() string {
	return string(t.Kind) + "|" + t.Region + "|" + t.ResourceID
}

// Routing is the router's decision for one event: either targets, or the
// reason the event is unroutable. Unroutable events are acknowledged, not errors.
type Routing struct {
	Targets    []Target `json:"targets"`
	Unroutable string   `json:"unroutable,omitempty"`
}

// Routed reports whether the event produced any targets.
func (r Routing) Routed() bool {
	return r.Unroutable == "" && len(r.Targets) > 0
}

// PublishedEvent is the envelope written to Kafka by the producer.
type PublishedEvent struct {
	EventID       string           `json:"event_id"`
	EventTime     time.Time        `json:"event_time"`
	SchemaVersion string           `json:"schema_version"`
	Event         model.CloudEvent `json:"event"`
}
