// Package rules holds the scan rule evaluators. Each evaluator is a pure
// function over a typed view of one resource, already read from the provider,
// and returns one observation per issue it could decide.
//
// A nil pointer in a view means the provider could not read that attribute.
// Evaluators never turn an unknown attribute into an "absent" observation, so
// a failed or throttled read can never resolve a real finding.
package rules

import (
	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
)

// Evaluator is implemented by every view type.
type Evaluator interface {
	Evaluate(c *severity.Classifier) []model.Observation
}

type observer struct {
	service  string
	resource string
	region   string
	out      []model.Observation
}

func (o *observer) present(issue string, sev model.Severity) {
	o.out = append(o.out, model.Observation{
		Service:    o.service,
		ResourceID: o.resource,
		Issue:      issue,
		Region:     o.region,
		Severity:   sev,
		Present:    true,
	})
}

func (o *observer) absent(issue string) {
	o.out = append(o.out, model.Observation{
		Service:    o.service,
		ResourceID: o.resource,
		Issue:      issue,
		Region:     o.region,
	})
}

// judge records issue as present or absent, or skips it when the condition is unknown.
func (o *observer) judge(issue string, condition *bool, c *severity.Classifier) {
	switch {
	case condition == nil:
	case *condition:
		o.present(issue, c.Classify(issue, severity.Signals{}))
	default:
		o.absent(issue)
	}
}

// Bool returns a pointer to v, for building views.
func Bool(v bool) *bool {
	return &v
}

// Int32 returns a pointer to v, for building views.
func Int32(v int32) *int32 {
	return &v
}
