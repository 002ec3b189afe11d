// Package severity maps rule signals to a severity tier using a declarative rule
// table and an explicit policy.
package severity

import (
	"fmt"
	"os"

	"github.com/clousec/clousec/model"
	"gopkg.in/yaml.v2"
)

// Policy holds the tunable inputs of the classifier.
type Policy struct {
	SensitivePorts []int32                   `yaml:"sensitive_ports"`
	FullRangeFrom  int32                     `yaml:"full_range_from"`
	FullRangeTo    int32                     `yaml:"full_range_to"`
	WorldCIDRs     []string                  `yaml:"world_cidrs"`
	BaseSeverity   map[string]model.Severity `yaml:"base_severity"`
}

// DefaultPolicy returns the policy used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		SensitivePorts: []int32{22, 3389},
		FullRangeFrom:  0,
		FullRangeTo:    65535,
		WorldCIDRs:     []string{"0.0.0.0/0", "::/0"},
		BaseSeverity:   map[string]model.Severity{},
	}
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep their
// default values.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read severity policy %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("failed to parse severity policy %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate checks the policy for values the classifier cannot work with.
func (p Policy) Validate() error {
	if p.FullRangeFrom > p.FullRangeTo {
		return fmt.Errorf("full_range_from (%d) must not exceed full_range_to (%d)", p.FullRangeFrom, p.FullRangeTo)
	}
	if len(p.WorldCIDRs) == 0 {
		return fmt.Errorf("world_cidrs must list at least one CIDR")
	}
	for issue, sev := range p.BaseSeverity {
		if !sev.Valid() {
			return fmt.Errorf("base_severity for %q: unknown severity %q", issue, sev)
		}
	}
	return nil
}

// IsWorldCIDR reports whether cidr grants access from anywhere.
func (p Policy) IsWorldCIDR(cidr string) bool {
	for _, w := range p.WorldCIDRs {
		if cidr == w {
			return true
		}
	}
	return false
}
