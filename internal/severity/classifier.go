package severity

import "github.com/clousec/clousec/model"

// Signals are the rule-specific inputs a classification may escalate on.
// Port bounds are nil when the provider did not report them (protocol "-1").
type Signals struct {
	Protocol string
	FromPort *int32
	ToPort   *int32
}

// PortRange builds signals for a single ingress permission.
func PortRange(protocol string, from, to *int32) Signals {
	return Signals{Protocol: protocol, FromPort: from, ToPort: to}
}

// Escalation raises a rule's tier when its predicate holds.
type Escalation struct {
	Name     string
	Severity model.Severity
	Applies  func(p Policy, s Signals) bool
}

// Rule is one row of the classification table.
type Rule struct {
	Issue       string
	Base        model.Severity
	Escalations []Escalation
}

// DefaultRules is the built-in classification table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Issue: model.IssueSecurityGroupOpen,
			Base:  model.SeverityMedium,
			Escalations: []Escalation{
				{Name: "sensitive_port", Severity: model.SeverityHigh, Applies: touchesSensitivePort},
				{Name: "full_port_range", Severity: model.SeverityCritical, Applies: spansFullRange},
			},
		},
		{Issue: model.IssueIAMOverlyPermissive, Base: model.SeverityCritical},
		{Issue: model.IssueS3PublicPolicy, Base: model.SeverityHigh},
		{Issue: model.IssueS3PublicACL, Base: model.SeverityHigh},
		{Issue: model.IssueS3BlockPublicAccess, Base: model.SeverityHigh},
		{Issue: model.IssueS3NotEncrypted, Base: model.SeverityMedium},
		{Issue: model.IssueInstanceUnencrypted, Base: model.SeverityHigh},
		{Issue: model.IssueInstanceIMDSv1, Base: model.SeverityMedium},
		{Issue: model.IssueInstancePublicIP, Base: model.SeverityMedium},
	}
}

// Classifier resolves the severity of an issue from the rule table.
type Classifier struct {
	policy Policy
	rules  map[string]Rule
}

// NewClassifier builds a classifier from the policy and the default rules.
// Extra rules replace default rows for the same issue.
func NewClassifier(policy Policy, extra ...Rule) *Classifier {
	rules := make(map[string]Rule)
	for _, r := range DefaultRules() {
		rules[r.Issue] = r
	}
	for _, r := range extra {
		rules[r.Issue] = r
	}
	return &Classifier{policy: policy, rules: rules}
}

// Policy returns the policy the classifier was built with.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify returns the tier for issue given the observed signals. The highest
// applicable escalation wins. Unknown issues classify as MEDIUM.
func (c *Classifier) Classify(issue string, s Signals) model.Severity {
	rule, ok := c.rules[issue]
	if !ok {
		return model.SeverityMedium
	}

	sev := rule.Base
	if override, ok := c.policy.BaseSeverity[issue]; ok {
		sev = override
	}

	for _, esc := range rule.Escalations {
		if esc.Applies(c.policy, s) {
			sev = sev.Max(esc.Severity)
		}
	}
	return sev
}

func touchesSensitivePort(p Policy, s Signals) bool {
	if s.Protocol == "-1" {
		return len(p.SensitivePorts) > 0
	}
	if s.FromPort == nil || s.ToPort == nil {
		return false
	}
	for _, port := range p.SensitivePorts {
		if *s.FromPort <= port && port <= *s.ToPort {
			return true
		}
	}
	return false
}

func spansFullRange(p Policy, s Signals) bool {
	if s.Protocol == "-1" {
		return true
	}
	if s.FromPort == nil || s.ToPort == nil {
		return false
	}
	return *s.FromPort <= p.FullRangeFrom && *s.ToPort >= p.FullRangeTo
}
