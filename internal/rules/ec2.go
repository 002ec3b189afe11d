package rules

import (
	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
)

// IngressRule is one inbound permission of a security group.
type IngressRule struct {
	Protocol string
	FromPort *int32
	ToPort   *int32
	CIDRs    []string
}

// SecurityGroupView is a security group and its inbound rules.
type SecurityGroupView struct {
	GroupID   string
	GroupName string
	Region    string
	Ingress   []IngressRule
}

// Evaluate reports the group as open to the world when any inbound rule allows a
// world CIDR. The finding takes the highest severity among those rules.
func (v SecurityGroupView) Evaluate(c *severity.Classifier) []model.Observation {
	o := &observer{service: model.ServiceEC2, resource: v.GroupID, region: v.Region}
	policy := c.Policy()

	var (
		open bool
		sev  model.Severity
	)
	for _, rule := range v.Ingress {
		if !worldOpen(policy, rule.CIDRs) {
			continue
		}
		ruleSev := c.Classify(model.IssueSecurityGroupOpen, severity.PortRange(rule.Protocol, rule.FromPort, rule.ToPort))
		if !open {
			sev = ruleSev
			open = true
			continue
		}
		sev = sev.Max(ruleSev)
	}

	if open {
		o.present(model.IssueSecurityGroupOpen, sev)
	} else {
		o.absent(model.IssueSecurityGroupOpen)
	}
	return o.out
}

func worldOpen(p severity.Policy, cidrs []string) bool {
	for _, cidr := range cidrs {
		if p.IsWorldCIDR(cidr) {
			return true
		}
	}
	return false
}

// VolumeView is an EBS volume attached to an instance. Encrypted is nil when the
// volume could not be described.
type VolumeView struct {
	VolumeID  string
	Encrypted *bool
}

// InstanceView is an EC2 instance with its metadata options and volumes.
// HTTPTokens is empty when the provider did not report metadata options.
type InstanceView struct {
	InstanceID       string
	Region           string
	State            string
	PublicIP         string
	HTTPTokens       string
	MetadataEndpoint string
	Volumes          []VolumeView
}

// Evaluate judges public IP exposure, IMDSv1 and unencrypted attached volumes.
func (v InstanceView) Evaluate(c *severity.Classifier) []model.Observation {
	o := &observer{service: model.ServiceEC2, resource: v.InstanceID, region: v.Region}

	o.judge(model.IssueInstancePublicIP, Bool(v.PublicIP != ""), c)
	o.judge(model.IssueInstanceIMDSv1, v.imdsV1(), c)
	o.judge(model.IssueInstanceUnencrypted, v.unencryptedVolume(), c)

	return o.out
}

func (v InstanceView) imdsV1() *bool {
	if v.MetadataEndpoint == "disabled" {
		return Bool(false)
	}
	if v.HTTPTokens == "" {
		return nil
	}
	return Bool(v.HTTPTokens != "required")
}

func (v InstanceView) unencryptedVolume() *bool {
	unknown := false
	for _, vol := range v.Volumes {
		switch {
		case vol.Encrypted == nil:
			unknown = true
		case !*vol.Encrypted:
			return Bool(true)
		}
	}
	if unknown {
		return nil
	}
	return Bool(false)
}
