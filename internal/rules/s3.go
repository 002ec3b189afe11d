package rules

import (
	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
)

// BucketView is the state of an S3 bucket relevant to the bucket rules.
type BucketView struct {
	Name                string
	PolicyPublic        *bool
	ACLPublic           *bool
	PublicAccessBlocked *bool
	EncryptionEnabled   *bool
}

// Evaluate judges public policy, public ACL, block public access and default encryption.
func (v BucketView) Evaluate(c *severity.Classifier) []model.Observation {
	o := &observer{service: model.ServiceS3, resource: v.Name, region: model.GlobalRegion}

	o.judge(model.IssueS3PublicPolicy, v.PolicyPublic, c)
	o.judge(model.IssueS3PublicACL, v.ACLPublic, c)
	o.judge(model.IssueS3BlockPublicAccess, negate(v.PublicAccessBlocked), c)
	o.judge(model.IssueS3NotEncrypted, negate(v.EncryptionEnabled), c)

	return o.out
}

func negate(b *bool) *bool {
	if b == nil {
		return nil
	}
	return Bool(!*b)
}
