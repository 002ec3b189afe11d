package awsprovider

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/clousec/clousec/internal/rules"
	"go.uber.org/zap"
)

// ListBuckets returns every bucket name in the account.
func (p *Provider) ListBuckets(ctx context.Context) ([]string, error) {
	output, err := p.s3For(p.defaultRegion).ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, wrap("listing buckets", err)
	}

	names := make([]string, 0, len(output.Buckets))
	for _, b := range output.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// InspectBucket reads the bucket's policy status, ACL, public access block and
// default encryption from the bucket's own region.
func (p *Provider) InspectBucket(ctx context.Context, name string) (rules.BucketView, error) {
	view := rules.BucketView{Name: name}

	loc, err := p.s3For(p.defaultRegion).GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return view, wrap("getting bucket location "+name, err)
	}
	client := p.s3For(bucketRegion(loc.LocationConstraint))

	checks := []struct {
		name  string
		into  **bool
		check func(context.Context, s3API, string) (*bool, error)
	}{
		{"policy status", &view.PolicyPublic, policyPublic},
		{"acl", &view.ACLPublic, aclPublic},
		{"public access block", &view.PublicAccessBlocked, publicAccessBlocked},
		{"encryption", &view.EncryptionEnabled, encryptionEnabled},
	}

	for _, c := range checks {
		value, err := c.check(ctx, client, name)
		if err != nil {
			if notFoundCodes[errorCode(err)] {
				return view, wrap("reading bucket "+name, err)
			}
			p.logger.Warn("Failed to read bucket attribute",
				zap.String("bucket", name),
				zap.String("attribute", c.name),
				zap.Error(err))
			continue
		}
		*c.into = value
	}
	return view, nil
}

func bucketRegion(constraint s3types.BucketLocationConstraint) string {
	switch constraint {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	}
	return string(constraint)
}

func policyPublic(ctx context.Context, client s3API, name string) (*bool, error) {
	output, err := client.GetBucketPolicyStatus(ctx, &s3.GetBucketPolicyStatusInput{Bucket: aws.String(name)})
	if hasCode(err, "NoSuchBucketPolicy") {
		return aws.Bool(false), nil
	}
	if err != nil {
		return nil, err
	}
	if output.PolicyStatus == nil {
		return aws.Bool(false), nil
	}
	return aws.Bool(aws.ToBool(output.PolicyStatus.IsPublic)), nil
}

func aclPublic(ctx context.Context, client s3API, name string) (*bool, error) {
	output, err := client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(name)})
	if err != nil {
		return nil, err
	}
	return aws.Bool(grantsPublic(output.Grants)), nil
}

// grantsPublic reports whether any grant goes to the AllUsers or
// AuthenticatedUsers groups.
func grantsPublic(grants []s3types.Grant) bool {
	for _, g := range grants {
		if g.Grantee == nil {
			continue
		}
		uri := aws.ToString(g.Grantee.URI)
		if strings.HasSuffix(uri, "/global/AllUsers") || strings.HasSuffix(uri, "/global/AuthenticatedUsers") {
			return true
		}
	}
	return false
}

func publicAccessBlocked(ctx context.Context, client s3API, name string) (*bool, error) {
	output, err := client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)})
	if hasCode(err, "NoSuchPublicAccessBlockConfiguration") {
		return aws.Bool(false), nil
	}
	if err != nil {
		return nil, err
	}

	pab := output.PublicAccessBlockConfiguration
	if pab == nil {
		return aws.Bool(false), nil
	}
	return aws.Bool(aws.ToBool(pab.BlockPublicAcls) &&
		aws.ToBool(pab.BlockPublicPolicy) &&
		aws.ToBool(pab.IgnorePublicAcls) &&
		aws.ToBool(pab.RestrictPublicBuckets)), nil
}

func encryptionEnabled(ctx context.Context, client s3API, name string) (*bool, error) {
	output, err := client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)})
	if hasCode(err, "ServerSideEncryptionConfigurationNotFoundError") {
		return aws.Bool(false), nil
	}
	if err != nil {
		return nil, err
	}
	enabled := output.ServerSideEncryptionConfiguration != nil && len(output.ServerSideEncryptionConfiguration.Rules) > 0
	return aws.Bool(enabled), nil
}
