// Package scanner runs the scan rule evaluators over provider reads, for full
// sweeps and for event-triggered targeted scans, and feeds the observations to
// the lifecycle reconciler.
package scanner

import (
	"context"
	"errors"

	"github.com/clousec/clousec/internal/rules"
)

// ErrResourceNotFound is returned by inspectors when the resource no longer
// exists. The resource is skipped; nothing is resolved.
var ErrResourceNotFound = errors.New("resource not found")

// BucketInspector reads S3 buckets.
type BucketInspector interface {
	ListBuckets(ctx context.Context) ([]string, error)
	InspectBucket(ctx context.Context, name string) (rules.BucketView, error)
}

// SecurityGroupInspector reads EC2 security groups in one region.
type SecurityGroupInspector interface {
	ListSecurityGroupIDs(ctx context.Context, region string) ([]string, error)
	DescribeSecurityGroup(ctx context.Context, region, groupID string) (rules.SecurityGroupView, error)
}

// InstanceInspector reads EC2 instances in one region.
type InstanceInspector interface {
	ListInstanceIDs(ctx context.Context, region string) ([]string, error)
	DescribeInstance(ctx context.Context, region, instanceID string) (rules.InstanceView, error)
}

// PrincipalInspector reads IAM roles and users with their policy documents.
type PrincipalInspector interface {
	ListRoles(ctx context.Context) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)
	InspectRole(ctx context.Context, name string) (rules.PrincipalView, error)
	InspectUser(ctx context.Context, name string) (rules.PrincipalView, error)
}

// RegionLister enumerates the enabled regions.
type RegionLister interface {
	Regions(ctx context.Context) ([]string, error)
	DefaultRegion() string
}

// Inspectors groups the provider capabilities a Scanner uses.
type Inspectors struct {
	Buckets        BucketInspector
	SecurityGroups SecurityGroupInspector
	Instances      InstanceInspector
	Principals     PrincipalInspector
	Regions        RegionLister
}
