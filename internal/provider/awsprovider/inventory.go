package awsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/clousec/clousec/model"
)

// Inventory enumerates the in-scope resources of the given regions. A failed
// listing is recorded in Errors and the rest of the inventory is still returned.
func (p *Provider) Inventory(ctx context.Context, regions []string) model.Inventory {
	inv := model.Inventory{
		Regions:        regions,
		EC2Instances:   []model.InstanceSummary{},
		SecurityGroups: []model.SecurityGroupSummary{},
		S3Buckets:      []model.BucketSummary{},
		IAMUsers:       []model.PrincipalSummary{},
		IAMRoles:       []model.PrincipalSummary{},
	}
	fail := func(what string, err error) {
		inv.Errors = append(inv.Errors, fmt.Sprintf("%s: %v", what, err))
	}

	for _, region := range regions {
		client := p.ec2For(region)

		instances := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
		for instances.HasMorePages() {
			page, err := instances.NextPage(ctx)
			if err != nil {
				fail("ec2 instances in "+region, err)
				break
			}
			for _, reservation := range page.Reservations {
				for _, inst := range reservation.Instances {
					summary := model.InstanceSummary{
						InstanceID: aws.ToString(inst.InstanceId),
						Type:       string(inst.InstanceType),
						Region:     region,
					}
					if inst.State != nil {
						summary.State = string(inst.State.Name)
					}
					inv.EC2Instances = append(inv.EC2Instances, summary)
				}
			}
		}

		groups := ec2.NewDescribeSecurityGroupsPaginator(client, &ec2.DescribeSecurityGroupsInput{})
		for groups.HasMorePages() {
			page, err := groups.NextPage(ctx)
			if err != nil {
				fail("security groups in "+region, err)
				break
			}
			for _, sg := range page.SecurityGroups {
				inv.SecurityGroups = append(inv.SecurityGroups, model.SecurityGroupSummary{
					GroupID:   aws.ToString(sg.GroupId),
					GroupName: aws.ToString(sg.GroupName),
					Region:    region,
				})
			}
		}
	}

	buckets, err := p.s3For(p.defaultRegion).ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		fail("s3 buckets", err)
	} else {
		for _, b := range buckets.Buckets {
			inv.S3Buckets = append(inv.S3Buckets, model.BucketSummary{BucketName: aws.ToString(b.Name)})
		}
	}

	users := iam.NewListUsersPaginator(p.iam, &iam.ListUsersInput{})
	for users.HasMorePages() {
		page, err := users.NextPage(ctx)
		if err != nil {
			fail("iam users", err)
			break
		}
		for _, u := range page.Users {
			inv.IAMUsers = append(inv.IAMUsers, model.PrincipalSummary{Name: aws.ToString(u.UserName), ARN: aws.ToString(u.Arn)})
		}
	}

	roles := iam.NewListRolesPaginator(p.iam, &iam.ListRolesInput{})
	for roles.HasMorePages() {
		page, err := roles.NextPage(ctx)
		if err != nil {
			fail("iam roles", err)
			break
		}
		for _, r := range page.Roles {
			inv.IAMRoles = append(inv.IAMRoles, model.PrincipalSummary{Name: aws.ToString(r.RoleName), ARN: aws.ToString(r.Arn)})
		}
	}

	return inv
}
