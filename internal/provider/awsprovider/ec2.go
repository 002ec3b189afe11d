package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/clousec/clousec/internal/rules"
	"github.com/clousec/clousec/internal/scanner"
	"go.uber.org/zap"
)

// ListSecurityGroupIDs pages through the region's security groups.
func (p *Provider) ListSecurityGroupIDs(ctx context.Context, region string) ([]string, error) {
	var ids []string
	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.ec2For(region), &ec2.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("describing security groups in "+region, err)
		}
		for _, sg := range page.SecurityGroups {
			ids = append(ids, aws.ToString(sg.GroupId))
		}
	}
	return ids, nil
}

// DescribeSecurityGroup reads one group's inbound rules.
func (p *Provider) DescribeSecurityGroup(ctx context.Context, region, groupID string) (rules.SecurityGroupView, error) {
	output, err := p.ec2For(region).DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{groupID},
	})
	if err != nil {
		return rules.SecurityGroupView{}, wrap("describing security group "+groupID, err)
	}
	if len(output.SecurityGroups) == 0 {
		return rules.SecurityGroupView{}, scanner.ErrResourceNotFound
	}
	return securityGroupView(region, output.SecurityGroups[0]), nil
}

func securityGroupView(region string, sg ec2types.SecurityGroup) rules.SecurityGroupView {
	view := rules.SecurityGroupView{
		GroupID:   aws.ToString(sg.GroupId),
		GroupName: aws.ToString(sg.GroupName),
		Region:    region,
	}
	for _, perm := range sg.IpPermissions {
		rule := rules.IngressRule{
			Protocol: aws.ToString(perm.IpProtocol),
			FromPort: perm.FromPort,
			ToPort:   perm.ToPort,
		}
		for _, r := range perm.IpRanges {
			rule.CIDRs = append(rule.CIDRs, aws.ToString(r.CidrIp))
		}
		for _, r := range perm.Ipv6Ranges {
			rule.CIDRs = append(rule.CIDRs, aws.ToString(r.CidrIpv6))
		}
		view.Ingress = append(view.Ingress, rule)
	}
	return view
}

// ListInstanceIDs pages through the region's instances, skipping terminated ones.
func (p *Provider) ListInstanceIDs(ctx context.Context, region string) ([]string, error) {
	var ids []string
	paginator := ec2.NewDescribeInstancesPaginator(p.ec2For(region), &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("describing instances in "+region, err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				if terminated(inst) {
					continue
				}
				ids = append(ids, aws.ToString(inst.InstanceId))
			}
		}
	}
	return ids, nil
}

func terminated(inst ec2types.Instance) bool {
	return inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated
}

// DescribeInstance reads the instance, its metadata options and the encryption
// of its attached EBS volumes. Terminated instances are reported as not found.
func (p *Provider) DescribeInstance(ctx context.Context, region, instanceID string) (rules.InstanceView, error) {
	client := p.ec2For(region)

	output, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return rules.InstanceView{}, wrap("describing instance "+instanceID, err)
	}

	var inst *ec2types.Instance
	for _, reservation := range output.Reservations {
		for i := range reservation.Instances {
			inst = &reservation.Instances[i]
		}
	}
	if inst == nil || terminated(*inst) {
		return rules.InstanceView{}, scanner.ErrResourceNotFound
	}

	view := instanceView(region, *inst)
	if len(view.Volumes) == 0 {
		return view, nil
	}

	volumeIDs := make([]string, 0, len(view.Volumes))
	for _, v := range view.Volumes {
		volumeIDs = append(volumeIDs, v.VolumeID)
	}
	volumes, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: volumeIDs})
	if err != nil {
		p.logger.Warn("Failed to describe volumes", zap.String("instance_id", instanceID), zap.Error(err))
		return view, nil
	}
	applyVolumeEncryption(&view, volumes.Volumes)
	return view, nil
}

func instanceView(region string, inst ec2types.Instance) rules.InstanceView {
	view := rules.InstanceView{
		InstanceID: aws.ToString(inst.InstanceId),
		Region:     region,
		PublicIP:   aws.ToString(inst.PublicIpAddress),
	}
	if inst.State != nil {
		view.State = string(inst.State.Name)
	}
	if inst.MetadataOptions != nil {
		view.HTTPTokens = string(inst.MetadataOptions.HttpTokens)
		view.MetadataEndpoint = string(inst.MetadataOptions.HttpEndpoint)
	}
	for _, bdm := range inst.BlockDeviceMappings {
		if bdm.Ebs == nil || bdm.Ebs.VolumeId == nil {
			continue
		}
		view.Volumes = append(view.Volumes, rules.VolumeView{VolumeID: aws.ToString(bdm.Ebs.VolumeId)})
	}
	return view
}

// applyVolumeEncryption fills Encrypted for the volumes described; volumes
// missing from the response stay unknown.
func applyVolumeEncryption(view *rules.InstanceView, volumes []ec2types.Volume) {
	encrypted := make(map[string]*bool, len(volumes))
	for _, v := range volumes {
		encrypted[aws.ToString(v.VolumeId)] = v.Encrypted
	}
	for i := range view.Volumes {
		view.Volumes[i].Encrypted = encrypted[view.Volumes[i].VolumeID]
	}
}
