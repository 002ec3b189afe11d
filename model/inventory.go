package model

// Inventory is a read-only enumeration of in-scope resources. It carries no
// lifecycle state.
type Inventory struct {
	Regions        []string               `json:"regions"`
	EC2Instances   []InstanceSummary      `json:"ec2_instances"`
	SecurityGroups []SecurityGroupSummary `json:"security_groups"`
	S3Buckets      []BucketSummary        `json:"s3_buckets"`
	IAMUsers       []PrincipalSummary     `json:"iam_users"`
	IAMRoles       []PrincipalSummary     `json:"iam_roles"`
	Errors         []string               `json:"errors,omitempty"`
}

// InstanceSummary describes one EC2 instance in the inventory.
type InstanceSummary struct {
	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
	Type       string `json:"type"`
	Region     string `json:"region"`
}

// SecurityGroupSummary describes one security group in the inventory.
type SecurityGroupSummary struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Region    string `json:"region"`
}

// BucketSummary describes one S3 bucket in the inventory.
type BucketSummary struct {
	BucketName string `json:"bucket_name"`
}

// PrincipalSummary describes an IAM user or role.
type PrincipalSummary struct {
	Name string `json:"name"`
	ARN  string `json:"arn,omitempty"`
}
