package model

// Issue names recorded on findings. They are part of each finding's identity,
// so renaming one orphans every finding recorded under the old name.
const (
	IssueS3PublicPolicy      = "Public bucket policy"
	IssueS3PublicACL         = "Public ACL enabled"
	IssueS3BlockPublicAccess = "Block Public Access disabled"
	IssueS3NotEncrypted      = "S3 bucket not encrypted"
	IssueSecurityGroupOpen   = "Security group open to world"
	IssueInstancePublicIP    = "EC2 instance has public IP"
	IssueInstanceIMDSv1      = "IMDSv1 enabled"
	IssueInstanceUnencrypted = "Unencrypted EBS volume attached"
	IssueIAMOverlyPermissive = "Overly permissive IAM policy"
)
