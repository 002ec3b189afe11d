package rules

import (
	"testing"

	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifier() *severity.Classifier {
	return severity.NewClassifier(severity.DefaultPolicy())
}

func byIssue(obs []model.Observation) map[string]model.Observation {
	out := make(map[string]model.Observation, len(obs))
	for _, o := range obs {
		out[o.Issue] = o
	}
	return out
}

func TestBucketView_AllKnown(t *testing.T) {
	view := BucketView{
		Name:                "media",
		PolicyPublic:        Bool(true),
		ACLPublic:           Bool(false),
		PublicAccessBlocked: Bool(false),
		EncryptionEnabled:   Bool(true),
	}

	obs := byIssue(view.Evaluate(classifier()))
	require.Len(t, obs, 4)

	assert.True(t, obs[model.IssueS3PublicPolicy].Present)
	assert.Equal(t, model.SeverityHigh, obs[model.IssueS3PublicPolicy].Severity)
	assert.False(t, obs[model.IssueS3PublicACL].Present)
	assert.True(t, obs[model.IssueS3BlockPublicAccess].Present)
	assert.False(t, obs[model.IssueS3NotEncrypted].Present)

	for _, o := range obs {
		assert.Equal(t, model.ServiceS3, o.Service)
		assert.Equal(t, "media", o.ResourceID)
		assert.Equal(t, model.GlobalRegion, o.Region)
	}
}

func TestBucketView_UnknownAttributesAreSkipped(t *testing.T) {
	view := BucketView{
		Name:              "logs",
		EncryptionEnabled: Bool(false),
	}

	obs := view.Evaluate(classifier())
	require.Len(t, obs, 1)
	assert.Equal(t, model.IssueS3NotEncrypted, obs[0].Issue)
	assert.True(t, obs[0].Present)
	assert.Equal(t, model.SeverityMedium, obs[0].Severity)
}

func TestSecurityGroupView_HighestSeverityWins(t *testing.T) {
	view := SecurityGroupView{
		GroupID: "sg-1",
		Region:  "eu-west-1",
		Ingress: []IngressRule{
			{Protocol: "tcp", FromPort: Int32(443), ToPort: Int32(443), CIDRs: []string{"0.0.0.0/0"}},
			{Protocol: "tcp", FromPort: Int32(22), ToPort: Int32(22), CIDRs: []string{"0.0.0.0/0"}},
			{Protocol: "tcp", FromPort: Int32(0), ToPort: Int32(65535), CIDRs: []string{"10.0.0.0/8"}},
		},
	}

	obs := view.Evaluate(classifier())
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Present)
	assert.Equal(t, model.SeverityHigh, obs[0].Severity)
	assert.Equal(t, "sg-1", obs[0].ResourceID)
	assert.Equal(t, "eu-west-1", obs[0].Region)
	assert.Equal(t, model.ServiceEC2, obs[0].Service)
}

func TestSecurityGroupView_ClosedGroupResolves(t *testing.T) {
	view := SecurityGroupView{
		GroupID: "sg-2",
		Region:  "us-east-1",
		Ingress: []IngressRule{
			{Protocol: "tcp", FromPort: Int32(22), ToPort: Int32(22), CIDRs: []string{"192.168.0.0/16"}},
		},
	}

	obs := view.Evaluate(classifier())
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Present)
	assert.Equal(t, model.IssueSecurityGroupOpen, obs[0].Issue)
}

func TestSecurityGroupView_IPv6World(t *testing.T) {
	view := SecurityGroupView{
		GroupID: "sg-3",
		Region:  "us-east-1",
		Ingress: []IngressRule{{Protocol: "-1", CIDRs: []string{"::/0"}}},
	}

	obs := view.Evaluate(classifier())
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Present)
	assert.Equal(t, model.SeverityCritical, obs[0].Severity)
}

func TestInstanceView(t *testing.T) {
	view := InstanceView{
		InstanceID:       "i-1",
		Region:           "us-east-1",
		PublicIP:         "54.1.2.3",
		HTTPTokens:       "optional",
		MetadataEndpoint: "enabled",
		Volumes: []VolumeView{
			{VolumeID: "vol-1", Encrypted: Bool(true)},
			{VolumeID: "vol-2", Encrypted: Bool(false)},
		},
	}

	obs := byIssue(view.Evaluate(classifier()))
	require.Len(t, obs, 3)
	assert.True(t, obs[model.IssueInstancePublicIP].Present)
	assert.True(t, obs[model.IssueInstanceIMDSv1].Present)
	assert.Equal(t, model.SeverityMedium, obs[model.IssueInstanceIMDSv1].Severity)
	assert.True(t, obs[model.IssueInstanceUnencrypted].Present)
	assert.Equal(t, model.SeverityHigh, obs[model.IssueInstanceUnencrypted].Severity)
}

func TestInstanceView_HardenedInstance(t *testing.T) {
	view := InstanceView{
		InstanceID:       "i-2",
		Region:           "us-east-1",
		HTTPTokens:       "required",
		MetadataEndpoint: "enabled",
		Volumes:          []VolumeView{{VolumeID: "vol-1", Encrypted: Bool(true)}},
	}

	for _, o := range view.Evaluate(classifier()) {
		assert.False(t, o.Present, o.Issue)
	}
}

func TestInstanceView_UnknownVolumeBlocksResolve(t *testing.T) {
	view := InstanceView{
		InstanceID: "i-3",
		Region:     "us-east-1",
		Volumes: []VolumeView{
			{VolumeID: "vol-1", Encrypted: Bool(true)},
			{VolumeID: "vol-2"},
		},
	}

	obs := byIssue(view.Evaluate(classifier()))
	assert.NotContains(t, obs, model.IssueInstanceUnencrypted)
	assert.NotContains(t, obs, model.IssueInstanceIMDSv1)
	assert.Contains(t, obs, model.IssueInstancePublicIP)
}

func TestInstanceView_MetadataDisabled(t *testing.T) {
	view := InstanceView{InstanceID: "i-4", Region: "us-east-1", HTTPTokens: "optional", MetadataEndpoint: "disabled"}

	obs := byIssue(view.Evaluate(classifier()))
	assert.False(t, obs[model.IssueInstanceIMDSv1].Present)
}

func TestPrincipalView(t *testing.T) {
	permissive, err := ParsePolicyDocument(`{"Version":"2012-10-17","Statement":{"Effect":"Allow","Action":"*","Resource":"arn:aws:s3:::x"}}`)
	require.NoError(t, err)
	scoped, err := ParsePolicyDocument(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["s3:GetObject"],"Resource":["arn:aws:s3:::x/*"]}]}`)
	require.NoError(t, err)

	t.Run("permissive role", func(t *testing.T) {
		view := PrincipalView{Kind: PrincipalRole, Name: "admin", Policies: []PolicyDocumentView{
			{Source: "scoped", Document: scoped},
			{Source: "admin", Document: permissive},
		}}
		obs := view.Evaluate(classifier())
		require.Len(t, obs, 1)
		assert.True(t, obs[0].Present)
		assert.Equal(t, model.SeverityCritical, obs[0].Severity)
		assert.Equal(t, "admin", obs[0].ResourceID)
		assert.Equal(t, model.GlobalRegion, obs[0].Region)
	})

	t.Run("scoped user", func(t *testing.T) {
		view := PrincipalView{Kind: PrincipalUser, Name: "ci", Policies: []PolicyDocumentView{{Source: "scoped", Document: scoped}}}
		obs := view.Evaluate(classifier())
		require.Len(t, obs, 1)
		assert.False(t, obs[0].Present)
		assert.Equal(t, "user/ci", obs[0].ResourceID)
	})

	t.Run("unreadable policy blocks resolve", func(t *testing.T) {
		view := PrincipalView{Kind: PrincipalRole, Name: "app", Policies: []PolicyDocumentView{
			{Source: "scoped", Document: scoped},
			{Source: "broken"},
		}}
		assert.Empty(t, view.Evaluate(classifier()))
	})

	t.Run("unreadable policy does not hide a permissive one", func(t *testing.T) {
		view := PrincipalView{Kind: PrincipalRole, Name: "app", Policies: []PolicyDocumentView{
			{Source: "broken"},
			{Source: "admin", Document: permissive},
		}}
		obs := view.Evaluate(classifier())
		require.Len(t, obs, 1)
		assert.True(t, obs[0].Present)
	})
}

func TestParsePolicyDocument_URLEncoded(t *testing.T) {
	raw := "%7B%22Version%22%3A%222012-10-17%22%2C%22Statement%22%3A%5B%7B%22Effect%22%3A%22Allow%22%2C%22Action%22%3A%22s3%3AGetObject%22%2C%22Resource%22%3A%22%2A%22%7D%5D%7D"

	doc, err := ParsePolicyDocument(raw)
	require.NoError(t, err)
	assert.True(t, doc.OverlyPermissive())
}

func TestParsePolicyDocument_KeepsLiteralPlus(t *testing.T) {
	raw := "%7B%22Statement%22%3A%5B%7B%22Effect%22%3A%22Allow%22%2C%22Action%22%3A%22s3%3AGetObject%22%2C%22Resource%22%3A%22arn%3Aaws%3As3%3A%3A%3Aa+b%2F%2A%22%7D%5D%7D"

	doc, err := ParsePolicyDocument(raw)
	require.NoError(t, err)
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, stringOrList{"arn:aws:s3:::a+b/*"}, doc.Statement[0].Resource)
}

func TestPolicyDocument_DenyIsIgnored(t *testing.T) {
	doc, err := ParsePolicyDocument(`{"Statement":[{"Effect":"Deny","Action":"*","Resource":"*"}]}`)
	require.NoError(t, err)
	assert.False(t, doc.OverlyPermissive())
}

func TestParsePolicyDocument_Invalid(t *testing.T) {
	_, err := ParsePolicyDocument(`{"Statement": 12}`)
	assert.Error(t, err)
}
