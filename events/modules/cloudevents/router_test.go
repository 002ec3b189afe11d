package cloudevents

import (
	"context"
	"sync"
	"testing"

	"github.com/clousec/clousec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	targets []Target
}

func (d *recordingDispatcher) Submit(_ context.Context, t Target) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, t)
	return true
}

func TestHandleCloudEvent_StopInstances(t *testing.T) {
	d := &recordingDispatcher{}
	msg := []byte(`{"source":"aws.ec2","detail":{"eventName":"StopInstances","requestParameters":{"instanceId":"i-1"}}}`)

	routing, err := HandleCloudEvent(context.Background(), msg, NewRouter(), d)
	require.NoError(t, err)
	assert.True(t, routing.Routed())
	require.Len(t, d.targets, 1)
	assert.Equal(t, Target{Kind: KindInstance, ResourceID: "i-1"}, d.targets[0])
	assert.Equal(t, OutcomeRouted, Outcome(routing, err))
}

func TestHandleCloudEvent_UnknownSource(t *testing.T) {
	d := &recordingDispatcher{}
	msg := []byte(`{"source":"aws.unknown","detail":{"eventName":"Foo"}}`)

	routing, err := HandleCloudEvent(context.Background(), msg, NewRouter(), d)
	require.NoError(t, err)
	assert.False(t, routing.Routed())
	assert.NotEmpty(t, routing.Unroutable)
	assert.Empty(t, d.targets)
	assert.Equal(t, OutcomeUnroutable, Outcome(routing, err))
}

func TestHandleCloudEvent_Invalid(t *testing.T) {
	for _, body := range []string{"", "   ", "null", "[]", "{not json", `"text"`} {
		d := &recordingDispatcher{}
		routing, err := HandleCloudEvent(context.Background(), []byte(body), NewRouter(), d)
		assert.ErrorIs(t, err, ErrInvalidEvent, body)
		assert.Empty(t, d.targets)
		assert.Equal(t, OutcomeInvalid, Outcome(routing, err))
	}
}

func event(source, name, region, request, response string) model.CloudEvent {
	ev := model.CloudEvent{Source: source, Region: region}
	ev.Detail.EventName = name
	if request != "" {
		ev.Detail.RequestParameters = []byte(request)
	}
	if response != "" {
		ev.Detail.ResponseElements = []byte(response)
	}
	return ev
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter()

	tests := []struct {
		name       string
		ev         model.CloudEvent
		want       []Target
		unroutable bool
	}{
		{
			name: "run instances uses response items",
			ev: event("aws.ec2", "RunInstances", "eu-west-1", "",
				`{"instancesSet":{"items":[{"instanceId":"i-a"},{"instanceId":"i-b"}]}}`),
			want: []Target{
				{Kind: KindInstance, Region: "eu-west-1", ResourceID: "i-a"},
				{Kind: KindInstance, Region: "eu-west-1", ResourceID: "i-b"},
			},
		},
		{
			name:       "run instances without response",
			ev:         event("aws.ec2", "RunInstances", "eu-west-1", "", ""),
			unroutable: true,
		},
		{
			name: "start instances from instancesSet",
			ev: event("aws.ec2", "StartInstances", "us-east-1",
				`{"instancesSet":{"items":[{"instanceId":"i-1"},{"instanceId":"i-1"},{"instanceId":"i-2"}]}}`, ""),
			want: []Target{
				{Kind: KindInstance, Region: "us-east-1", ResourceID: "i-1"},
				{Kind: KindInstance, Region: "us-east-1", ResourceID: "i-2"},
			},
		},
		{
			name: "modify instance attribute",
			ev:   event("aws.ec2", "ModifyInstanceAttribute", "us-east-1", `{"instanceId":"i-9"}`, ""),
			want: []Target{{Kind: KindInstance, Region: "us-east-1", ResourceID: "i-9"}},
		},
		{
			name:       "stop instances without instance id",
			ev:         event("aws.ec2", "StopInstances", "us-east-1", `{"force":true}`, ""),
			unroutable: true,
		},
		{
			name: "authorize ingress",
			ev:   event("aws.ec2", "AuthorizeSecurityGroupIngress", "us-east-2", `{"groupId":"sg-1"}`, ""),
			want: []Target{{Kind: KindSecurityGroup, Region: "us-east-2", ResourceID: "sg-1"}},
		},
		{
			name:       "revoke ingress by group name only",
			ev:         event("aws.ec2", "RevokeSecurityGroupIngress", "us-east-2", `{"groupName":"default"}`, ""),
			unroutable: true,
		},
		{
			name:       "unhandled ec2 event",
			ev:         event("aws.ec2", "CreateTags", "us-east-1", `{"resourcesSet":{}}`, ""),
			unroutable: true,
		},
		{
			name: "any s3 event with bucket",
			ev:   event("aws.s3", "PutBucketAcl", "us-east-1", `{"bucketName":"media"}`, ""),
			want: []Target{{Kind: KindBucket, Region: model.GlobalRegion, ResourceID: "media"}},
		},
		{
			name:       "s3 event without bucket",
			ev:         event("aws.s3", "ListBuckets", "us-east-1", `null`, ""),
			unroutable: true,
		},
		{
			name: "iam user and role",
			ev:   event("aws.iam", "PutUserPolicy", "us-east-1", `{"userName":"ci","roleName":"deploy"}`, ""),
			want: []Target{
				{Kind: KindUser, Region: model.GlobalRegion, ResourceID: "ci"},
				{Kind: KindRole, Region: model.GlobalRegion, ResourceID: "deploy"},
			},
		},
		{
			name:       "iam event without principal",
			ev:         event("aws.iam", "CreatePolicy", "us-east-1", `{"policyName":"p"}`, ""),
			unroutable: true,
		},
		{
			name:       "mistyped payload",
			ev:         event("aws.ec2", "StopInstances", "us-east-1", `{"instanceId":42}`, ""),
			unroutable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routing := router.Route(tt.ev)
			if tt.unroutable {
				assert.False(t, routing.Routed())
				assert.NotEmpty(t, routing.Unroutable)
				assert.Empty(t, routing.Targets)
				return
			}
			assert.Empty(t, routing.Unroutable)
			assert.Equal(t, tt.want, routing.Targets)
		})
	}
}

func TestRouter_RegionFallsBackToTrailRecord(t *testing.T) {
	ev := event("aws.ec2", "StopInstances", "", `{"instanceId":"i-1"}`, "")
	ev.Detail.AWSRegion = "ap-south-1"

	routing := NewRouter().Route(ev)
	require.Len(t, routing.Targets, 1)
	assert.Equal(t, "ap-south-1", routing.Targets[0].Region)
}

func TestUnwrapPublished(t *testing.T) {
	bare := []byte(`{"source":"aws.ec2"}`)
	assert.Equal(t, bare, UnwrapPublished(bare))

	wrapped := []byte(`{"event_id":"1","schema_version":"v1","event":{"source":"aws.s3"}}`)
	assert.JSONEq(t, `{"source":"aws.s3"}`, string(UnwrapPublished(wrapped)))
}
