package cloudevents

import (
	"bytes"
	"encoding/json"

	"github.com/clousec/clousec/model"
)

// Event sources
const (
	SourceEC2 = "aws.ec2"
	SourceS3  = "aws.s3"
	SourceIAM = "aws.iam"
)

const anyEvent = "*"

// extractor turns a matched event into targets, or returns an unroutable reason.
type extractor func(ev model.CloudEvent) ([]Target, string)

// Router classifies events by (source, eventName) and extracts typed targets.
// It holds no state besides its routing table.
type Router struct {
	routes map[string]map[string]extractor
}

// NewRouter returns a router with the built-in routing table.
func NewRouter() *Router {
	return &Router{
		routes: map[string]map[string]extractor{
			SourceEC2: {
				"RunInstances":                  fromRunInstancesResponse,
				"StartInstances":                fromRequestInstances,
				"StopInstances":                 fromRequestInstances,
				"ModifyInstanceAttribute":       fromRequestInstances,
				"AuthorizeSecurityGroupIngress": fromRequestGroup,
				"RevokeSecurityGroupIngress":    fromRequestGroup,
			},
			SourceS3: {
				anyEvent: fromBucketRequest,
			},
			SourceIAM: {
				anyEvent: fromPrincipalRequest,
			},
		},
	}
}

// Route parses the event once and returns its targets. It never fails.
func (r *Router) Route(ev model.CloudEvent) Routing {
	bySource, ok := r.routes[ev.Source]
	if !ok {
		return Routing{Unroutable: "unknown source " + quote(ev.Source)}
	}

	extract, ok := bySource[ev.Detail.EventName]
	if !ok {
		extract, ok = bySource[anyEvent]
	}
	if !ok {
		return Routing{Unroutable: "unhandled event " + quote(ev.Detail.EventName) + " for " + ev.Source}
	}

	targets, reason := extract(ev)
	if reason != "" {
		return Routing{Unroutable: reason}
	}
	return Routing{Targets: targets}
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return s
}

type instanceItems struct {
	Items []struct {
		InstanceID string `json:"instanceId"`
	} `json:"items"`
}

type instanceRequestParams struct {
	InstanceID   string        `json:"instanceId"`
	InstancesSet instanceItems `json:"instancesSet"`
}

type runInstancesResponse struct {
	InstancesSet instanceItems `json:"instancesSet"`
}

type groupRequestParams struct {
	GroupID string `json:"groupId"`
}

type bucketRequestParams struct {
	BucketName string `json:"bucketName"`
}

type principalRequestParams struct {
	UserName string `json:"userName"`
	RoleName string `json:"roleName"`
}

// decode reports false for missing, null or mistyped payloads.
func decode(raw json.RawMessage, v any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func instanceTargets(region string, ids []string) []Target {
	seen := make(map[string]bool, len(ids))
	var targets []Target
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, Target{Kind: KindInstance, Region: region, ResourceID: id})
	}
	return targets
}

func (s instanceItems) ids() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.InstanceID)
	}
	return ids
}

func fromRunInstancesResponse(ev model.CloudEvent) ([]Target, string) {
	var resp runInstancesResponse
	if !decode(ev.Detail.ResponseElements, &resp) {
		return nil, "RunInstances without responseElements"
	}
	targets := instanceTargets(ev.EffectiveRegion(), resp.InstancesSet.ids())
	if len(targets) == 0 {
		return nil, "RunInstances without instance ids"
	}
	return targets, ""
}

func fromRequestInstances(ev model.CloudEvent) ([]Target, string) {
	var req instanceRequestParams
	if !decode(ev.Detail.RequestParameters, &req) {
		return nil, ev.Detail.EventName + " without requestParameters"
	}
	ids := append([]string{req.InstanceID}, req.InstancesSet.ids()...)
	targets := instanceTargets(ev.EffectiveRegion(), ids)
	if len(targets) == 0 {
		return nil, ev.Detail.EventName + " without instanceId"
	}
	return targets, ""
}

func fromRequestGroup(ev model.CloudEvent) ([]Target, string) {
	var req groupRequestParams
	if !decode(ev.Detail.RequestParameters, &req) || req.GroupID == "" {
		return nil, ev.Detail.EventName + " without groupId"
	}
	return []Target{{Kind: KindSecurityGroup, Region: ev.EffectiveRegion(), ResourceID: req.GroupID}}, ""
}

func fromBucketRequest(ev model.CloudEvent) ([]Target, string) {
	var req bucketRequestParams
	if !decode(ev.Detail.RequestParameters, &req) || req.BucketName == "" {
		return nil, "s3 event without bucketName"
	}
	return []Target{{Kind: KindBucket, Region: model.GlobalRegion, ResourceID: req.BucketName}}, ""
}

func fromPrincipalRequest(ev model.CloudEvent) ([]Target, string) {
	var req principalRequestParams
	if !decode(ev.Detail.RequestParameters, &req) {
		return nil, "iam event without requestParameters"
	}

	var targets []Target
	if req.UserName != "" {
		targets = append(targets, Target{Kind: KindUser, Region: model.GlobalRegion, ResourceID: req.UserName})
	}
	if req.RoleName != "" {
		targets = append(targets, Target{Kind: KindRole, Region: model.GlobalRegion, ResourceID: req.RoleName})
	}
	if len(targets) == 0 {
		return nil, "iam event without userName or roleName"
	}
	return targets, ""
}
