package model

import "encoding/json"

// CloudEvent is the envelope of an inbound cloud audit event, as delivered by
// EventBridge (or forwarded over Kafka/NATS). It is consumed once by the event
// router and never persisted.
type CloudEvent struct {
	ID         string      `json:"id,omitempty"`
	Source     string      `json:"source"`
	Region     string      `json:"region"`
	DetailType string      `json:"detail-type,omitempty"`
	Detail     EventDetail `json:"detail"`
}

// EventDetail carries the CloudTrail record. Request and response payloads stay
// raw until the router picks a route and decodes them into the shape that route expects.
type EventDetail struct {
	EventName         string          `json:"eventName"`
	EventSource       string          `json:"eventSource,omitempty"`
	AWSRegion         string          `json:"awsRegion,omitempty"`
	RequestParameters json.RawMessage `json:"requestParameters,omitempty"`
	ResponseElements  json.RawMessage `json:"responseElements,omitempty"`
}

// EffectiveRegion returns the envelope region, falling back to the CloudTrail
// awsRegion field for raw trail records.
func (e CloudEvent) EffectiveRegion() string {
	if e.Region != "" {
		return e.Region
	}
	return e.Detail.AWSRegion
}
