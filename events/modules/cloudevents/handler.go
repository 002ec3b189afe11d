package cloudevents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clousec/clousec/model"
)

// ErrInvalidEvent is returned for an absent or unparseable event body.
var ErrInvalidEvent = errors.New("invalid event")

// Dispatcher queues a targeted scan without waiting for it. It reports false
// when the target was dropped or debounced.
type Dispatcher interface {
	Submit(ctx context.Context, target Target) bool
}

// Outcomes reported by Outcome
const (
	OutcomeRouted     = "routed"
	OutcomeUnroutable = "unroutable"
	OutcomeInvalid    = "invalid"
)

// ParseCloudEvent decodes an event envelope. Anything that is not a JSON object
// is rejected.
func ParseCloudEvent(msg []byte) (model.CloudEvent, error) {
	var ev model.CloudEvent

	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ev, ErrInvalidEvent
	}
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

// HandleCloudEvent parses msg, routes it and submits every target to the
// dispatcher. Only a malformed body is an error.
func HandleCloudEvent(
	ctx context.Context,
	msg []byte,
	router *Router,
	dispatcher Dispatcher,
) (Routing, error) {
	ev, err := ParseCloudEvent(msg)
	if err != nil {
		return Routing{}, err
	}

	routing := router.Route(ev)
	for _, target := range routing.Targets {
		dispatcher.Submit(ctx, target)
	}
	return routing, nil
}

// Outcome labels a HandleCloudEvent result for metrics.
func Outcome(routing Routing, err error) string {
	switch {
	case err != nil:
		return OutcomeInvalid
	case routing.Routed():
		return OutcomeRouted
	default:
		return OutcomeUnroutable
	}
}
