package events

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// InvalidationEventType is the CloudEvents type attribute carried by
// every invalidation notice.
const InvalidationEventType = "com.fieldcaptureflow.cache.invalidated"

// CloudEventPublisher delivers invalidations as CloudEvents over HTTP
// to the presentation layer's revalidation endpoint.
type CloudEventPublisher struct {
	client cloudevents.Client
	target string
	source string
}

// NewCloudEventPublisher builds a publisher posting to target. Source
// identifies the emitting binary, e.g. "fieldcaptureflow/capture-gateway".
func NewCloudEventPublisher(target, source string) (*CloudEventPublisher, error) {
	if target == "" {
		return nil, fmt.Errorf("events: revalidation target must be set")
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("events: create cloudevents client: %w", err)
	}
	return &CloudEventPublisher{client: client, target: target, source: source}, nil
}

func (p *CloudEventPublisher) Publish(ctx context.Context, invalidations ...Invalidation) error {
	for _, inv := range invalidations {
		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetType(InvalidationEventType)
		e.SetSource(p.source)
		if err := e.SetData(cloudevents.ApplicationJSON, inv); err != nil {
			return fmt.Errorf("events: encode invalidation %s/%s: %w", inv.Scope, inv.Key, err)
		}
		result := p.client.Send(cloudevents.ContextWithTarget(ctx, p.target), e)
		if cloudevents.IsUndelivered(result) || cloudevents.IsNACK(result) {
			return fmt.Errorf("events: deliver invalidation %s/%s: %w", inv.Scope, inv.Key, result)
		}
	}
	return nil
}
