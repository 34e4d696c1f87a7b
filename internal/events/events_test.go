package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/cloudevents/sdk-go/v2/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureClient struct {
	sent []event.Event
}

func (c *captureClient) Send(ctx context.Context, e event.Event) protocol.Result {
	c.sent = append(c.sent, e)
	return nil
}

func (c *captureClient) Request(ctx context.Context, e event.Event) (*event.Event, protocol.Result) {
	return nil, protocol.ResultNACK
}

func (c *captureClient) StartReceiver(ctx context.Context, fn interface{}) error {
	return nil
}

func TestCloudEventPublisher_Publish(t *testing.T) {
	capture := &captureClient{}
	p := &CloudEventPublisher{client: capture, target: "http://cache.test/revalidate", source: "fieldcaptureflow/test"}

	err := p.Publish(context.Background(), SessionTouched("sess-1")...)
	require.NoError(t, err)
	require.Len(t, capture.sent, 3)

	first := capture.sent[0]
	assert.Equal(t, InvalidationEventType, first.Type())
	assert.Equal(t, "fieldcaptureflow/test", first.Source())
	assert.NotEmpty(t, first.ID())

	var inv Invalidation
	require.NoError(t, json.Unmarshal(capture.sent[1].Data(), &inv))
	assert.Equal(t, ScopeSession, inv.Scope)
	assert.Equal(t, "sess-1", inv.Key)
}

func TestSessionTouched(t *testing.T) {
	invs := SessionTouched("sess-9")
	require.Len(t, invs, 3)
	assert.Equal(t, Invalidation{Scope: ScopeSessions}, invs[0])
	assert.Equal(t, Invalidation{Scope: ScopeSession, Key: "sess-9"}, invs[1])
	assert.Equal(t, Invalidation{Scope: ScopeSessionGroups, Key: "sess-9"}, invs[2])
}

func TestLogPublisher(t *testing.T) {
	err := LogPublisher{}.Publish(context.Background(), SessionTouched("sess-2")...)
	assert.NoError(t, err)
}
