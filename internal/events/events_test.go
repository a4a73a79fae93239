package events_test

import (
	"context"
	"testing"

	"github.com/hallpass-app/hallpass/internal/events"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRoutingKey(t *testing.T) {
	e := &events.Event{Kind: model.KindSMS, Status: model.DeliverySent}
	assert.Equal(t, "sms.sent", events.RoutingKey(e))

	e = &events.Event{Kind: model.KindEmail, Status: model.DeliveryFailed}
	assert.Equal(t, "email.failed", events.RoutingKey(e))
}

func TestRecorder(t *testing.T) {
	r := &events.Recorder{}
	assert.NoError(t, r.Publish(context.Background(), &events.Event{MessageID: "a"}))
	assert.NoError(t, r.Publish(context.Background(), &events.Event{MessageID: "b"}))

	got := r.Events()
	if assert.Len(t, got, 2) {
		assert.Equal(t, "a", got[0].MessageID)
		assert.Equal(t, "b", got[1].MessageID)
	}
}

func TestNoop(t *testing.T) {
	var p events.Publisher = events.Noop{}
	assert.NoError(t, p.Publish(context.Background(), &events.Event{}))
	assert.NoError(t, p.Close())
}
