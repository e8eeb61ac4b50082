package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []*domain.ChangeEvent
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, event *domain.ChangeEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func eventBody(t *testing.T, changeType string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.ChangeEvent{
		ChangeType:  changeType,
		Document:    map[string]string{"FileName": "people_x.csv"},
		PublishedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

func TestSubscriber_HandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		body        func(t *testing.T) []byte
		handlerErr  error
		want        ackDecision
		wantHandled int
	}{
		{
			name:        "handled event is acknowledged",
			body:        func(t *testing.T) []byte { return eventBody(t, "Created") },
			want:        ackMessage,
			wantHandled: 1,
		},
		{
			name:        "handler failure requeues the event",
			body:        func(t *testing.T) []byte { return eventBody(t, "Created") },
			handlerErr:  errors.New("smtp down"),
			want:        nackRequeue,
			wantHandled: 1,
		},
		{
			name:        "undecodable event is dropped without the handler",
			body:        func(*testing.T) []byte { return []byte(`{not json`) },
			want:        ackMessage,
			wantHandled: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &recordingHandler{err: tt.handlerErr}
			subscriber := NewSubscriber(nil, "csv-changes-topic", "test-subscriber", testLogger())

			decision := subscriber.handleDelivery(context.Background(), handler, tt.body(t))

			assert.Equal(t, tt.want, decision)
			assert.Len(t, handler.events, tt.wantHandled)
		})
	}
}

func TestSubscriber_HandleDelivery_DecodesEnvelope(t *testing.T) {
	handler := &recordingHandler{}
	subscriber := NewSubscriber(nil, "csv-changes-topic", "test-subscriber", testLogger())

	decision := subscriber.handleDelivery(context.Background(), handler, eventBody(t, "Created"))

	assert.Equal(t, ackMessage, decision)
	require.Len(t, handler.events, 1)
	assert.Equal(t, "Created", handler.events[0].ChangeType)
	assert.False(t, handler.events[0].PublishedAt.IsZero())
}
