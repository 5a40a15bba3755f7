package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEnvelope(t *testing.T) {
	type payload struct {
		ReviewID int64 `json:"review_id"`
	}

	evt, err := NewEvent("review.created", "42", "book", "bookshelf-api", payload{ReviewID: 7})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, "review.created", evt.EventType)
	assert.Equal(t, "42", evt.AggregateID)
	assert.Equal(t, "book", evt.AggregateType)
	assert.Equal(t, 1, evt.Version)
	assert.False(t, evt.Timestamp.IsZero())

	var got payload
	require.NoError(t, evt.UnmarshalData(&got))
	assert.Equal(t, int64(7), got.ReviewID)
}

func TestEventMarshalRoundTrip(t *testing.T) {
	evt, err := NewEvent("review.created", "1", "book", "bookshelf-api", map[string]int{"rating": 5})
	require.NoError(t, err)
	evt.WithCorrelationID("corr-123")

	data, err := evt.Marshal()
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.Equal(t, "corr-123", decoded.CorrelationID)
}
