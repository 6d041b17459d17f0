package nats

import (
	"encoding/json"
	"testing"
	"time"

	"buddyboard-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := events.NewNoteShapesUpdated("n1", "u1", "i1", 3, at)

	data, err := json.Marshal(map[string]interface{}{
		"note_id":     "n1",
		"user_id":     "u1",
		"shape_count": 3,
		"occurred_at": at.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	got, err := DecodeEvent(Subject(evt.EventType()), data)
	require.NoError(t, err)
	assert.Equal(t, events.NoteShapesUpdated, got.EventType())
	assert.True(t, at.Equal(got.Timestamp()))
	assert.Equal(t, "n1", got.Payload()["note_id"])
	assert.Equal(t, float64(3), got.Payload()["shape_count"])
	assert.NotContains(t, got.Payload(), "occurred_at")

	_, err = DecodeEvent("events.X", []byte("{"))
	assert.Error(t, err)
}
