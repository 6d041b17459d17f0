package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "join", raw: `{"op":"join","documentId":"d1"}`},
		{name: "leave", raw: `{"op":"leave","documentId":"d1"}`},
		{name: "shape update", raw: `{"op":"shapeUpdate","documentId":"d1","shapes":[]}`},
		{name: "cursor move", raw: `{"op":"cursorMove","documentId":"d1","position":{"x":1,"y":2}}`},
		{name: "join without document", raw: `{"op":"join"}`, wantErr: true},
		{name: "update without shapes", raw: `{"op":"shapeUpdate","documentId":"d1"}`, wantErr: true},
		{name: "cursor without position", raw: `{"op":"cursorMove","documentId":"d1"}`, wantErr: true},
		{name: "unknown op", raw: `{"op":"rename","documentId":"d1"}`, wantErr: true},
		{name: "not json", raw: `join d1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncodeOmitsUnusedFields(t *testing.T) {
	data := Encode(Join("d1"))
	assert.JSONEq(t, `{"op":"join","documentId":"d1"}`, string(data))

	data = Encode(ShapeUpdate("d1", json.RawMessage(`[{"id":"a"}]`)))
	m, err := Decode(data)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(m.Shapes))

	m, err = Decode(Encode(CursorMove("d1", 3, 4)))
	require.NoError(t, err)
	assert.Equal(t, &Position{X: 3, Y: 4}, m.Position)
}
