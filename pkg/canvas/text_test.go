package canvas

import (
	"testing"
	"time"

	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/shape"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCommitGuard(t *testing.T) {
	s, rec, clock := newSession(t, nil)

	require.NoError(t, s.PointerDown(ToolText, geometry.Pt(40, 60)))
	s.PointerUp(geometry.Pt(40, 60))
	assert.Equal(t, ModeEditingText, s.Gesture().Mode, "releasing the pointer keeps the draft open")

	require.NoError(t, s.SetText("hello"))
	clock.advance(10 * time.Millisecond)
	assert.ErrorIs(t, s.CommitText(), ErrTextGuarded)

	d, ok := s.TextDraft()
	require.True(t, ok)
	assert.Equal(t, "hello", d.Value)

	clock.advance(TextCommitGuard)
	require.NoError(t, s.CommitText())
	assert.Equal(t, ModeIdle, s.Gesture().Mode)

	require.Len(t, s.Shapes(), 1)
	txt := s.Shapes()[0].(shape.Text)
	assert.Equal(t, "hello", txt.Content)
	assert.Equal(t, 40.0, txt.X)
	assert.Equal(t, 60.0, txt.Y)
	assert.Equal(t, DefaultStyle.FontSize, txt.FontSize)
	assert.Equal(t, DefaultStyle.Stroke, txt.Fill)
	assert.Equal(t, 1, rec.count())
}

func TestBlankNewTextIsDiscarded(t *testing.T) {
	s, rec, clock := newSession(t, nil)

	require.NoError(t, s.PointerDown(ToolText, geometry.Pt(0, 0)))
	require.NoError(t, s.SetText("  \n "))
	clock.advance(time.Second)
	require.NoError(t, s.CommitText())

	assert.Empty(t, s.Shapes())
	assert.Equal(t, 0, rec.count())
	_, ok := s.TextDraft()
	assert.False(t, ok)
}

func TestEditExistingText(t *testing.T) {
	initial := shape.List{
		shape.Text{Base: shape.Base{ID: "t"}, X: 1, Y: 1, Content: "old", FontSize: 20, Fill: "#111111"},
		shape.Circle{Base: shape.Base{ID: "c"}, Radius: 3},
	}
	s, rec, clock := newSession(t, initial)

	assert.ErrorIs(t, s.EditText("c"), ErrNotText)
	assert.ErrorIs(t, s.EditText("missing"), ErrShapeNotFound)

	require.NoError(t, s.EditText("t"))
	d, _ := s.TextDraft()
	assert.Equal(t, "old", d.Value)

	require.NoError(t, s.SetText("new\nline"))
	clock.advance(time.Second)
	handled, err := s.HandleTextKey("Enter", true)
	assert.False(t, handled)
	assert.NoError(t, err)
	handled, err = s.HandleTextKey("Enter", false)
	assert.True(t, handled)
	require.NoError(t, err)

	txt := s.Shapes()[0].(shape.Text)
	assert.Equal(t, "new\nline", txt.Content)
	assert.Equal(t, "#111111", txt.Fill)
	assert.Equal(t, 1, rec.count())

	require.True(t, s.Undo())
	assert.Equal(t, initial, s.Shapes())
}

func TestBlankEditDeletesText(t *testing.T) {
	initial := shape.List{shape.Text{Base: shape.Base{ID: "t"}, Content: "bye", FontSize: 20}}
	s, rec, clock := newSession(t, initial)

	require.NoError(t, s.EditText("t"))
	require.NoError(t, s.SetText(""))
	clock.advance(time.Second)
	require.NoError(t, s.CommitText())

	assert.Empty(t, s.Shapes())
	assert.Equal(t, 1, rec.count())
}

func TestTextWithoutDraft(t *testing.T) {
	s, _, _ := newSession(t, nil)
	assert.ErrorIs(t, s.SetText("x"), ErrNoTextDraft)
	assert.ErrorIs(t, s.CommitText(), ErrNoTextDraft)
}

func TestEditedTextRemovedByPeer(t *testing.T) {
	s, rec, clock := newSession(t, shape.List{shape.Text{Base: shape.Base{ID: "t"}, Content: "a", FontSize: 20}})

	require.NoError(t, s.EditText("t"))
	s.ApplyRemote(shape.List{})
	require.NoError(t, s.SetText("b"))
	clock.advance(time.Second)
	require.NoError(t, s.CommitText())

	assert.Empty(t, s.Shapes())
	assert.Equal(t, 0, rec.count())
}
