package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/pkg/protocol"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, relay Relay, opts ...Option) (*Hub, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	h := NewHub(relay, logger.NewNopLogger(), metrics, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.stopped
	})

	select {
	case <-h.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub not ready")
	}
	return h, metrics
}

func connect(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c := h.NewClient(nil, userID)
	h.Register(c)
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[c]
		return ok
	}, time.Second, time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) protocol.Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send buffer closed")
		m, err := protocol.Decode(data)
		require.NoError(t, err)
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.UserID)
		return protocol.Message{}
	}
}

func frame(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

var shapesJSON = json.RawMessage(`[{"id":"r1","type":"rect","x":1,"y":2,"width":3,"height":4}]`)

func TestRoomLifecycle(t *testing.T) {
	h, metrics := startHub(t, nil)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")

	h.Join(a, "doc")
	assert.Equal(t, 1, h.RoomCount())
	h.Join(b, "doc")
	h.Join(b, "other")
	assert.Equal(t, 2, h.RoomSize("doc"))
	assert.Equal(t, 2, h.RoomCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Rooms))

	h.Leave(a, "doc")
	assert.Equal(t, 1, h.RoomSize("doc"))
	h.Leave(a, "doc")
	assert.Equal(t, 1, h.RoomSize("doc"))

	h.Leave(b, "doc")
	assert.Equal(t, 1, h.RoomCount(), "empty room is deleted")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Connections))
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	h, metrics := startHub(t, nil)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	h.Join(a, "d1")
	h.Join(a, "d2")
	h.Join(b, "d2")

	h.Unregister(a)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 0, h.RoomSize("d1"))
	assert.Equal(t, 1, h.RoomSize("d2"))
	assert.Equal(t, 1, h.RoomCount())
	_, open := <-a.Send
	assert.False(t, open)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Connections))

	// A late frame from the dead connection does not resurrect it.
	a.handle(frame(t, protocol.Join("d1")))
	assert.Equal(t, 0, h.RoomSize("d1"))
	h.Unregister(a)
}

func TestShapeUpdateReachesOtherMembersOnly(t *testing.T) {
	h, _ := startHub(t, nil)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	c := connect(t, h, "carol")
	outsider := connect(t, h, "dave")

	for _, cl := range []*Client{a, b, c} {
		cl.handle(frame(t, protocol.Join("doc")))
	}
	outsider.handle(frame(t, protocol.Join("elsewhere")))

	update := protocol.ShapeUpdate("doc", shapesJSON)
	update.SenderID = "forged"
	a.handle(frame(t, update))

	for _, cl := range []*Client{b, c} {
		m := receive(t, cl)
		assert.Equal(t, protocol.OpShapeUpdate, m.Op)
		assert.Equal(t, "doc", m.DocumentID)
		assert.Equal(t, "alice", m.SenderID, "sender comes from the connection principal")
		assert.JSONEq(t, string(shapesJSON), string(m.Shapes))
	}
	assert.Empty(t, a.Send, "never echoed to the sender")
	assert.Empty(t, outsider.Send)
}

func TestCursorMoveIsRelayedAsCursor(t *testing.T) {
	h, _ := startHub(t, nil)
	a := connect(t, h, "alice")
	b := connect(t, h, "bob")
	a.handle(frame(t, protocol.Join("doc")))
	b.handle(frame(t, protocol.Join("doc")))

	a.handle(frame(t, protocol.CursorMove("doc", 12, 34)))

	m := receive(t, b)
	assert.Equal(t, protocol.OpCursor, m.Op)
	assert.Equal(t, "alice", m.SenderID)
	assert.Equal(t, &protocol.Position{X: 12, Y: 34}, m.Position)
	assert.Empty(t, a.Send)
}

func TestMalformedFrameGetsErrorReply(t *testing.T) {
	h, metrics := startHub(t, nil)
	a := connect(t, h, "alice")

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{{`},
		{name: "unknown op", data: `{"op":"explode"}`},
		{name: "join without document", data: `{"op":"join"}`},
		{name: "update without shapes", data: `{"op":"shapeUpdate","documentId":"doc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.handle([]byte(tt.data))
			m := receive(t, a)
			assert.Equal(t, protocol.OpError, m.Op)
			assert.NotEmpty(t, m.Error)
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(metrics.Frames.WithLabelValues("malformed")))
	assert.Equal(t, 0, h.RoomCount())
}

func TestFullBufferDropsFrame(t *testing.T) {
	h, metrics := startHub(t, nil, WithLimits(Limits{SendBuffer: 1}))
	a := connect(t, h, "alice")
	slow := connect(t, h, "slow")
	h.Join(a, "doc")
	h.Join(slow, "doc")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			h.Broadcast("doc", a, []byte(`{"op":"shapeUpdate"}`))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full buffer")
	}

	assert.Len(t, slow.Send, 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Dropped))
}

func TestRelayBetweenInstances(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	hubA, _ := startHub(t, NewChannelRelay(pubSub, logger.NewNopLogger()))
	hubB, metricsB := startHub(t, NewChannelRelay(pubSub, logger.NewNopLogger()))
	require.NotEqual(t, hubA.InstanceID(), hubB.InstanceID())

	alice := connect(t, hubA, "alice")
	anna := connect(t, hubA, "anna")
	bob := connect(t, hubB, "bob")
	for _, pair := range []struct {
		h *Hub
		c *Client
	}{{hubA, alice}, {hubA, anna}, {hubB, bob}} {
		pair.h.Join(pair.c, "doc")
	}

	alice.handle(frame(t, protocol.ShapeUpdate("doc", shapesJSON)))

	m := receive(t, bob)
	assert.Equal(t, "alice", m.SenderID)
	assert.JSONEq(t, string(shapesJSON), string(m.Shapes))
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsB.Relayed))

	assert.Equal(t, "alice", receive(t, anna).SenderID)
	// The origin instance ignores its own envelope, so anna sees it once.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, anna.Send)
	assert.Empty(t, alice.Send)
}
