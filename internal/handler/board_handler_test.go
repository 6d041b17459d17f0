package handler

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"buddyboard-be/internal/pkg/logger"
	internalWS "buddyboard-be/internal/websocket"
	"buddyboard-be/pkg/collab"
	"buddyboard-be/pkg/shape"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "board-secret"

func startServer(t *testing.T) (*internalWS.Hub, string) {
	t.Helper()
	log := logger.NewNopLogger()
	hub := internalWS.NewHub(nil, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewBoardHandler(hub, secret, log).RegisterRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		_ = app.Shutdown()
		cancel()
	})
	return hub, ln.Addr().String()
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func dial(t *testing.T, addr, userID string) *collab.Client {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t, userID))
	c, err := collab.Dial(context.Background(), "ws://"+addr+"/api/board/v1/ws", header, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHandshakeRequiresToken(t *testing.T) {
	_, addr := startServer(t)

	resp, err := http.Get("http://" + addr + "/api/board/v1/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/api/board/v1/ws?token=" + token(t, "alice"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	_, err = collab.Dial(context.Background(), "ws://"+addr+"/api/board/v1/ws?token=forged", nil, nil)
	assert.Error(t, err)
}

func TestShapeUpdateBetweenConnections(t *testing.T) {
	hub, addr := startServer(t)
	alice := dial(t, addr, "alice")
	bob := dial(t, addr, "bob")

	received := make(chan collab.ShapeUpdate, 1)
	bob.OnShapeUpdate(func(u collab.ShapeUpdate) { received <- u })
	echoed := make(chan collab.ShapeUpdate, 1)
	alice.OnShapeUpdate(func(u collab.ShapeUpdate) { echoed <- u })
	cursors := make(chan collab.Cursor, 1)
	bob.OnCursor(func(c collab.Cursor) { cursors <- c })

	require.NoError(t, alice.Join("doc"))
	require.NoError(t, bob.Join("doc"))
	require.Eventually(t, func() bool { return hub.RoomSize("doc") == 2 }, 2*time.Second, 5*time.Millisecond)

	shapes := shape.List{shape.Rect{Base: shape.Base{ID: "r1", Stroke: "#000000", StrokeWidth: 2}, X: 1, Y: 2, Width: 3, Height: 4}}
	require.NoError(t, alice.PublishShapes("doc", shapes))

	select {
	case u := <-received:
		assert.Equal(t, "alice", u.SenderID)
		assert.Equal(t, shapes, u.Shapes)
	case <-time.After(2 * time.Second):
		t.Fatal("bob did not receive the update")
	}

	require.NoError(t, alice.MoveCursor("doc", 7, 8))
	select {
	case c := <-cursors:
		assert.Equal(t, "alice", c.SenderID)
		assert.Equal(t, 7.0, c.Position.X)
	case <-time.After(2 * time.Second):
		t.Fatal("bob did not receive the cursor")
	}
	assert.Empty(t, echoed)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return hub.RoomSize("doc") == 1 }, 2*time.Second, 5*time.Millisecond)
}
