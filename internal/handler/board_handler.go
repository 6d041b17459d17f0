package handler

import (
	"errors"

	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/internal/pkg/serverutils"
	internalWS "buddyboard-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const logModule = "BoardHandler"

type BoardHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewBoardHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *BoardHandler {
	return &BoardHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// Authenticate resolves the connection principal before the upgrade.
// Browsers pass the token as ?token=, other tools use the Authorization header.
func (h *BoardHandler) Authenticate(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c.Get("Authorization"))
	}

	userID, err := serverutils.ParseUserID(tokenStr, h.jwtSecret)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, serverutils.ErrMissingToken) {
			msg = "Missing token (Query 'token' or Header 'Authorization')"
		}
		h.logger.Warn(logModule, "Rejected websocket handshake", map[string]interface{}{
			"error": err.Error(),
			"ip":    c.IP(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, msg))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("user_id", userID)
	return c.Next()
}

// ServeWs runs one board connection.
func (h *BoardHandler) ServeWs(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	h.logger.Info(logModule, "Starting board session", map[string]interface{}{"user_id": userID})
	internalWS.ServeWs(h.hub, conn, userID)
	h.logger.Info(logModule, "Board session ended", map[string]interface{}{"user_id": userID})
}

func (h *BoardHandler) RegisterRoutes(router fiber.Router) {
	board := router.Group("/board/v1")
	board.Get("/ws", h.Authenticate, websocket.New(h.ServeWs))
}
