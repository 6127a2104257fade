package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"social-backend/internal/models"
	"social-backend/internal/presence"
	"social-backend/internal/utils"
)

// WebSocketHandler registers the connection as the caller's live handle and
// keeps it until the client goes away. Server pushes come from the registry;
// the only inbound event is a roster request.
func WebSocketHandler(registry *presence.Registry) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)

		h := presence.NewHandle(c)
		registry.Connect(userID, h)
		// closes c once the write loop has stopped
		defer registry.Disconnect(h)

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Str("user", userID).Msg("websocket closed unexpectedly")
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			handleInbound(registry, h, msg)
		}
	})
}

func handleInbound(registry *presence.Registry, h *presence.Handle, msg []byte) {
	var in models.WSEvent
	if err := utils.SafeJSONParse(msg, &in); err != nil {
		utils.LogError(err, "JSON Parse")
		return
	}

	switch in.Event {
	case models.EventGetOnlineUsers:
		utils.LogError(h.Emit(models.EventGetOnlineUsers, registry.Online()), "Emit roster")
	default:
		log.Debug().Str("event", in.Event).Str("user", h.UserID()).Msg("unknown event")
	}
}

// WSUpgradeMiddleware rejects plain HTTP requests to the websocket route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
