package handlers

import (
	"github.com/gofiber/fiber/v2"

	"social-backend/internal/models"
	"social-backend/internal/presence"
	"social-backend/internal/services"
)

// SendMessageHandler handles POST /send/:id where :id is the receiver.
func SendMessageHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request")
		}

		res, err := chat.SendMessage(c.UserContext(), callerID(c), c.Params("id"), req.Message)
		if err != nil {
			return err
		}

		message := "Message sent successfully"
		if !res.Allowed {
			message = "You can't send more messages until this user allows you"
		}
		return respond(c, fiber.StatusOK, models.SentMessage{Message: *res.Message, Allowed: res.Allowed}, message)
	}
}

func GetMessagesHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := chat.ListMessages(c.UserContext(), c.Params("id"), callerID(c))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, list, "Messages fetched successfully")
	}
}

func GetConversationsHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := chat.ListConversations(c.UserContext(), callerID(c))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, items, "Conversations fetched successfully")
	}
}

// DeleteMessageHandler handles DELETE /delete/message/:id/:conversationId.
// The message id alone identifies the message; :conversationId is accepted
// for route compatibility.
func DeleteMessageHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, err := chat.DeleteMessage(c.UserContext(), c.Params("id"), callerID(c))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, payload, "Message deleted successfully")
	}
}

func DeleteConversationHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := chat.DeleteConversation(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, fiber.Map{}, "Conversation deleted successfully")
	}
}

func AllowChatHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		conv, err := chat.AllowChat(c.UserContext(), c.Params("id"), callerID(c))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, conv, "Conversation allowed successfully")
	}
}

func CanAllowHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		can, err := chat.CanAllow(c.UserContext(), c.Params("id"), callerID(c))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, fiber.Map{"canAllow": can}, "")
	}
}

// GetOrCreateConversationHandler handles POST /getOrCreateConversation/:id
// where :id is the other user. Responds 201 when the conversation is new.
func GetOrCreateConversationHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		conv, created, err := chat.GetOrCreateConversation(c.UserContext(), callerID(c), c.Params("id"))
		if err != nil {
			return err
		}

		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return respond(c, status, models.ConversationResponse{ConversationID: conv.ID, IsNew: created}, "")
	}
}

func OnlineUsersHandler(registry *presence.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return respond(c, fiber.StatusOK, registry.Online(), "")
	}
}

// RegisterRoutes mounts the chat API under /api/chat and the websocket at /ws.
func RegisterRoutes(app *fiber.App, chat *services.ChatService, registry *presence.Registry, tokens *services.TokenService) {
	auth := AuthMiddleware(tokens)

	api := app.Group("/api/chat", auth)
	api.Post("/send/:id", SendMessageHandler(chat))
	api.Get("/get/messages/:id", GetMessagesHandler(chat))
	api.Get("/get/conversations", GetConversationsHandler(chat))
	api.Delete("/delete/message/:id/:conversationId", DeleteMessageHandler(chat))
	api.Delete("/delete/conversation/:id", DeleteConversationHandler(chat))
	api.Post("/allow/:id", AllowChatHandler(chat))
	api.Get("/canAllow/:id", CanAllowHandler(chat))
	api.Post("/getOrCreateConversation/:id", GetOrCreateConversationHandler(chat))
	api.Get("/online", OnlineUsersHandler(registry))

	// Middleware order matters: reject non-upgrade requests before auth.
	app.Use("/ws", WSUpgradeMiddleware)
	app.Use("/ws", auth)
	app.Get("/ws", WebSocketHandler(registry))
}
