package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-backend/internal/identity"
	"social-backend/internal/models"
	"social-backend/internal/presence"
	"social-backend/internal/services"
	"social-backend/internal/store/memory"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type testServer struct {
	t      *testing.T
	app    *fiber.App
	tokens *services.TokenService
}

func newTestServer(t *testing.T) *testServer {
	dir := identity.NewStatic(
		models.DisplayInfo{ID: "alice", Name: "Alice"},
		models.DisplayInfo{ID: "bob", Name: "Bob"},
	)
	registry := presence.NewRegistry()
	chat := services.NewChatService(memory.New(), dir, registry)
	tokens := services.NewTokenService("test-secret", time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, chat, registry, tokens)
	return &testServer{t: t, app: app, tokens: tokens}
}

func (s *testServer) do(method, path, user, body string) (int, envelope) {
	s.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != "" {
		token, err := s.tokens.Generate(user)
		require.NoError(s.t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/api/chat/get/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Unauthorized request", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/get/conversations", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer garbage")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenCookieIsAccepted(t *testing.T) {
	s := newTestServer(t)
	token, err := s.tokens.Generate("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/get/conversations", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendAndConsentFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/api/chat/send/bob", "alice", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var sent models.SentMessage
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	require.False(t, sent.Allowed)
	require.Equal(t, "hi", sent.Text)
	require.Equal(t, "alice", sent.SenderID)
	require.NotEmpty(t, sent.ID)
	convID := sent.ConversationID

	status, env = s.do(http.MethodPost, "/api/chat/send/alice", "bob", `{"message":"hey"}`)
	require.Equal(t, http.StatusForbidden, status)
	require.False(t, env.Success)
	require.Equal(t, "This user hasn't allowed you to send messages yet", env.Message)

	status, env = s.do(http.MethodGet, "/api/chat/canAllow/"+convID, "bob", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"canAllow":true}`, string(env.Data))

	status, env = s.do(http.MethodGet, "/api/chat/canAllow/"+convID, "alice", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"canAllow":false}`, string(env.Data))

	status, _ = s.do(http.MethodPost, "/api/chat/allow/"+convID, "bob", "")
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/api/chat/send/alice", "bob", `{"message":"yes"}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	require.True(t, sent.Allowed)
	require.Equal(t, "Message sent successfully", env.Message)

	status, env = s.do(http.MethodGet, "/api/chat/get/messages/"+convID, "alice", "")
	require.Equal(t, http.StatusOK, status)
	var list models.MessageList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Messages, 2)
	require.Equal(t, "Bob", list.OtherUser.Name)

	status, env = s.do(http.MethodGet, "/api/chat/get/conversations", "bob", "")
	require.Equal(t, http.StatusOK, status)
	var items []models.ConversationItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, "yes", items[0].LastMessage.Text)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/api/chat/send/bob", "alice", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Message is required", env.Message)

	status, _ = s.do(http.MethodPost, "/api/chat/send/alice", "alice", `{"message":"me"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/chat/allow/missing", "alice", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/chat/get/messages/missing", "alice", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodDelete, "/api/chat/delete/message/missing/any", "alice", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteRoutes(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(http.MethodPost, "/api/chat/send/bob", "alice", `{"message":"hi"}`)
	var sent models.SentMessage
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	convID, msgID := sent.ConversationID, sent.ID

	status, _ := s.do(http.MethodDelete, "/api/chat/delete/message/"+msgID+"/"+convID, "bob", "")
	require.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodDelete, "/api/chat/delete/message/"+msgID+"/"+convID, "alice", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"messageId":"`+msgID+`","conversationId":"`+convID+`","lastMessage":null}`, string(env.Data))

	status, _ = s.do(http.MethodDelete, "/api/chat/delete/conversation/"+convID, "carol", "")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodDelete, "/api/chat/delete/conversation/"+convID, "bob", "")
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/chat/get/messages/"+convID, "alice", "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestGetOrCreateConversationRoute(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/api/chat/getOrCreateConversation/bob", "alice", "")
	require.Equal(t, http.StatusCreated, status)
	var first models.ConversationResponse
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.True(t, first.IsNew)

	status, env = s.do(http.MethodPost, "/api/chat/getOrCreateConversation/alice", "bob", "")
	require.Equal(t, http.StatusOK, status)
	var second models.ConversationResponse
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.False(t, second.IsNew)
	require.Equal(t, first.ConversationID, second.ConversationID)
}

func TestOnlineRouteAndPlainWebsocketRequest(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/api/chat/online", "alice", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(env.Data))

	status, _ = s.do(http.MethodGet, "/ws", "alice", "")
	require.Equal(t, http.StatusUpgradeRequired, status)
}
