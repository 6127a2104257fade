package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// listen serves the test app on a loopback port and returns its address.
func (s *testServer) listen() string {
	s.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(s.t, err)
	go func() { _ = s.app.Listener(ln) }()
	s.t.Cleanup(func() { _ = s.app.Shutdown() })
	return ln.Addr().String()
}

func (s *testServer) dial(addr, user string) *fastws.Conn {
	s.t.Helper()
	token, err := s.tokens.Generate(user)
	require.NoError(s.t, err)

	conn, resp, err := fastws.DefaultDialer.Dial("ws://"+addr+"/ws?access_token="+token, nil)
	require.NoError(s.t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

// next reads frames until one with the given event arrives.
func next(t *testing.T, conn *fastws.Conn, event string) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event == event {
			return frame
		}
	}
}

func nextRoster(t *testing.T, conn *fastws.Conn, want string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		frame := next(t, conn, "getOnlineUsers")
		if string(frame.Data) == want {
			return
		}
	}
}

func TestWebsocketPresenceAndDelivery(t *testing.T) {
	s := newTestServer(t)
	addr := s.listen()

	alice := s.dial(addr, "alice")
	defer alice.Close()
	nextRoster(t, alice, `["alice"]`)

	bob := s.dial(addr, "bob")
	nextRoster(t, alice, `["alice","bob"]`)
	nextRoster(t, bob, `["alice","bob"]`)

	status, env := s.do(http.MethodGet, "/api/chat/online", "alice", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `["alice","bob"]`, string(env.Data))

	// roster on request
	require.NoError(t, bob.WriteJSON(map[string]string{"event": "getOnlineUsers"}))
	nextRoster(t, bob, `["alice","bob"]`)

	status, _ = s.do(http.MethodPost, "/api/chat/send/bob", "alice", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, status)

	frame := next(t, bob, "newConversation")
	var payload struct {
		Message struct {
			Text string `json:"text"`
		} `json:"message"`
		Sender struct {
			Name string `json:"name"`
		} `json:"sender"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	require.Equal(t, "hi", payload.Message.Text)
	require.Equal(t, "Alice", payload.Sender.Name)

	require.NoError(t, bob.Close())
	nextRoster(t, alice, `["alice"]`)
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	addr := s.listen()

	_, resp, err := fastws.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// plain requests never reach auth
	req := httptest.NewRequest(http.MethodGet, "/ws", strings.NewReader(""))
	res, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUpgradeRequired, res.StatusCode)
}
