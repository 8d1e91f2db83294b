package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwire/clinic-console/internal/chat"
	"github.com/clinwire/clinic-console/pkg/logging"
)

func newTestStub(t *testing.T) *httptest.Server {
	t.Helper()
	s := newStubServer(logging.NewWithWriter(io.Discard, "error"))
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, caller, recipient string) chat.Conversation {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"recipient_id": recipient})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chats/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+caller)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conv chat.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	return conv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCreateOrGetChatIsIdempotent(t *testing.T) {
	srv := newTestStub(t)

	first := postChat(t, srv, "u1", "u2")
	assert.Equal(t, []string{"u1", "u2"}, first.Participants)

	// Same pair from either side resolves to the same chat.
	second := postChat(t, srv, "u2", "u1")
	assert.Equal(t, first.ChatID, second.ChatID)
}

func TestListChatsFiltersByCaller(t *testing.T) {
	srv := newTestStub(t)
	conv := postChat(t, srv, "u1", "u2")

	list := func(caller string) []chat.Conversation {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/chats/personal", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+caller)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []chat.Conversation
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	require.Len(t, list("u2"), 1)
	assert.Equal(t, conv.ChatID, list("u2")[0].ChatID)
	assert.Empty(t, list("u3"))
}

func TestMissingBearerTokenRejected(t *testing.T) {
	srv := newTestStub(t)

	resp, err := http.Get(srv.URL + "/chats/personal")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "missing bearer token", body["detail"])
}

func TestFanOutReachesSenderAndRecipient(t *testing.T) {
	srv := newTestStub(t)
	conv := postChat(t, srv, "u1", "u2")

	sender := dialWS(t, srv, "u1")
	recipient := dialWS(t, srv, "u2")

	require.NoError(t, sender.WriteJSON(chat.OutboundFrame{
		Text:         "hola",
		ChatID:       conv.ChatID,
		RecipientIDs: []string{"u2"},
	}))

	readMsg := func(conn *websocket.Conn) chat.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg chat.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	for _, conn := range []*websocket.Conn{sender, recipient} {
		msg := readMsg(conn)
		assert.Equal(t, conv.ChatID, msg.ChatID)
		assert.Equal(t, "u1", msg.SenderID)
		assert.Equal(t, "hola", msg.Text)
		assert.NotEmpty(t, msg.ID)
	}

	// The delivered message is also in the history endpoint.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/chats/personal/"+conv.ChatID+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer u2")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Text)
}
