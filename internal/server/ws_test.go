package server_test

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/internal/store"
)

func startRelay(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	credentials := store.NewMemoryStore()
	hub := server.NewHub(server.NewConfig(), credentials, zerolog.Nop())
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, hub.Shutdown(2*time.Second))
	})
	return ts, credentials
}

func dialRelay(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	_ = resp.Body.Close()
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg server.Inbound) {
	t.Helper()

	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) server.Outbound {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var out server.Outbound
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame, but received one")
	netErr, ok := err.(net.Error)
	require.True(t, ok && netErr.Timeout(), "unexpected read error: %v", err)
}

func loginFrame(username string) server.Inbound {
	return server.Inbound{Type: server.TypeLogin, Username: username, Password: "secret"}
}

func TestRelayBroadcastAndWhisper(t *testing.T) {
	req := require.New(t)
	ts, credentials := startRelay(t)
	for _, name := range []string{"alice", "bob", "carol"} {
		req.NoError(credentials.Create(name, "secret"))
	}

	connA := dialRelay(t, ts)
	connB := dialRelay(t, ts)
	connC := dialRelay(t, ts)

	sendFrame(t, connA, loginFrame("alice"))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "alice"}, readFrame(t, connA))
	sendFrame(t, connB, loginFrame("bob"))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "bob"}, readFrame(t, connB))
	sendFrame(t, connC, loginFrame("carol"))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "carol"}, readFrame(t, connC))

	// Broadcast reaches every logged-in connection exactly once, including
	// the sender.
	sendFrame(t, connA, server.Inbound{Type: server.TypeMessage, Message: "hi"})
	want := server.Outbound{Type: server.TypeMessage, Message: "hi", Sender: "alice"}
	req.Equal(want, readFrame(t, connA))
	req.Equal(want, readFrame(t, connB))
	req.Equal(want, readFrame(t, connC))

	// Whisper to bob and an offline name: alice and bob get one copy each,
	// carol gets nothing, and the offline recipient raises no error.
	sendFrame(t, connA, server.Inbound{Type: server.TypeWhisper, Message: "psst", Recipients: []string{"bob", "dave"}})
	wantWhisper := server.Outbound{Type: server.TypeWhisper, Message: "psst", Sender: "alice"}
	req.Equal(wantWhisper, readFrame(t, connA))
	req.Equal(wantWhisper, readFrame(t, connB))
	expectNoFrame(t, connC)
	expectNoFrame(t, connA)
	expectNoFrame(t, connB)
}

func TestRelayRequiresLogin(t *testing.T) {
	req := require.New(t)
	ts, _ := startRelay(t)
	conn := dialRelay(t, ts)

	sendFrame(t, conn, server.Inbound{Type: server.TypeMessage, Message: "hi"})
	req.Equal("Not logged in", readFrame(t, conn).Error)

	sendFrame(t, conn, server.Inbound{Type: server.TypeWhisper, Message: "hi", Recipients: []string{"bob"}})
	req.Equal("Not logged in", readFrame(t, conn).Error)
}

func TestRelayCreateThenRemove(t *testing.T) {
	req := require.New(t)
	ts, _ := startRelay(t)
	conn := dialRelay(t, ts)

	// Creating an account logs the caller in without a separate login frame.
	sendFrame(t, conn, server.Inbound{Type: server.TypeCreate, Username: "eve", Password: "pw"})
	req.Equal(server.Outbound{Type: server.TypeCreate, Username: "eve"}, readFrame(t, conn))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "eve"}, readFrame(t, conn))

	sendFrame(t, conn, server.Inbound{Type: server.TypeMessage, Message: "hello"})
	req.Equal(server.Outbound{Type: server.TypeMessage, Message: "hello", Sender: "eve"}, readFrame(t, conn))

	// Removing the account logs the caller out and retires the username.
	sendFrame(t, conn, server.Inbound{Type: server.TypeRemove, Username: "eve", Password: "pw"})
	req.Equal(server.Outbound{Type: server.TypeRemove, Username: "eve"}, readFrame(t, conn))
	req.Equal(server.Outbound{Type: server.TypeLogout, Username: "eve"}, readFrame(t, conn))

	sendFrame(t, conn, server.Inbound{Type: server.TypeLogin, Username: "eve", Password: "pw"})
	req.Equal("Invalid username or password", readFrame(t, conn).Error)
}

func TestRelayUnknownAndMalformedFrames(t *testing.T) {
	req := require.New(t)
	ts, _ := startRelay(t)
	conn := dialRelay(t, ts)

	sendFrame(t, conn, server.Inbound{Type: "dance"})
	req.Equal(server.Outbound{Type: server.TypeError, Error: "Invalid message type"}, readFrame(t, conn))

	// A malformed frame gets no response and leaves the connection open: the
	// next frame received is the response to the frame sent after it.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendFrame(t, conn, server.Inbound{Type: "dance"})
	req.Equal(server.Outbound{Type: server.TypeError, Error: "Invalid message type"}, readFrame(t, conn))
	expectNoFrame(t, conn)
}

func TestRelayDisconnectFreesUsername(t *testing.T) {
	req := require.New(t)
	ts, credentials := startRelay(t)
	req.NoError(credentials.Create("alice", "secret"))

	first := dialRelay(t, ts)
	sendFrame(t, first, loginFrame("alice"))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "alice"}, readFrame(t, first))

	req.NoError(first.Close())

	// The session bound to the dropped connection is cleaned up, so a fresh
	// connection can log in as the same user and receive broadcasts.
	second := dialRelay(t, ts)
	sendFrame(t, second, loginFrame("alice"))
	req.Equal(server.Outbound{Type: server.TypeLogin, Username: "alice"}, readFrame(t, second))

	sendFrame(t, second, server.Inbound{Type: server.TypeMessage, Message: "back"})
	req.Equal(server.Outbound{Type: server.TypeMessage, Message: "back", Sender: "alice"}, readFrame(t, second))
}
