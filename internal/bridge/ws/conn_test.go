package ws

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeHost plays the IDE side of the bridge
type fakeHost struct {
	handshake     bool
	responses     map[string]string // "name.key" -> payload JSON
	errors        map[string]string
	repeat        int // extra copies of each response
	notifications chan Message
	handshakes    chan Message
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		handshake:     true,
		responses:     make(map[string]string),
		errors:        make(map[string]string),
		notifications: make(chan Message, 16),
		handshakes:    make(chan Message, 4),
	}
}

func (h *fakeHost) serve(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if h.handshake {
			conn.WriteJSON(Message{Action: ActionHandshake, Name: "remix"})
		}

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Action {
			case ActionRequest:
				key := msg.Name + "." + msg.Key
				resp := Message{Action: ActionResponse, ID: msg.ID, Name: msg.Name, Key: msg.Key}
				if e, ok := h.errors[key]; ok {
					resp.Error = e
				} else if p, ok := h.responses[key]; ok {
					resp.Payload = stdjson.RawMessage(p)
				} else {
					resp.Payload = stdjson.RawMessage("null")
				}
				for i := 0; i <= h.repeat; i++ {
					conn.WriteJSON(resp)
				}
			case ActionNotification:
				h.notifications <- msg
			case ActionHandshake:
				h.handshakes <- msg
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConn_OnLoadAndCall(t *testing.T) {
	host := newFakeHost()
	host.responses["network.detectNetwork"] = `{"id":"3","name":"Ropsten"}`
	server := host.serve(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.OnLoad(ctx))

	select {
	case msg := <-host.handshakes:
		assert.Equal(t, "contraverify", msg.Name)
	case <-ctx.Done():
		t.Fatal("plugin did not answer the handshake")
	}

	raw, err := conn.Call(ctx, "network", "detectNetwork")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"3","name":"Ropsten"}`, string(raw))

	raw, err = conn.Call(ctx, "solidity", "getCompilationResult")
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestConn_CallError(t *testing.T) {
	host := newFakeHost()
	host.errors["solidity.getCompilationResult"] = "no compiler"
	server := host.serve(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Call(ctx, "solidity", "getCompilationResult")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compiler")
}

func TestConn_DuplicateResponsesDoNotStallReader(t *testing.T) {
	host := newFakeHost()
	host.repeat = 3
	host.responses["network.detectNetwork"] = `{"id":"3","name":"Ropsten"}`
	host.responses["solidity.getCompilationResult"] = `{"source":{"target":"Token.sol"}}`
	server := host.serve(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.OnLoad(ctx))

	for i := 0; i < 3; i++ {
		result, err := conn.Call(ctx, "network", "detectNetwork")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"3","name":"Ropsten"}`, string(result))
	}

	result, err := conn.Call(ctx, "solidity", "getCompilationResult")
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":{"target":"Token.sol"}}`, string(result))
}

func TestConn_Emit(t *testing.T) {
	host := newFakeHost()
	server := host.serve(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Emit(ctx, "statusChanged", map[string]string{"key": "loading"}))

	select {
	case msg := <-host.notifications:
		assert.Equal(t, "statusChanged", msg.Key)
		assert.Equal(t, "contraverify", msg.Name)
		assert.JSONEq(t, `{"key":"loading"}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("notification not received")
	}
}

func TestConn_OnLoadWaitsForHandshake(t *testing.T) {
	host := newFakeHost()
	host.handshake = false
	server := host.serve(t)
	defer server.Close()

	conn, err := Dial(context.Background(), wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = conn.OnLoad(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConn_ClosedConnectionFailsCalls(t *testing.T) {
	host := newFakeHost()
	server := host.serve(t)
	defer server.Close()

	conn, err := Dial(context.Background(), wsURL(server), "contraverify", testLogger())
	require.NoError(t, err)
	require.NoError(t, conn.OnLoad(context.Background()))

	conn.Close()

	_, err = conn.Call(context.Background(), "network", "detectNetwork")
	assert.True(t, errors.Is(err, ErrClosed))
}
