package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer plays every text frame back to the client. Frames starting with
// "raw:" are sent back with the prefix stripped, unwrapped.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for {
			_, frame, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			env, err := Decode(frame)
			if err == nil && env.Event == "raw" {
				var raw string
				_ = json.Unmarshal(env.Data, &raw)
				frame = []byte(raw)
			}
			if err := conn.Write(r.Context(), websocket.MessageText, frame); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_RoundTrip(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer conn.Close()

	var got recorder
	_, err = conn.Subscribe(EventMessage, got.handle)
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, conn.Emit(ctx, EventMessage, body))
	}

	require.Eventually(t, func() bool { return got.len() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`"one"`, `"two"`, `"three"`}, got.snapshot())
}

func TestConn_DropsMalformedFrames(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer conn.Close()

	var got recorder
	_, err = conn.Subscribe(EventMessage, got.handle)
	require.NoError(t, err)

	require.NoError(t, conn.Emit(ctx, "raw", "not an envelope"))
	require.NoError(t, conn.Emit(ctx, EventMessage, "fine"))

	require.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`"fine"`}, got.snapshot())
}

func TestConn_OnlyMatchingEventIsDelivered(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer conn.Close()

	var messages recorder
	_, err = conn.Subscribe(EventMessage, messages.handle)
	require.NoError(t, err)

	require.NoError(t, conn.Emit(ctx, EventJoin, "Alice"))
	require.NoError(t, conn.Emit(ctx, EventMessage, "hi"))

	require.Eventually(t, func() bool { return messages.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`"hi"`}, messages.snapshot())
}

func TestConn_CloseStopsEverything(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)

	_, err = conn.Subscribe(EventMessage, func(context.Context, json.RawMessage) {})
	require.NoError(t, err)
	assert.Equal(t, 1, conn.Subscriptions())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not shut down")
	}

	assert.Equal(t, 0, conn.Subscriptions())
	assert.ErrorIs(t, conn.Emit(ctx, EventMessage, "late"), ErrClosed)
}

func TestConn_PeerDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusGoingAway, "bye")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not notice the peer leaving")
	}
	assert.ErrorIs(t, conn.Emit(ctx, EventMessage, "late"), ErrClosed)
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
