package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func waitForState(t *testing.T, c *Connection, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never became %s (now %s)", want, c.State())
}

func testConfig(url string) Config {
	return Config{
		URL:          url,
		PingInterval: 50 * time.Millisecond,
		BackoffBase:  10 * time.Millisecond,
		BackoffMax:   50 * time.Millisecond,
		MaxAttempts:  5,
	}
}

func TestConnectIsIdempotentAndSendsSubscribe(t *testing.T) {
	subs := make(chan string, 8)
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg := string(data)
			if msg == "PING" {
				// Keep the client's liveness timer fed so no reconnect
				// (and re-subscribe) happens mid-test.
				if err := conn.WriteMessage(websocket.TextMessage, []byte("PONG")); err != nil {
					return
				}
				continue
			}
			subs <- msg
		}
	})
	defer srv.Close()

	c := New(testConfig(url), func() interface{} {
		return map[string]interface{}{"type": "market", "assets_ids": []string{"a", "b"}}
	}, nil)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateSubscribed)

	select {
	case got := <-subs:
		assert.Contains(t, got, `"type":"market"`)
		assert.Contains(t, got, `"a"`)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe payload never arrived")
	}

	// Second Connect must be a no-op: no second subscription is sent.
	require.NoError(t, c.Connect(context.Background()))
	select {
	case got := <-subs:
		t.Fatalf("unexpected extra payload after idempotent Connect: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRepliesPongToTextPing(t *testing.T) {
	pongs := make(chan struct{}, 1)
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "PONG" {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	})
	defer srv.Close()

	c := New(testConfig(url), nil, nil)
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-pongs:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received PONG reply")
	}
}

func TestMalformedPayloadIsDroppedWithoutStateChange(t *testing.T) {
	msgs := make(chan []byte, 8)
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{broken json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "PING" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("PONG")); err != nil {
					return
				}
			}
		}
	})
	defer srv.Close()

	c := New(testConfig(url), nil, func(data []byte) {
		msgs <- append([]byte(nil), data...)
	})
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))

	select {
	case got := <-msgs:
		assert.JSONEq(t, `{"ok":true}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("valid payload never delivered")
	}
	assert.Equal(t, StateSubscribed, c.State())
	select {
	case got := <-msgs:
		t.Fatalf("malformed payload should have been dropped, got %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconnectsAfterServerClose(t *testing.T) {
	conns := make(chan struct{}, 8)
	first := true
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		conns <- struct{}{}
		if first {
			first = false
			conn.Close() // drop the first connection immediately
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	c := New(testConfig(url), nil, nil)
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))

	for i := 0; i < 2; i++ {
		select {
		case <-conns:
		case <-time.After(3 * time.Second):
			t.Fatalf("expected reconnect, saw %d connection(s)", i)
		}
	}
	waitForState(t, c, StateSubscribed)
}

func TestDisconnectIsTerminal(t *testing.T) {
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	c := New(testConfig(url), nil, nil)
	require.NoError(t, c.Connect(context.Background()))
	waitForState(t, c, StateSubscribed)

	c.Disconnect()
	assert.Equal(t, StateClosing, c.State())
	assert.Error(t, c.Connect(context.Background()))

	// Repeated Disconnect must not panic or block.
	c.Disconnect()
}
