package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ChatWave/tools/errs"
	"ChatWave/tools/security"
)

const handshakeTestSecret = "test-secret"

// newWSTestServer serves the gateway over a real listener and returns the
// websocket URL.
func newWSTestServer(t *testing.T, cfg Config) string {
	t.Helper()
	cfg.FanoutWorkers = 1
	s := NewServer(cfg, NewJWTVerifier([]byte(handshakeTestSecret)),
		newFakeMembership(), newFakeStore())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", s.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func mintToken(t *testing.T, userID, displayName string) string {
	t.Helper()
	token, _, err := security.Generate(
		security.DefaultOptions([]byte(handshakeTestSecret)), userID, displayName, "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func readWire(t *testing.T, ws *websocket.Conn) *Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	f, err := ParseFrameJSON(data)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	return f
}

func expectClosed(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("connection should be closed")
	}
}

func TestHandshakeQueryToken(t *testing.T) {
	url := newWSTestServer(t, Config{})
	ws, _, err := websocket.DefaultDialer.Dial(url+"?token="+mintToken(t, "u1", "Alice"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	f := readWire(t, ws)
	if f.Type != EventConnected {
		t.Fatalf("expected %s, got %s", EventConnected, f.Type)
	}
	ev, err := payloadOf[connectedEvent](f)
	if err != nil || ev.User.ID != "u1" || ev.User.DisplayName != "Alice" || ev.ConnID == "" {
		t.Fatalf("unexpected connected event: %+v err=%v", ev, err)
	}
}

func TestHandshakeBearerHeader(t *testing.T) {
	url := newWSTestServer(t, Config{})
	hdr := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u1", "Alice")}}
	ws, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if f := readWire(t, ws); f.Type != EventConnected {
		t.Fatalf("expected %s, got %s", EventConnected, f.Type)
	}
}

func TestHandshakeAuthFrame(t *testing.T) {
	url := newWSTestServer(t, Config{})
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(Frame{Type: FrameAuth, Data: map[string]any{
		"token": mintToken(t, "u1", "Alice"),
	}}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}
	if f := readWire(t, ws); f.Type != EventConnected {
		t.Fatalf("expected %s, got %s", EventConnected, f.Type)
	}
}

func TestHandshakeFirstFrameMustBeAuth(t *testing.T) {
	url := newWSTestServer(t, Config{})
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(Frame{Type: FrameJoin, Data: map[string]any{
		"conversationId": "conv1",
	}}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	f := readWire(t, ws)
	if f.Type != EventError {
		t.Fatalf("expected %s, got %s", EventError, f.Type)
	}
	ev, err := payloadOf[errorEvent](f)
	if err != nil || ev.Code != errs.CodeAuthentication {
		t.Fatalf("expected code %d, got %+v err=%v", errs.CodeAuthentication, ev, err)
	}
	expectClosed(t, ws)
}

func TestHandshakeBadToken(t *testing.T) {
	url := newWSTestServer(t, Config{})
	ws, _, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	f := readWire(t, ws)
	if f.Type != EventError {
		t.Fatalf("expected %s, got %s", EventError, f.Type)
	}
	ev, err := payloadOf[errorEvent](f)
	if err != nil || ev.Code != errs.CodeAuthentication {
		t.Fatalf("expected code %d, got %+v err=%v", errs.CodeAuthentication, ev, err)
	}
	expectClosed(t, ws)
}

func TestHandshakeAuthDeadline(t *testing.T) {
	url := newWSTestServer(t, Config{HandshakeTimeout: 150 * time.Millisecond})
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// send nothing: the server must reject the connection on its own
	f := readWire(t, ws)
	if f.Type != EventError {
		t.Fatalf("expected %s, got %s", EventError, f.Type)
	}
	ev, err := payloadOf[errorEvent](f)
	if err != nil || ev.Code != errs.CodeAuthentication {
		t.Fatalf("expected code %d, got %+v err=%v", errs.CodeAuthentication, ev, err)
	}
	expectClosed(t, ws)
}
