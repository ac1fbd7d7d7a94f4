package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/model"
)

func startFeed(t *testing.T) (*WebSocketHandler, string) {
	t.Helper()
	handler := NewWebSocketHandler(zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(func() {
		handler.CloseAllConnections()
		server.Close()
	})
	return handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *WebSocketHandler, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewWebSocketHandler(t *testing.T) {
	// Act
	handler := NewWebSocketHandler(zap.NewNop())

	// Assert
	if handler == nil {
		t.Fatal("NewWebSocketHandler() returned nil")
	}
	if handler.clients == nil {
		t.Error("clients map should be initialized")
	}
	if !handler.upgrader.CheckOrigin(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Error("CheckOrigin should allow all origins")
	}
}

func TestWebSocketHandler_RegisterRoutes(t *testing.T) {
	// Arrange
	handler := NewWebSocketHandler(zap.NewNop())
	router := mux.NewRouter()

	// Act
	handler.RegisterRoutes(router)

	// Assert - the upgrade fails but the route exists
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rr.Code == http.StatusNotFound {
		t.Error("Route /ws not found")
	}
}

func TestWebSocketHandler_InvalidUpgrade(t *testing.T) {
	handler := NewWebSocketHandler(zap.NewNop())
	rr := httptest.NewRecorder()

	handler.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if handler.ClientCount() != 0 {
		t.Error("failed upgrade must not register a client")
	}
}

func TestWebSocketHandler_PublishBroadcasts(t *testing.T) {
	// Arrange
	handler, url := startFeed(t)
	conns := []*websocket.Conn{dial(t, url), dial(t, url), dial(t, url)}
	waitForClients(t, handler, len(conns))

	// Act
	handler.Publish(model.NewChangeEvent(model.EventCreated, "1"))
	handler.Publish(model.NewChangeEvent(model.EventDeleted, "2"))

	// Assert
	for i, conn := range conns {
		for _, want := range []model.ChangeEvent{
			{Type: model.EventCreated, ID: "1"},
			{Type: model.EventDeleted, ID: "2"},
		} {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var got model.ChangeEvent
			if err := conn.ReadJSON(&got); err != nil {
				t.Fatalf("client %d: ReadJSON() error = %v", i, err)
			}
			if got.Type != want.Type || got.ID != want.ID {
				t.Errorf("client %d: event = %+v, want %+v", i, got, want)
			}
			if got.Timestamp.IsZero() {
				t.Errorf("client %d: timestamp not set", i)
			}
		}
	}
}

func TestWebSocketHandler_PublishWithoutClients(t *testing.T) {
	handler := NewWebSocketHandler(zap.NewNop())

	// Must not block or panic.
	handler.Publish(model.NewChangeEvent(model.EventUpdated, "1"))
}

func TestWebSocketHandler_SlowClientDropsEvents(t *testing.T) {
	// Arrange - a client that is registered but never drained
	handler := NewWebSocketHandler(zap.NewNop())
	c := &client{addr: "slow", send: make(chan model.ChangeEvent, 1), cancel: func() {}}
	conn := &websocket.Conn{}
	handler.clients[conn] = c

	// Act
	handler.Publish(model.NewChangeEvent(model.EventCreated, "1"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Publish(model.NewChangeEvent(model.EventCreated, "2"))
	}()

	// Assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked on a full client queue")
	}
	if got := (<-c.send).ID; got != "1" {
		t.Errorf("queued event ID = %s, want 1", got)
	}
}

func TestWebSocketHandler_ClientDisconnect(t *testing.T) {
	// Arrange
	handler, url := startFeed(t)
	conn := dial(t, url)
	waitForClients(t, handler, 1)

	// Act
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()

	// Assert
	waitForClients(t, handler, 0)
}

func TestWebSocketHandler_ClientSendsMessage(t *testing.T) {
	handler, url := startFeed(t)
	conn := dial(t, url)
	waitForClients(t, handler, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	// Incoming messages are ignored and the connection stays registered.
	handler.Publish(model.NewChangeEvent(model.EventUpdated, "7"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.ChangeEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.ID != "7" {
		t.Errorf("event = %+v", got)
	}
}

func TestWebSocketHandler_CloseAllConnections(t *testing.T) {
	// Arrange
	handler, url := startFeed(t)
	conn := dial(t, url)
	waitForClients(t, handler, 1)

	// Act
	handler.CloseAllConnections()

	// Assert
	if handler.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", handler.ClientCount())
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Logf("read after close returned %v", err)
	}
	if err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestWebSocketHandler_CloseAllConnections_Empty(t *testing.T) {
	handler := NewWebSocketHandler(zap.NewNop())

	handler.CloseAllConnections()

	if handler.ClientCount() != 0 {
		t.Error("expected no clients")
	}
}

func TestWebSocketConstants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod (%v) must be shorter than pongWait (%v)", pingPeriod, pongWait)
	}
	if sendBuffer <= 0 {
		t.Error("sendBuffer must be positive")
	}
}
