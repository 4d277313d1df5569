package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
	maxFrameSize = 4 << 10
)

// Authorizer decides whether uid may listen on topic.
type Authorizer func(ctx context.Context, uid string, topic Topic) error

// Gauge is satisfied by prometheus.Gauge.
type Gauge interface {
	Inc()
	Dec()
}

type clientFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type Handler struct {
	hub         *Hub
	authorize   Authorizer
	upgrader    websocket.Upgrader
	connections Gauge
}

func NewHandler(hub *Hub, authorize Authorizer, checkOrigin func(r *http.Request) bool, connections Gauge) *Handler {
	return &Handler{
		hub:       hub,
		authorize: authorize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		connections: connections,
	}
}

// Serve upgrades the request and runs the connection until either side closes it.
func (h *Handler) Serve(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"code": "unauthorized", "message": "missing uid"},
		})
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil
	}
	if h.connections != nil {
		h.connections.Inc()
		defer h.connections.Dec()
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	sub := newSubscriber()
	defer h.hub.unsubscribeAll(sub)

	replies := make(chan Event, 8)
	go h.writeLoop(ctx, conn, sub, replies)
	h.readLoop(ctx, conn, uid, sub, replies)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, uid string, sub *subscriber, replies chan<- Event) {
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := h.handleFrame(ctx, uid, sub, data)
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, uid string, sub *subscriber, data []byte) Event {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{Type: TypeError, Message: "invalid frame"}
	}
	topic, err := ParseTopic(f.Topic)
	if err != nil {
		return Event{Type: TypeError, Topic: f.Topic, Message: err.Error()}
	}
	key := topic.String()
	switch f.Action {
	case "subscribe":
		if h.authorize != nil {
			if err := h.authorize(ctx, uid, topic); err != nil {
				return Event{Type: TypeError, Topic: key, Message: "forbidden"}
			}
		}
		h.hub.subscribe(key, sub)
	case "unsubscribe":
		h.hub.unsubscribe(key, sub)
	default:
		return Event{Type: TypeError, Topic: key, Message: "unknown action"}
	}
	return Event{Type: TypeAck, Topic: key, Event: f.Action}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *subscriber, replies <-chan Event) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case payload := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
