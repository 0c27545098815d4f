package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"liveclass/pkg/types"
)

var upgrader = websocket.Upgrader{
	// Origin enforcement happens at the CORS layer in front of the API;
	// browsers eager to connect from other origins are rejected there.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// EventSink receives decoded client events and connection-loss notices.
// The hub implements it.
type EventSink interface {
	Submit(conn *Connection, env types.Envelope) error
	Disconnect(conn *Connection)
}

// Handler upgrades HTTP requests to WebSocket connections and runs the read
// side of each connection. A connection carries no credentials at upgrade
// time; the client identifies itself with its first register_user event.
type Handler struct {
	sink         EventSink
	log          zerolog.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
}

func NewHandler(sink EventSink, log zerolog.Logger, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		sink:         sink,
		log:          log.With().Str("component", "ws").Logger(),
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	wsConn := NewConnection(conn)
	go h.readPump(wsConn)
}

// readPump reads frames until the connection drops, keeping the heartbeat
// alive with a ping ticker and a sliding read deadline.
func (h *Handler) readPump(c *Connection) {
	defer func() {
		h.sink.Disconnect(c)
		_ = c.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			case <-c.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Str("user", c.UserID()).Msg("read loop ended")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			frame := types.ServerEvent{
				Event:     types.EventError,
				Data:      types.ErrorPayload{Code: types.ErrCodeInvalidPayload, Message: "malformed event frame"},
				Timestamp: time.Now(),
			}
			_ = c.WriteJSON(frame)
			continue
		}

		if err := h.sink.Submit(c, env); err != nil {
			h.log.Warn().Err(err).Str("event", env.Event).Msg("event dropped")
			frame := types.ServerEvent{
				Event:     types.EventError,
				Data:      types.ErrorPayload{Code: types.ErrCodeInternal, Message: "server busy, event dropped"},
				Timestamp: time.Now(),
			}
			_ = c.WriteJSON(frame)
		}
	}
}
