package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"liveclass/internal/api"
	"liveclass/internal/config"
	"liveclass/internal/hub"
	"liveclass/internal/router"
	"liveclass/internal/store"
	"liveclass/internal/ws"
	"liveclass/pkg/types"
)

// testServer wires the full stack behind a real HTTP listener: store, room
// registry, router, hub, websocket handler and chi routes.
type testServer struct {
	ts    *httptest.Server
	store *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zerolog.Nop()
	st := store.New()
	st.Seed()
	rooms := ws.NewRegistry(log)
	rt := router.New(st, rooms, log)

	h := hub.New(rt, log)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("starting hub: %v", err)
	}

	wsHandler := ws.NewHandler(h, log, 100*time.Millisecond, 5*time.Second)
	srv := api.NewServer(st, rooms, wsHandler.HandleWebSocket, log)
	ts := httptest.NewServer(srv.Routes(config.CORSConfig{AllowedOrigins: []string{"*"}}))

	t.Cleanup(func() {
		ts.Close()
		if err := h.Stop(); err != nil {
			t.Logf("stopping hub: %v", err)
		}
	})
	return &testServer{ts: ts, store: st}
}

// client is one websocket participant.
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *testServer) *client {
	t.Helper()

	u := "ws" + strings.TrimPrefix(srv.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", u, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(event string, data any) {
	c.t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshaling %s payload: %v", event, err)
	}
	if err := c.conn.WriteJSON(types.Envelope{Event: event, Data: raw}); err != nil {
		c.t.Fatalf("writing %s: %v", event, err)
	}
}

// expect reads frames until one carries the wanted event. Unrelated frames
// are skipped so broadcasts interleaved with replies do not break assertions,
// but an error frame fails the test immediately.
func (c *client) expect(event string) json.RawMessage {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for i := 0; i < 20; i++ {
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.t.Fatalf("reading frame while waiting for %q: %v", event, err)
		}
		if ev.Event == event {
			return ev.Data
		}
		if ev.Event == types.EventError && event != types.EventError {
			c.t.Fatalf("error frame while waiting for %q: %s", event, ev.Data)
		}
	}
	c.t.Fatalf("no %q frame received", event)
	return nil
}

func (c *client) register(id, name, role string) {
	c.t.Helper()

	c.send(types.EventRegisterUser, map[string]any{
		"id":    id,
		"email": id + "@example.com",
		"name":  name,
		"role":  role,
	})
	c.expect(types.EventUserRegistered)
}

func unmarshal(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decoding payload %s: %v", raw, err)
	}
}
