package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/entrhq/lumina/pkg/types"
)

// Request is a command frame sent by a websocket client. ID is echoed in
// the reply.
type Request struct {
	ID      string            `json:"id"`
	Type    types.CommandType `json:"type"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// Frame is what the server writes to websocket clients: either the reply to
// a Request or a pushed run event.
type Frame struct {
	ID       string          `json:"id,omitempty"`
	Response *types.Response `json:"response,omitempty"`
	Event    *types.RunEvent `json:"event,omitempty"`
}

type wsHandler struct {
	backend  Backend
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
}

func newWSHandler(backend Backend, hub *Hub, opts Options) *wsHandler {
	return &wsHandler{
		backend: backend,
		hub:     hub,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are local UIs and extensions with their own origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the request and starts the connection's pumps.
func (s *wsHandler) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		debugLog.Warnf("failed to upgrade websocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)
	ws.SetReadLimit(s.opts.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func (s *wsHandler) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				debugLog.Warnf("websocket %s: %v", conn.ID, err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

func (s *wsHandler) writePump(conn *Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				debugLog.Warnf("failed to write to %s: %v", conn.ID, err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers one Request. Commands can block for a tool timeout,
// so each runs on its own goroutine; replies are matched by ID.
func (s *wsHandler) handleMessage(conn *Connection, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply(conn, "", types.Failf("invalid JSON message"))
		return
	}
	if req.Type == "" {
		s.reply(conn, req.ID, types.Failf("invalid command: missing type"))
		return
	}

	go func() {
		cmd := types.Command{Type: req.Type, Payload: req.Payload}
		s.reply(conn, req.ID, s.backend.Handle(conn.ctx, cmd).Normalize())
	}()
}

func (s *wsHandler) reply(conn *Connection, id string, resp types.Response) {
	if err := s.hub.SendJSON(conn, Frame{ID: id, Response: &resp}); err != nil {
		debugLog.Warnf("dropping reply %q to %s: %v", id, conn.ID, err)
	}
}
