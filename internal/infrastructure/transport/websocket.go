package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

const (
	MsgStartMission = "start_mission"
	MsgCancel       = "cancel"
	MsgApprove      = "approve"
	MsgDeny         = "deny"
	MsgPing         = "ping"
	MsgPong         = "pong"
	MsgError        = "error"
	MsgAck          = "ack"
)

type ClientMessage struct {
	Type          string          `json:"type"`
	Goal          string          `json:"goal,omitempty"`
	URL           string          `json:"url,omitempty"`
	MaxIterations int             `json:"max_iterations,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Timestamp     json.RawMessage `json:"timestamp,omitempty"`
}

type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// wsClient is one WebSocket connection. It owns at most one mission at a
// time and cancels it when the connection goes away.
type wsClient struct {
	id       string
	conn     *websocket.Conn
	missions input.MissionService
	logger   output.LoggerPort

	writeMu sync.Mutex

	mu      sync.Mutex
	session string
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		id:       chi.URLParam(r, "clientID"),
		conn:     conn,
		missions: s.missions,
	}
	c.logger = s.logger.WithField("client", c.id)
	c.logger.Info("WebSocket connected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go c.keepAlive(ctx)

	c.readLoop(ctx)

	if id := c.activeSession(); id != "" && c.missions.Cancel(id) {
		c.logger.Info("Cancelled mission of disconnected client", "session", id)
	}
	_ = conn.Close()
	c.logger.Info("WebSocket disconnected")
}

func (c *wsClient) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(ServerMessage{Type: MsgError, Message: "invalid JSON message"})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case MsgStartMission:
		c.startMission(ctx, msg)
	case MsgCancel:
		c.control(msg, c.missions.Cancel, "cancel requested")
	case MsgApprove:
		c.control(msg, c.missions.Approve, "approval accepted")
	case MsgDeny:
		c.control(msg, c.missions.Deny, "denial accepted")
	case MsgPing:
		c.send(ServerMessage{Type: MsgPong, Timestamp: msg.Timestamp})
	default:
		c.logger.Warn("Unknown message type", "type", msg.Type)
		c.send(ServerMessage{Type: MsgError, Message: "unknown message type: " + msg.Type})
	}
}

func (c *wsClient) startMission(ctx context.Context, msg ClientMessage) {
	if strings.TrimSpace(msg.Goal) == "" || strings.TrimSpace(msg.URL) == "" {
		c.send(ServerMessage{Type: MsgError, Message: "Missing required fields: goal and url"})
		return
	}
	if id := c.activeSession(); id != "" {
		if snap, ok := c.missions.Get(id); ok && snap.Running {
			c.send(ServerMessage{Type: MsgError, SessionID: id, Message: "a mission is already running on this connection"})
			return
		}
	}

	id, events, err := c.missions.Start(ctx, input.StartRequest{
		Goal:          msg.Goal,
		URL:           msg.URL,
		MaxIterations: msg.MaxIterations,
	})
	if err != nil {
		c.send(ServerMessage{Type: MsgError, Message: err.Error()})
		return
	}

	c.mu.Lock()
	c.session = id
	c.mu.Unlock()

	go c.forward(events)
}

// forward streams one session's events until the session ends.
func (c *wsClient) forward(events <-chan entity.Event) {
	for ev := range events {
		c.send(ev)
	}
}

func (c *wsClient) control(msg ClientMessage, op func(string) bool, ack string) {
	id := msg.SessionID
	if id == "" {
		id = c.activeSession()
	}
	if id == "" {
		c.send(ServerMessage{Type: MsgError, Message: "no active mission"})
		return
	}
	if !op(id) {
		c.send(ServerMessage{Type: MsgError, SessionID: id, Message: "session does not accept " + msg.Type + " now"})
		return
	}
	c.send(ServerMessage{Type: MsgAck, SessionID: id, Message: ack})
}

func (c *wsClient) activeSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *wsClient) send(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.logger.Debug("WebSocket write failed", "error", err)
	}
}

func (c *wsClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
