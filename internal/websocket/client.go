package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/internal/service"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 256
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client WebSocket 클라이언트. 코어에는 models.Connection으로 전달된다.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	send   chan *Message
	closed bool

	// readPump 고루틴만 접근
	participantID string
}

// NewClient 클라이언트 생성
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		logger: hub.logger.With(zap.String("connId", id)),
	}
}

// ID 연결 ID
func (c *Client) ID() string {
	return c.id
}

// Send 논블로킹 전송. 버퍼가 가득 찬 느린 클라이언트는 연결을 끊는다.
func (c *Client) Send(eventType string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- &Message{Type: eventType, Payload: payload}:
	default:
		c.logger.Warn("Client send buffer full, closing connection",
			zap.String("type", eventType))
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 클라이언트 프레임을 디스패처 커맨드로 변환 (핑/퐁 유지)
func (c *Client) readPump() {
	defer func() {
		if c.participantID != "" {
			c.submit(service.DisconnectCommand{ParticipantID: c.participantID, Conn: c})
		}
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.String("participantId", c.participantID),
					zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(models.EventError, models.ErrorPayload{Message: "malformed frame"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inboundMessage) {
	switch msg.Type {
	case models.EventJoin:
		var req models.JoinRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			c.Send(models.EventError, models.ErrorPayload{Message: "malformed join payload"})
			return
		}
		id := strings.TrimSpace(req.ParticipantID)
		if c.participantID != "" && id != c.participantID {
			c.Send(models.EventError, models.ErrorPayload{Message: "connection already joined as another participant"})
			return
		}
		if id != "" {
			c.participantID = id
		}
		c.submit(service.JoinCommand{Request: req, Conn: c})

	case models.EventMessage:
		if c.participantID == "" {
			return
		}
		var req models.ChatMessageRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			c.Send(models.EventError, models.ErrorPayload{Message: "malformed message payload"})
			return
		}
		c.submit(service.MessageCommand{ParticipantID: c.participantID, Text: req.Text})

	case models.EventFinished:
		if c.participantID == "" {
			return
		}
		c.submit(service.FinishCommand{ParticipantID: c.participantID})

	default:
		c.logger.Debug("Ignoring unknown event", zap.String("type", msg.Type))
	}
}

func (c *Client) submit(cmd service.Command) {
	if err := c.hub.submitter.Submit(cmd); err != nil {
		c.logger.Warn("Failed to submit command", zap.Error(err))
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// writePump 전송 채널의 메시지를 클라이언트에게 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 채널이 닫힘
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// JSON으로 인코딩
			data, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("Failed to marshal message",
					zap.String("type", message.Type),
					zap.Error(err))
				continue
			}

			// 메시지 전송
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			// Ping 전송
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 업그레이드 및 클라이언트 시작
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := NewClient(hub, conn)
	if !hub.add(client) {
		conn.Close()
		return
	}

	// 고루틴 시작
	go client.writePump()
	go client.readPump()
}
