package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lujainibrahim/dyad-study/internal/service"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Submitter 디스패처로 커맨드 전달
type Submitter interface {
	Submit(cmd service.Command) error
}

// Hub WebSocket 연결 관리
type Hub struct {
	// 연결별 클라이언트 저장 (connID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	submitter Submitter
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// Message WebSocket 메시지 (양방향 공통 봉투)
type Message struct {
	Type    string      `json:"type"`    // 메시지 타입
	Payload interface{} `json:"payload"` // 메시지 내용
}

// NewHub Hub 생성. allowedOrigins에 "*"가 있으면 모든 origin 허용.
func NewHub(submitter Submitter, allowedOrigins []string, logger *zap.Logger) *Hub {
	allowAll := len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*")
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		submitter:  submitter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// Run ctx가 취소될 때까지 Hub 실행. 종료 시 모든 연결을 닫는다.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	h.logger.Debug("WebSocket client registered",
		zap.String("connId", client.id),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.id]; exists {
		delete(h.clients, client.id)
		client.closeSend()
		h.logger.Debug("WebSocket client unregistered",
			zap.String("connId", client.id),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.closeSend()
		delete(h.clients, id)
	}
	h.logger.Info("WebSocket hub stopped")
}

// Count 현재 연결 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}
