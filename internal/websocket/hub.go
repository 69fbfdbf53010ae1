package websocket

import (
	"sync"

	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

// Hub WebSocket 연결 관리. 사용자별 인덱스와 세션별 룸 인덱스를 같이
// 유지한다. 세션 룸은 phase 변경 통지와 참가자 간 시그널링 중계에
// 쓰인다.
type Hub struct {
	clients  map[string]*Client            // userID -> client
	sessions map[string]map[string]*Client // sessionID -> userID -> client
	mu       sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	// 세션에 붙어 있던 연결이 끊길 때 호출된다 (이탈 처리용)
	OnDisconnect func(userID, sessionID string)
}

// Message WebSocket 메시지
type Message struct {
	UserID    string      `json:"-"` // 수신자 (빈 문자열이면 전체)
	SessionID string      `json:"-"` // 세션 룸 수신 시 설정
	ExceptID  string      `json:"-"` // 룸 전송 시 제외할 사용자
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
}

// PhaseChangeMessage phase 전이 알림
type PhaseChangeMessage struct {
	SessionID        string `json:"sessionId"`
	Phase            string `json:"phase"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// SessionStatusMessage 세션 상태 전이 알림
type SessionStatusMessage struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// MatchFoundMessage 매칭 성사 알림
type MatchFoundMessage struct {
	EntryID   string `json:"entryId"`
	SessionID string `json:"sessionId"`
}

// SignalMessage 참가자 간 시그널링 중계 (내용은 해석하지 않음)
type SignalMessage struct {
	FromUserID string      `json:"fromUserId"`
	Data       interface{} `json:"data"`
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 같은 사용자의 기존 연결은 새 연결로 대체
	if oldClient, exists := h.clients[client.userID]; exists {
		close(oldClient.send)
		h.removeFromSessionLocked(oldClient)
		logger.Info("Replaced existing WebSocket connection", "userId", client.userID)
	}

	h.clients[client.userID] = client

	if client.sessionID != "" {
		room, ok := h.sessions[client.sessionID]
		if !ok {
			room = make(map[string]*Client)
			h.sessions[client.sessionID] = room
		}
		room[client.userID] = client
	}

	logger.Info("WebSocket client registered",
		"userId", client.userID,
		"sessionId", client.sessionID,
		"totalClients", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	current, exists := h.clients[client.userID]
	if !exists || current != client {
		// 이미 새 연결로 대체됨
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.userID)
	close(client.send)
	h.removeFromSessionLocked(client)
	h.mu.Unlock()

	logger.Info("WebSocket client unregistered", "userId", client.userID)

	if client.sessionID != "" && h.OnDisconnect != nil {
		h.OnDisconnect(client.userID, client.sessionID)
	}
}

func (h *Hub) removeFromSessionLocked(client *Client) {
	if client.sessionID == "" {
		return
	}
	if room, ok := h.sessions[client.sessionID]; ok {
		delete(room, client.userID)
		if len(room) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
}

func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch {
	case message.SessionID != "":
		for userID, client := range h.sessions[message.SessionID] {
			if userID == message.ExceptID {
				continue
			}
			h.send(client, message)
		}

	case message.UserID != "":
		if client, exists := h.clients[message.UserID]; exists {
			h.send(client, message)
		}

	default:
		for _, client := range h.clients {
			h.send(client, message)
		}
	}
}

func (h *Hub) send(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		// 채널이 가득 찬 연결은 정리
		logger.Warn("Client send channel full, unregistering", "userId", client.userID)
		go func(c *Client) {
			h.unregister <- c
		}(client)
	}
}

// SendToUser 특정 사용자에게 메시지 전송
func (h *Hub) SendToUser(userID string, msgType string, payload interface{}) {
	h.broadcast <- &Message{
		UserID:  userID,
		Type:    msgType,
		Payload: payload,
	}
}

// SendToSession 세션 룸의 모든 참가자에게 전송
func (h *Hub) SendToSession(sessionID string, msgType string, payload interface{}) {
	h.broadcast <- &Message{
		SessionID: sessionID,
		Type:      msgType,
		Payload:   payload,
	}
}

// RelaySignal 보낸 사람을 제외한 세션 룸 참가자에게 시그널 중계
func (h *Hub) RelaySignal(sessionID, fromUserID string, data interface{}) {
	h.broadcast <- &Message{
		SessionID: sessionID,
		ExceptID:  fromUserID,
		Type:      "signal",
		Payload: SignalMessage{
			FromUserID: fromUserID,
			Data:       data,
		},
	}
}

// SendPhaseChange phase 전이 알림
func (h *Hub) SendPhaseChange(sessionID, phase string, remainingSeconds int) {
	h.SendToSession(sessionID, "phase_change", PhaseChangeMessage{
		SessionID:        sessionID,
		Phase:            phase,
		RemainingSeconds: remainingSeconds,
	})
}

// SendSessionStatus 세션 상태 전이 알림
func (h *Hub) SendSessionStatus(sessionID, status, reason string) {
	h.SendToSession(sessionID, "session_status", SessionStatusMessage{
		SessionID: sessionID,
		Status:    status,
		Reason:    reason,
	})
}

// SendMatchFound 매칭 성사 알림
func (h *Hub) SendMatchFound(userID, entryID, sessionID string) {
	h.SendToUser(userID, "match_found", MatchFoundMessage{
		EntryID:   entryID,
		SessionID: sessionID,
	})
}
