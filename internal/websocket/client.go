package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Максимальное время ожидания для pong от клиента
	pongWait = 60 * time.Second

	// Отправлять ping-сообщения клиенту с этим интервалом
	pingPeriod = (pongWait * 9) / 10

	// Таймаут записи одного кадра
	writeWait = 10 * time.Second

	// Максимальный размер сообщения от клиента
	maxMessageSize = 64 * 1024 // 64KB

	// Размер буфера для отправляемых сообщений
	writeBufferSize = 256
)

// Типы кадров протокола комнат
const (
	FrameJoinMany = "chat:joinMany"
	FrameJoin     = "chat:join"
	FrameLeave    = "chat:leave"
	FrameJoined   = "chat:joined"
)

// clientFrame – управляющий кадр от клиента
type clientFrame struct {
	Type        string   `json:"type"`
	ProposalID  string   `json:"proposal_id,omitempty"`
	ProposalIDs []string `json:"proposal_ids,omitempty"`
}

// joinedFrame – ответ со списком допущенных комнат
type joinedFrame struct {
	Type        string   `json:"type"`
	ProposalIDs []string `json:"proposal_ids"`
}

// Client представляет собой отдельное WebSocket соединение
type Client struct {
	ID        uuid.UUID
	UserID    string
	conn      *websocket.Conn
	send      chan []byte // Буферизованный канал исходящих сообщений
	manager   *Manager
	closeChan chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	joined map[string]bool
}

// NewClient создает новый экземпляр Client
func NewClient(userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, writeBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
		joined:    make(map[string]bool),
	}
}

// Start запускает клиентские горутины для чтения и записи
func (c *Client) Start() {
	// Добавляем клиент к менеджеру
	c.manager.AddClient(c)

	// Запускаем горутины для чтения и записи
	go c.readPump()
	go c.writePump()
}

// Close закрывает соединение и удаляет клиента из всех комнат; повторные вызовы безопасны
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.manager.RemoveClient(c.ID)
		for room := range c.rooms() {
			c.manager.Leave(c, room)
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// enqueue ставит кадр в очередь без блокировки; false – очередь переполнена
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.closeChan:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) markJoined(room string, in bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if in {
		c.joined[room] = true
	} else {
		delete(c.joined, room)
	}
}

func (c *Client) rooms() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.joined))
	for r := range c.joined {
		out[r] = true
	}
	return out
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer c.Close()

	// Настраиваем соединение
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Бесконечный цикл чтения сообщений
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}

		// Обрабатываем входящее сообщение
		c.handleIncomingMessage(message)
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}
		case <-ticker.C:
			// Отправляем ping для поддержания соединения
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			// Соединение закрыто, отправляем сообщение о закрытии
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleIncomingMessage обрабатывает управляющие кадры комнат.
// Пользователь берётся из токена соединения, а не из кадра.
func (c *Client) handleIncomingMessage(message []byte) {
	var frame clientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Printf("Error unmarshaling frame: %v", err)
		return
	}

	switch frame.Type {
	case FrameJoinMany:
		c.replyJoined(c.manager.JoinMany(c, frame.ProposalIDs))
	case FrameJoin:
		c.replyJoined(c.manager.JoinMany(c, []string{frame.ProposalID}))
	case FrameLeave:
		if frame.ProposalID != "" {
			c.manager.Leave(c, frame.ProposalID)
		}
	default:
		log.Printf("Unhandled frame type: %s", frame.Type)
	}
}

func (c *Client) replyJoined(admitted []string) {
	payload, err := json.Marshal(joinedFrame{Type: FrameJoined, ProposalIDs: admitted})
	if err != nil {
		log.Printf("Error marshaling frame: %v", err)
		return
	}
	if !c.enqueue(payload) {
		c.Close()
	}
}
