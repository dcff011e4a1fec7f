package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
)

// Authorizer проверяет право пользователя войти в комнату предложения
type Authorizer interface {
	UserCanAccessProposal(ctx context.Context, userID, proposalID string) (bool, error)
}

// AuthorizerFunc позволяет использовать функцию как Authorizer
type AuthorizerFunc func(ctx context.Context, userID, proposalID string) (bool, error)

// UserCanAccessProposal реализует Authorizer
func (f AuthorizerFunc) UserCanAccessProposal(ctx context.Context, userID, proposalID string) (bool, error) {
	return f(ctx, userID, proposalID)
}

// Relay пересылает события другим экземплярам сервиса
type Relay interface {
	Forward(room string, payload []byte)
}

// Manager представляет центральный менеджер для всех WebSocket соединений.
// Комната соответствует одному предложению.
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	rooms        map[string]map[uuid.UUID]*Client // proposalID -> клиенты
	roomsMutex   sync.RWMutex
	authorizer   Authorizer
	relay        Relay
	ctx          context.Context
	cancel       context.CancelFunc
}

var _ brokerage.Broadcaster = (*Manager)(nil)

// NewManager создает новый экземпляр Manager
func NewManager(authorizer Authorizer) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[string]map[uuid.UUID]*Client),
		authorizer: authorizer,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetRelay подключает межсерверную пересылку событий
func (m *Manager) SetRelay(r Relay) {
	m.relay = r
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	log.Printf("WebSocket client %s connected for user %s", client.ID, client.UserID)
}

// RemoveClient удаляет клиента из менеджера и всех комнат
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	if !exists {
		return
	}

	m.roomsMutex.Lock()
	for room := range client.rooms() {
		m.leaveLocked(room, clientID)
	}
	m.roomsMutex.Unlock()

	log.Printf("WebSocket client %s disconnected for user %s", clientID, client.UserID)
}

// Join добавляет клиента в комнату после серверной проверки доступа
func (m *Manager) Join(client *Client, proposalID string) bool {
	if proposalID == "" || m.authorizer == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()

	ok, err := m.authorizer.UserCanAccessProposal(ctx, client.UserID, proposalID)
	if err != nil {
		log.Printf("Ошибка проверки доступа %s к комнате %s: %v", client.UserID, proposalID, err)
		return false
	}
	if !ok {
		return false
	}

	m.roomsMutex.Lock()
	defer m.roomsMutex.Unlock()
	// Клиент мог закрыться, пока шла проверка доступа: закрытый не возвращаем в комнату.
	// Close закрывает closeChan до того, как RemoveClient возьмёт roomsMutex.
	select {
	case <-client.closeChan:
		return false
	default:
	}
	if _, exists := m.rooms[proposalID]; !exists {
		m.rooms[proposalID] = make(map[uuid.UUID]*Client)
	}
	m.rooms[proposalID][client.ID] = client
	// отмечаем под roomsMutex, чтобы RemoveClient увидел комнату
	client.markJoined(proposalID, true)
	return true
}

// JoinMany возвращает комнаты, в которые клиент был допущен
func (m *Manager) JoinMany(client *Client, proposalIDs []string) []string {
	admitted := make([]string, 0, len(proposalIDs))
	seen := make(map[string]bool, len(proposalIDs))
	for _, id := range proposalIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if m.Join(client, id) {
			admitted = append(admitted, id)
		}
	}
	return admitted
}

// Leave удаляет клиента из комнаты
func (m *Manager) Leave(client *Client, proposalID string) {
	m.roomsMutex.Lock()
	m.leaveLocked(proposalID, client.ID)
	client.markJoined(proposalID, false)
	m.roomsMutex.Unlock()
}

func (m *Manager) leaveLocked(room string, clientID uuid.UUID) {
	if members, ok := m.rooms[room]; ok {
		delete(members, clientID)
		// Если это был последний клиент, удаляем комнату
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// RoomSize возвращает число клиентов в комнате
func (m *Manager) RoomSize(room string) int {
	m.roomsMutex.RLock()
	defer m.roomsMutex.RUnlock()
	return len(m.rooms[room])
}

// Publish реализует brokerage.Broadcaster: доставляет событие локальной комнате
// и пересылает его другим экземплярам
func (m *Manager) Publish(room string, event brokerage.Event) {
	// Устанавливаем время события, если не установлено
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	m.Deliver(room, eventJSON)
	if m.relay != nil {
		m.relay.Forward(room, eventJSON)
	}
}

// Deliver отправляет готовый кадр всем клиентам комнаты на этом экземпляре
func (m *Manager) Deliver(room string, payload []byte) {
	m.roomsMutex.RLock()
	members := make([]*Client, 0, len(m.rooms[room]))
	for _, c := range m.rooms[room] {
		members = append(members, c)
	}
	m.roomsMutex.RUnlock()

	for _, c := range members {
		if !c.enqueue(payload) {
			// Канал заполнен, клиент слишком медленный - закрываем соединение
			log.Printf("Send channel full for client %s, closing connection", c.ID)
			c.Close()
		}
	}
}

// Shutdown корректно завершает работу менеджера WebSocket
func (m *Manager) Shutdown() {
	m.cancel()

	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clientsMutex.RUnlock()

	for _, client := range clients {
		client.Close()
	}

	m.roomsMutex.Lock()
	m.rooms = make(map[string]map[uuid.UUID]*Client)
	m.roomsMutex.Unlock()
}
