package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// DisconnectHandler вызывается после удаления последнего соединения пользователя
type DisconnectHandler func(userID string)

// Hub ведет множество активных клиентов и индекс клиентов по комнатам.
// У пользователя одно живое соединение: повторное подключение с тем же
// userID вытесняет предыдущее.
type Hub struct {
	mu sync.RWMutex

	// Все активные клиенты
	clients map[*Client]bool

	// Индекс клиента по ID пользователя
	byUser map[string]*Client

	// Индекс клиентов по коду комнаты
	rooms map[string]map[*Client]bool

	// Комната, к которой привязан клиент
	clientRoom map[*Client]string

	// Обработчик отключения пользователя (выставляется до первого клиента)
	onDisconnect DisconnectHandler
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		clientRoom: make(map[*Client]string),
	}
}

// SetDisconnectHandler задает обработчик отключения пользователя
func (h *Hub) SetDisconnectHandler(handler DisconnectHandler) {
	h.mu.Lock()
	h.onDisconnect = handler
	h.mu.Unlock()
}

// RegisterClient регистрирует клиента. Старое соединение того же
// пользователя закрывается, чтобы не раздваивать доставку.
func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()

	if old, ok := h.byUser[client.UserID]; ok && old != client {
		log.Printf("[Hub] Пользователь %s открыл новое соединение %s, старое (%s) закрывается", client.UserID, client.ConnectionID, old.ConnectionID)
		h.removeClientLocked(old)
		old.CloseSend()
	}

	h.clients[client] = true
	h.byUser[client.UserID] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("[Hub] Клиент зарегистрирован: UserID=%s, ConnID=%s (всего: %d)", client.UserID, client.ConnectionID, total)
}

// UnregisterClient удаляет клиента из хаба и закрывает его канал отправки.
// Если это было последнее соединение пользователя, дергает onDisconnect.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeClientLocked(client)

	userGone := h.byUser[client.UserID] == nil
	handler := h.onDisconnect
	total := len(h.clients)
	h.mu.Unlock()

	client.CloseSend()
	log.Printf("[Hub] Клиент отключен: UserID=%s, ConnID=%s (всего: %d)", client.UserID, client.ConnectionID, total)

	// Колбэк зовем без блокировки хаба: он ходит в реестр комнат
	if userGone && handler != nil {
		handler(client.UserID)
	}
}

// removeClientLocked вычищает клиента из всех индексов. Вызывается под h.mu.
func (h *Hub) removeClientLocked(client *Client) {
	delete(h.clients, client)
	if h.byUser[client.UserID] == client {
		delete(h.byUser, client.UserID)
	}
	h.leaveRoomLocked(client)
}

// JoinRoom привязывает клиента к комнате. Клиент состоит не более чем
// в одной комнате: предыдущая привязка снимается.
func (h *Hub) JoinRoom(client *Client, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clientRoom[client] == roomCode {
		return
	}
	h.leaveRoomLocked(client)

	members, ok := h.rooms[roomCode]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[roomCode] = members
	}
	members[client] = true
	h.clientRoom[client] = roomCode
	log.Printf("[Hub] Клиент %s привязан к комнате %s (%d соединений в комнате)", client.UserID, roomCode, len(members))
}

// LeaveRoom снимает привязку клиента к комнате
func (h *Hub) LeaveRoom(client *Client) {
	h.mu.Lock()
	h.leaveRoomLocked(client)
	h.mu.Unlock()
}

func (h *Hub) leaveRoomLocked(client *Client) {
	code, ok := h.clientRoom[client]
	if !ok {
		return
	}
	delete(h.clientRoom, client)
	if members, ok := h.rooms[code]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
}

// BroadcastJSONToRoom отправляет структуру JSON всем клиентам комнаты.
// Комната без подключенных клиентов - не ошибка: рассылка просто никого
// не достигает.
func (h *Hub) BroadcastJSONToRoom(roomCode string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast for room %s: %w", roomCode, err)
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomCode]))
	for client := range h.rooms[roomCode] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.sendToClient(client, data)
	}
	return nil
}

// SendJSONToUser отправляет структуру JSON конкретному пользователю
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for user %s: %w", userID, err)
	}

	h.mu.RLock()
	client, ok := h.byUser[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}
	h.sendToClient(client, data)
	return nil
}

// sendToClient кладет сообщение в буфер клиента без блокировки.
// Переполненный буфер означает зависшего получателя - сообщение
// отбрасывается, чтобы не тормозить рассылку остальным.
func (h *Hub) sendToClient(client *Client, data []byte) {
	if client.IsSendClosed() {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Printf("[Hub] Буфер клиента %s (ConnID: %s) переполнен, сообщение отброшено", client.UserID, client.ConnectionID)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
