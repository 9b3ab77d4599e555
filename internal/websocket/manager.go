package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent - входящее сообщение клиента. Поле ack опционально:
// если клиент прислал его, он ждет подтверждение с тем же ack.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Ack  json.RawMessage `json:"ack,omitempty"`
}

// HandlerFunc обрабатывает сообщение клиента. Возвращенный результат
// попадает в ack-ответ; пользовательская ошибка (userError) уходит клиенту
// в том же ack, прочие ошибки фатальны для соединения.
type HandlerFunc func(data json.RawMessage, client *Client) (interface{}, error)

// userError - ошибка, предназначенная для показа клиенту
type userError struct {
	message string
}

func (e *userError) Error() string { return e.message }

// NewUserError создает ошибку, которая уходит клиенту как есть и не
// закрывает соединение
func NewUserError(message string) error {
	return &userError{message: message}
}

// Manager обрабатывает WebSocket сообщения
type Manager struct {
	hub            HubInterface
	messageHandler map[string]HandlerFunc
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub HubInterface) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]HandlerFunc),
	}
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler HandlerFunc) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Не удалось разобрать сообщение от %s: %v, сообщение: %s", client.UserID, err, string(message))
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		log.Printf("[WebSocketManager] Нет обработчика для сообщений типа %q от клиента %s", event.Type, client.UserID)
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	result, err := handler(event.Data, client)
	if err != nil {
		if uerr, ok := err.(*userError); ok {
			// Ожидаемый отказ: сообщаем клиенту, соединение живет дальше
			m.acknowledge(client, event.Ack, failureResult(uerr.message))
			return nil
		}
		log.Printf("[WebSocketManager] Обработчик %q вернул ошибку для клиента %s: %v", event.Type, client.UserID, err)
		return err
	}

	m.acknowledge(client, event.Ack, successResult(result))
	return nil
}

// successResult оборачивает результат обработчика в стандартную форму
// подтверждения {success, ...}. Поля результата дополняют оболочку.
func successResult(result interface{}) map[string]interface{} {
	out := map[string]interface{}{"success": true}
	if extra, ok := result.(map[string]interface{}); ok {
		for k, v := range extra {
			out[k] = v
		}
	}
	return out
}

// failureResult строит стандартную форму отказа {success: false, message}
func failureResult(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": message,
	}
}

// acknowledge отправляет клиенту подтверждение обработки, если он его ждал.
// На одно входящее сообщение уходит не более одного ack; результат всегда
// несет поле success, отказы - еще и message.
func (m *Manager) acknowledge(client *Client, ack json.RawMessage, result map[string]interface{}) {
	if len(ack) == 0 {
		return
	}
	event := Event{
		Type: ACK,
		Data: map[string]interface{}{
			"id":   ack,
			"data": result,
		},
	}
	if err := m.hub.SendJSONToUser(client.UserID, event); err != nil {
		log.Printf("[WebSocketManager] Не удалось отправить ack клиенту %s: %v", client.UserID, err)
	}
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Этот метод НЕ закрывает соединение.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: SERVER_ERROR,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSONToUser(client.UserID, errorEvent); err != nil {
		log.Printf("[WebSocketManager] Не удалось отправить ошибку клиенту %s: %v", client.UserID, err)
	}
}

// BroadcastToRoom отправляет событие всем участникам комнаты
func (m *Manager) BroadcastToRoom(roomCode, eventType string, data interface{}) error {
	return m.hub.BroadcastJSONToRoom(roomCode, Event{
		Type: eventType,
		Data: data,
	})
}

// SendEventToUser отправляет событие конкретному пользователю
func (m *Manager) SendEventToUser(userID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userID, Event{
		Type: eventType,
		Data: data,
	})
}

// GetMetrics возвращает текущие метрики WebSocket-системы
func (m *Manager) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"client_count": m.hub.ClientCount(),
	}
}
