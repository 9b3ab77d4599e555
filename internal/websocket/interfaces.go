package websocket

// HubInterface определяет возможности хаба, нужные менеджеру сообщений.
// Это каноническое определение интерфейса хаба.
type HubInterface interface {
	// RegisterClient регистрирует соединение клиента в хабе
	RegisterClient(client *Client)

	// UnregisterClient удаляет соединение клиента из хаба
	UnregisterClient(client *Client)

	// JoinRoom привязывает клиента к комнате для адресных рассылок
	JoinRoom(client *Client, roomCode string)

	// LeaveRoom снимает привязку клиента к комнате
	LeaveRoom(client *Client)

	// BroadcastJSONToRoom отправляет структуру JSON всем клиентам комнаты
	BroadcastJSONToRoom(roomCode string, v interface{}) error

	// SendJSONToUser отправляет структуру JSON конкретному пользователю
	SendJSONToUser(userID string, v interface{}) error

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
