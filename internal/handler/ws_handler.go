package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
	"github.com/dilshadmohammed/quiz-ai/internal/service"
	"github.com/dilshadmohammed/quiz-ai/internal/service/quizrunner"
	"github.com/dilshadmohammed/quiz-ai/internal/websocket"
	"github.com/dilshadmohammed/quiz-ai/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения и команды комнат
type WSHandler struct {
	hub        *websocket.Hub
	manager    *websocket.Manager
	registry   *service.RoomRegistry
	runner     *quizrunner.Runner
	jwtService *auth.JWTService
	users      *service.UserService
	upgrader   gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	hub *websocket.Hub,
	manager *websocket.Manager,
	registry *service.RoomRegistry,
	runner *quizrunner.Runner,
	jwtService *auth.JWTService,
	users *service.UserService,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		hub:        hub,
		manager:    manager,
		registry:   registry,
		runner:     runner,
		jwtService: jwtService,
		users:      users,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	h.registerMessageHandlers()
	hub.SetDisconnectHandler(h.handleDisconnect)

	return h
}

// originChecker разрешает подключения без Origin (не-браузерные клиенты)
// и браузерные подключения с разрешенных доменов. Список синхронизирован
// с CORS-конфигурацией HTTP-сервера.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		log.Printf("[WSHandler] Отклонено подключение с неразрешенного origin: %s", origin)
		return false
	}
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Токен передается параметром запроса, т.к. браузерный WebSocket API
// не умеет выставлять заголовок Authorization.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication token parameter"})
		return
	}

	claims, err := h.jwtService.ParseToken(token)
	if err != nil {
		log.Printf("[WSHandler] Невалидный или просроченный токен: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	// Токен мог пережить рестарт процесса: пользователя уже нет в реестре
	if _, err := h.users.GetByID(claims.UserID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user, please register again"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения: %v", err)
		return
	}

	log.Printf("[WSHandler] Соединение установлено для пользователя %s (%s)", claims.Username, claims.UserID)

	client := websocket.NewClient(h.hub, conn, claims.UserID)
	client.StartPumps(h.manager.HandleMessage)
}

// createRoomPayload - данные сообщения create-room
type createRoomPayload struct {
	Topic string `json:"topic"`
}

// roomPayload - данные сообщений, адресованных комнате
type roomPayload struct {
	RoomID string `json:"roomId"`
}

// submitAnswerPayload - данные сообщения submit-answer
type submitAnswerPayload struct {
	RoomID string `json:"roomId"`
	Answer int    `json:"answer"`
}

// registerMessageHandlers связывает типы входящих сообщений с операциями комнат
func (h *WSHandler) registerMessageHandlers() {
	h.manager.RegisterHandler(websocket.CREATE_ROOM, h.handleCreateRoom)
	h.manager.RegisterHandler(websocket.JOIN_ROOM, h.handleJoinRoom)
	h.manager.RegisterHandler(websocket.MEMBERS, h.handleMembers)
	h.manager.RegisterHandler(websocket.START_QUIZ, h.handleStartQuiz)
	h.manager.RegisterHandler(websocket.SUBMIT_ANSWER, h.handleSubmitAnswer)
}

// handleCreateRoom создает комнату и привязывает к ней соединение создателя
func (h *WSHandler) handleCreateRoom(data json.RawMessage, client *websocket.Client) (interface{}, error) {
	var payload createRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, websocket.NewUserError("Invalid create-room payload.")
	}

	room, members, err := h.registry.CreateRoom(client.UserID, payload.Topic)
	if err != nil {
		return nil, mapRoomError(err)
	}

	h.hub.JoinRoom(client, room.Code)

	return map[string]interface{}{
		"roomId": room.Code,
		"users":  members,
	}, nil
}

// handleJoinRoom добавляет пользователя в комнату и оповещает остальных
func (h *WSHandler) handleJoinRoom(data json.RawMessage, client *websocket.Client) (interface{}, error) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, websocket.NewUserError("Invalid join-room payload.")
	}

	members, err := h.registry.JoinRoom(client.UserID, payload.RoomID)
	if err != nil {
		return nil, mapRoomError(err)
	}

	h.hub.JoinRoom(client, payload.RoomID)
	h.broadcastRoomUpdate(payload.RoomID, members)

	return map[string]interface{}{
		"roomId": payload.RoomID,
		"users":  members,
	}, nil
}

// handleMembers возвращает снимок участников комнаты
func (h *WSHandler) handleMembers(data json.RawMessage, client *websocket.Client) (interface{}, error) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, websocket.NewUserError("Invalid members payload.")
	}

	members, err := h.registry.GetMembers(payload.RoomID)
	if err != nil {
		return nil, mapRoomError(err)
	}

	return map[string]interface{}{
		"users": members,
	}, nil
}

// handleStartQuiz запускает викторину от имени создателя комнаты
func (h *WSHandler) handleStartQuiz(data json.RawMessage, client *websocket.Client) (interface{}, error) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, websocket.NewUserError("Invalid start-quiz payload.")
	}

	count, err := h.runner.Start(payload.RoomID, client.UserID)
	if err != nil {
		return nil, mapRoomError(err)
	}

	return map[string]interface{}{
		"roomId":        payload.RoomID,
		"questionCount": count,
	}, nil
}

// handleSubmitAnswer регистрирует ответ участника на текущий вопрос
func (h *WSHandler) handleSubmitAnswer(data json.RawMessage, client *websocket.Client) (interface{}, error) {
	var payload submitAnswerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, websocket.NewUserError("Invalid submit-answer payload.")
	}

	h.runner.SubmitAnswer(payload.RoomID, client.UserID, payload.Answer)

	return nil, nil
}

// handleDisconnect вызывается хабом после отключения последнего соединения
// пользователя: членство в комнате снимается, остальные получают room-updated.
// Опустевшую комнату подберет периодическая очистка реестра.
func (h *WSHandler) handleDisconnect(userID string) {
	code, members, remaining := h.registry.RemoveUser(userID)
	if code == "" || remaining == 0 {
		return
	}
	h.broadcastRoomUpdate(code, members)
}

// broadcastRoomUpdate рассылает участникам комнаты свежий состав
func (h *WSHandler) broadcastRoomUpdate(roomCode string, members interface{}) {
	if err := h.manager.BroadcastToRoom(roomCode, websocket.ROOM_UPDATED, map[string]interface{}{
		"roomId": roomCode,
		"users":  members,
	}); err != nil {
		log.Printf("[WSHandler] Ошибка рассылки room-updated в комнату %s: %v", roomCode, err)
	}
}

// mapRoomError переводит доменные ошибки в сообщения для клиента
func mapRoomError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrRoomNotFound):
		return websocket.NewUserError("Room not found.")
	case errors.Is(err, apperrors.ErrUserNotFound), errors.Is(err, apperrors.ErrCreatorNotFound):
		return websocket.NewUserError("User not found.")
	case errors.Is(err, apperrors.ErrNotCreator):
		return websocket.NewUserError("Only the room creator can start the quiz.")
	case errors.Is(err, apperrors.ErrQuizAlreadyRunning):
		return websocket.NewUserError("Quiz is already running in this room.")
	case errors.Is(err, apperrors.ErrRoomCodeExhausted):
		return websocket.NewUserError("Could not allocate a room code, try again.")
	default:
		return err
	}
}
