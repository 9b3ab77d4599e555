package websocket

// Типы входящих сообщений (от клиента к серверу)
const (
	// CREATE_ROOM - создание комнаты: {"topic": "..."}
	CREATE_ROOM = "create-room"

	// JOIN_ROOM - вход в комнату: {"roomId": "ABCDEF"}
	JOIN_ROOM = "join-room"

	// MEMBERS - запрос списка участников комнаты: {"roomId": "ABCDEF"}
	MEMBERS = "members"

	// START_QUIZ - запуск викторины создателем: {"roomId": "ABCDEF"}
	START_QUIZ = "start-quiz"

	// SUBMIT_ANSWER - ответ на текущий вопрос: {"roomId": "ABCDEF", "answer": 2}
	SUBMIT_ANSWER = "submit-answer"
)

// Типы исходящих сообщений (от сервера к клиенту)
const (
	// ROOM_UPDATED - состав комнаты изменился
	ROOM_UPDATED = "room-updated"

	// QUIZ_STARTING - викторина запускается, вопросы генерируются
	QUIZ_STARTING = "quiz-starting"

	// NEW_QUESTION - показ нового вопроса (без правильного ответа)
	NEW_QUESTION = "new-question"

	// TIMER - тик обратного отсчета вопроса
	TIMER = "timer"

	// NEW_ANSWER - показ правильного ответа
	NEW_ANSWER = "new-answer"

	// QUIZ_WAITING - пауза между вопросами
	QUIZ_WAITING = "quiz-waiting"

	// QUIZ_FINISHED - итоговая таблица результатов
	QUIZ_FINISHED = "quiz-finished"

	// ACK - подтверждение обработки запроса клиента
	ACK = "ack"

	// SERVER_ERROR - сообщение об ошибке обработки
	SERVER_ERROR = "error"
)
