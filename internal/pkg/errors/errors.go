package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrRoomNotFound используется, когда комната с указанным кодом не существует.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUserNotFound используется, когда идентификатор пользователя не зарегистрирован.
	ErrUserNotFound = errors.New("user not found")

	// ErrCreatorNotFound используется при создании комнаты незарегистрированным пользователем.
	ErrCreatorNotFound = errors.New("creator not found")

	// ErrNotCreator используется, когда викторину пытается запустить не создатель комнаты.
	ErrNotCreator = errors.New("only the room creator can start the quiz")

	// ErrQuizAlreadyRunning используется при повторном запуске викторины в той же комнате.
	ErrQuizAlreadyRunning = errors.New("quiz is already running")

	// ErrRoomCodeExhausted используется, когда не удалось подобрать свободный код комнаты.
	ErrRoomCodeExhausted = errors.New("could not allocate a unique room code")

	// ErrNotFound используется для отсутствующих записей в кеше.
	ErrNotFound = errors.New("record not found")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")
)
