package quizrunner

import (
	"context"
	"time"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
)

// Constants for default values
const (
	DefaultQuestionCount  = 10
	DefaultCountdownTicks = 8
	DefaultSettleTicks    = 3
)

// Config содержит настройки цикла викторины.
// TickInterval - длительность одной "единицы времени"; в продакшене это
// секунда, тесты подставляют миллисекунды.
type Config struct {
	// QuestionCount - количество вопросов в викторине
	QuestionCount int

	// CountdownTicks - количество тиков обратного отсчета на вопрос
	CountdownTicks int

	// SettleTicks - пауза после показа ответа (в тиках)
	SettleTicks int

	// TickInterval - длительность одного тика
	TickInterval time.Duration

	// StartDelay - задержка между quiz-starting и началом цикла,
	// чтобы клиенты успели переключить экран
	StartDelay time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		QuestionCount:  DefaultQuestionCount,
		CountdownTicks: DefaultCountdownTicks,
		SettleTicks:    DefaultSettleTicks,
		TickInterval:   time.Second,
		StartDelay:     100 * time.Millisecond,
	}
}

// RoomProvider - подмножество реестра комнат, нужное циклу викторины
type RoomProvider interface {
	GetRoom(roomCode string) (*entity.Room, bool)
	DeleteRoom(roomCode string)
}

// QuestionSource генерирует упорядоченный набор вопросов по теме.
// Контракт: при любой ошибке провайдера цикл продолжает работу с пустым
// набором, поэтому реализациям разрешено возвращать (nil, err).
type QuestionSource interface {
	Generate(ctx context.Context, topic string) ([]entity.Question, error)
}

// Broadcaster доставляет событие всем текущим участникам комнаты.
// Отправка fire-and-forget: ошибки транспорта не прерывают викторину.
type Broadcaster interface {
	BroadcastToRoom(roomCode, eventType string, data interface{}) error
}

// Dependencies содержит зависимости цикла викторины
type Dependencies struct {
	Rooms       RoomProvider
	Source      QuestionSource
	Broadcaster Broadcaster
}
