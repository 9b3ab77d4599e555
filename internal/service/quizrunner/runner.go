package quizrunner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

// Runner проводит викторины: по одной горутине на комнату.
// Каждый цикл - конечный автомат
// lobby -> awaiting_questions -> question(i) -> revealing_answer(i) ->
// inter_question_pause -> ... -> finished,
// все переходы транслируются участникам через Broadcaster.
type Runner struct {
	config *Config
	deps   *Dependencies

	// Функции отмены идущих викторин по коду комнаты
	roomCancels sync.Map // map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner создает новый исполнитель викторин
func NewRunner(config *Config, deps *Dependencies) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config: config,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start запускает викторину в комнате от имени пользователя userID.
// Проверки выполняются синхронно; сам цикл уходит в отдельную горутину,
// и вызывающий получает подтверждение сразу.
func (r *Runner) Start(roomCode, userID string) (int, error) {
	room, ok := r.deps.Rooms.GetRoom(roomCode)
	if !ok {
		return 0, apperrors.ErrRoomNotFound
	}
	if room.CreatorID != userID {
		return 0, apperrors.ErrNotCreator
	}
	if !room.TryStart() {
		return 0, apperrors.ErrQuizAlreadyRunning
	}

	count := r.config.QuestionCount
	log.Printf("[QuizRunner] Комната %s: викторина запущена создателем %s (%d вопросов)", roomCode, userID, count)

	r.emit(roomCode, "quiz-starting", map[string]interface{}{
		"roomId":        roomCode,
		"questionCount": count,
	})

	quizCtx, quizCancel := context.WithCancel(r.ctx)
	r.roomCancels.Store(roomCode, quizCancel)
	go r.run(quizCtx, roomCode, count)

	return count, nil
}

// SubmitAnswer регистрирует ответ участника на текущий вопрос комнаты.
// Неизвестная комната, не-участник и повторный ответ молча игнорируются:
// на пользователя засчитывается не более одного ответа на вопрос.
func (r *Runner) SubmitAnswer(roomCode, userID string, answerIndex int) {
	room, ok := r.deps.Rooms.GetRoom(roomCode)
	if !ok {
		return
	}
	if room.Submit(userID, answerIndex, time.Now()) {
		log.Printf("[QuizRunner] Комната %s: пользователь %s ответил на вопрос #%d (%d/%d)",
			roomCode, userID, room.CurrentIndex(), room.SubmittedCount(), room.MemberCount())
	}
}

// CancelRoom отменяет идущую викторину комнаты (например, при ее удалении)
func (r *Runner) CancelRoom(roomCode string) {
	if cancel, ok := r.roomCancels.LoadAndDelete(roomCode); ok {
		cancel.(context.CancelFunc)()
		log.Printf("[QuizRunner] Викторина в комнате %s отменена", roomCode)
	}
}

// Shutdown останавливает все идущие викторины
func (r *Runner) Shutdown() {
	log.Println("[QuizRunner] Остановка всех викторин...")
	r.cancel()
}

// run выполняет полный цикл викторины одной комнаты.
// Цикл не блокирует другие комнаты: все ожидания - select по таймеру,
// каналу досрочного завершения и контексту.
func (r *Runner) run(ctx context.Context, roomCode string, count int) {
	defer r.roomCancels.Delete(roomCode)

	room, ok := r.deps.Rooms.GetRoom(roomCode)
	if !ok {
		log.Printf("[QuizRunner] Комната %s исчезла до начала генерации вопросов", roomCode)
		return
	}

	// Генерация вопросов. Отказ провайдера не фатален: викторина
	// деградирует до пустого набора и немедленно завершается.
	questions, err := r.deps.Source.Generate(ctx, room.Topic)
	if err != nil {
		log.Printf("[QuizRunner] Комната %s: ошибка генерации вопросов по теме %q: %v", roomCode, room.Topic, err)
		questions = nil
	}
	questions = filterValid(questions)
	if len(questions) > count {
		questions = questions[:count]
	}
	if len(questions) < count {
		count = len(questions)
	}
	room.SetQuestions(questions)

	if count == 0 {
		log.Printf("[QuizRunner] Комната %s: вопросов нет, викторина завершается с пустым результатом", roomCode)
		r.finish(roomCode, room)
		return
	}

	// Даем клиентам время переключиться после quiz-starting
	if !r.sleep(ctx, r.config.StartDelay) {
		return
	}

	for i := 0; i < count; i++ {
		// Комната могла быть удалена между вопросами
		if _, ok := r.deps.Rooms.GetRoom(roomCode); !ok {
			log.Printf("[QuizRunner] Комната %s исчезла на вопросе #%d, цикл прерван", roomCode, i)
			return
		}

		question, _ := room.QuestionAt(i)

		// Новый раунд: индекс, чистое множество ответивших, канал досрочного финиша
		earlyFinish := room.BeginQuestion(i, time.Now())

		r.emit(roomCode, "new-question", map[string]interface{}{
			"index":    i,
			"question": question.Text,
			"options":  question.Options, // Правильный индекс клиентам не отправляется
		})

		// Обратный отсчет: один timer-тик на единицу времени.
		// Досрочный финиш срабатывает в момент, когда ответили все участники,
		// без дожидания оставшихся тиков.
	countdown:
		for remaining := r.config.CountdownTicks; remaining > 0; remaining-- {
			r.emit(roomCode, "timer", map[string]interface{}{
				"type":      "question",
				"index":     i,
				"remaining": remaining,
			})

			select {
			case <-time.After(r.config.TickInterval):
			case <-earlyFinish:
				log.Printf("[QuizRunner] Комната %s: все участники ответили на вопрос #%d, отсчет завершен досрочно", roomCode, i)
				break countdown
			case <-ctx.Done():
				log.Printf("[QuizRunner] Комната %s: цикл викторины прерван на вопросе #%d", roomCode, i)
				return
			}
		}

		// Показ правильного ответа. Индекс комнаты остается равным i до
		// начала следующего раунда: поздние ответы еще засчитываются по нему.
		room.SetState(entity.StateRevealingAnswer)
		r.emit(roomCode, "new-answer", map[string]interface{}{
			"index":  i,
			"answer": question.CorrectOption,
		})

		room.SetState(entity.StateInterQuestionPause)
		if !r.sleep(ctx, time.Duration(r.config.SettleTicks)*r.config.TickInterval) {
			return
		}

		r.emit(roomCode, "quiz-waiting", map[string]interface{}{
			"message": "Waiting for all users to submit their answers...",
		})
	}

	r.finish(roomCode, room)
}

// finish отправляет итоговую таблицу и удаляет комнату из реестра
func (r *Runner) finish(roomCode string, room *entity.Room) {
	room.Finish()

	r.emit(roomCode, "quiz-finished", map[string]interface{}{
		"users": room.Leaderboard(),
	})

	r.deps.Rooms.DeleteRoom(roomCode)
	log.Printf("[QuizRunner] Комната %s: викторина завершена, комната удалена", roomCode)
}

// emit отправляет событие комнате. Ошибки транспорта только логируются:
// отвалившиеся получатели не прерывают викторину для остальных.
func (r *Runner) emit(roomCode, eventType string, data interface{}) {
	if err := r.deps.Broadcaster.BroadcastToRoom(roomCode, eventType, data); err != nil {
		log.Printf("[QuizRunner] Ошибка при отправке события %s в комнату %s: %v", eventType, roomCode, err)
	}
}

// sleep ждет d с учетом отмены контекста. Возвращает false при отмене.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// filterValid отбрасывает вопросы с неполными вариантами или индексом
// ответа вне диапазона - провайдеру нельзя доверять формат
func filterValid(questions []entity.Question) []entity.Question {
	out := questions[:0]
	for _, q := range questions {
		if q.IsValid() {
			out = append(out, q)
		}
	}
	return out
}
