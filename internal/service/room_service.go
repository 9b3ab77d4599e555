package service

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

const (
	// roomCodeLength - длина кода комнаты
	roomCodeLength = 6

	// roomCodeAlphabet - алфавит кода: только заглавные латинские буквы
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// maxCodeAttempts - количество попыток подобрать свободный код,
	// прежде чем создание комнаты будет отклонено
	maxCodeAttempts = 10
)

// Identity проверяет, что идентификатор пользователя зарегистрирован
type Identity interface {
	GetByID(userID string) (*entity.User, error)
}

// RoomRegistry владеет множеством живых комнат.
// Комнаты индексируются по коду, а также по создателю (у создателя не может
// быть двух живых комнат) и по участнику (пользователь состоит не более чем
// в одной комнате). Индексы избавляют от линейных обходов карты комнат.
type RoomRegistry struct {
	identity Identity

	sweepInterval time.Duration
	idleThreshold time.Duration

	mu        sync.RWMutex
	rooms     map[string]*entity.Room
	byCreator map[string]string // creatorID -> roomCode
	byUser    map[string]string // userID -> roomCode

	// Вызывается при каждом удалении комнаты (вытеснение, sweep, явное
	// удаление), чтобы идущий цикл викторины был остановлен немедленно,
	// а не на следующей проверке существования комнаты.
	onDelete func(roomCode string)
}

// SetDeleteHook задает обработчик удаления комнаты. Выставляется один раз
// при сборке приложения, до приема первых команд.
func (r *RoomRegistry) SetDeleteHook(hook func(roomCode string)) {
	r.mu.Lock()
	r.onDelete = hook
	r.mu.Unlock()
}

// NewRoomRegistry создает новый реестр комнат
func NewRoomRegistry(identity Identity, sweepInterval, idleThreshold time.Duration) *RoomRegistry {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	if idleThreshold <= 0 {
		idleThreshold = 15 * time.Minute
	}
	return &RoomRegistry{
		identity:      identity,
		sweepInterval: sweepInterval,
		idleThreshold: idleThreshold,
		rooms:         make(map[string]*entity.Room),
		byCreator:     make(map[string]string),
		byUser:        make(map[string]string),
	}
}

// CreateRoom создает комнату для зарегистрированного создателя.
// Предыдущая живая комната того же создателя удаляется: у создателя
// всегда не более одной комнаты. Создатель сразу становится участником.
func (r *RoomRegistry) CreateRoom(creatorID, topic string) (*entity.Room, []entity.MemberInfo, error) {
	creator, err := r.identity.GetByID(creatorID)
	if err != nil {
		return nil, nil, apperrors.ErrCreatorNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Если этот пользователь уже создавал комнату - удаляем ее перед созданием новой
	if oldCode, ok := r.byCreator[creatorID]; ok {
		log.Printf("[RoomRegistry] Создатель %s уже владеет комнатой %s, комната вытесняется", creatorID, oldCode)
		r.deleteRoomLocked(oldCode)
	}

	code, err := r.generateCodeLocked()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	room := entity.NewRoom(code, topic, creatorID, now)

	// Пользователь состоит не более чем в одной комнате:
	// членство в прежней комнате снимается
	r.detachUserLocked(creatorID, now)

	members := room.AddMember(&entity.User{UserID: creator.UserID, Username: creator.Username}, now)
	r.rooms[code] = room
	r.byCreator[creatorID] = code
	r.byUser[creatorID] = code

	log.Printf("[RoomRegistry] Создана комната %s (тема: %q, создатель: %s)", code, topic, creatorID)
	return room, members, nil
}

// JoinRoom добавляет зарегистрированного пользователя в комнату.
// Повторный вход в ту же комнату идемпотентен. Вход в другую комнату
// снимает членство в предыдущей (комната остается до sweep).
func (r *RoomRegistry) JoinRoom(userID, roomCode string) ([]entity.MemberInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomCode]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}

	user, err := r.identity.GetByID(userID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	now := time.Now()
	if prev, ok := r.byUser[userID]; ok && prev != roomCode {
		r.detachUserLocked(userID, now)
	}

	members := room.AddMember(&entity.User{UserID: user.UserID, Username: user.Username}, now)
	r.byUser[userID] = roomCode
	return members, nil
}

// GetMembers возвращает снимок участников комнаты в порядке входа
func (r *RoomRegistry) GetMembers(roomCode string) ([]entity.MemberInfo, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomCode]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return room.Members(), nil
}

// GetRoom возвращает живую комнату по коду
func (r *RoomRegistry) GetRoom(roomCode string) (*entity.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomCode]
	return room, ok
}

// RemoveUser убирает пользователя из комнаты, в которой он состоит.
// Опустевшая комната НЕ удаляется синхронно - ее подберет sweep, чтобы
// идущий цикл викторины мог спокойно пережить комнату без участников.
// Возвращает код комнаты, снимок оставшихся участников и их количество.
func (r *RoomRegistry) RemoveUser(userID string) (string, []entity.MemberInfo, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byUser[userID]
	if !ok {
		return "", nil, 0
	}
	delete(r.byUser, userID)

	room, ok := r.rooms[code]
	if !ok {
		return "", nil, 0
	}

	_, remaining, members := room.RemoveMember(userID, time.Now())
	log.Printf("[RoomRegistry] Пользователь %s покинул комнату %s (осталось участников: %d)", userID, code, remaining)
	return code, members, remaining
}

// DeleteRoom удаляет комнату из реестра. Удаление уже удаленной комнаты - no-op.
func (r *RoomRegistry) DeleteRoom(roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteRoomLocked(roomCode)
}

// RoomCount возвращает количество живых комнат
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Sweep удаляет каждую комнату без участников, простаивающую дольше порога.
// Непустые комнаты не удаляются независимо от возраста. Идемпотентен.
// Возвращает количество удаленных комнат.
func (r *RoomRegistry) Sweep(now time.Time, idleThreshold time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, room := range r.rooms {
		if room.MemberCount() == 0 && now.Sub(room.LastActive()) > idleThreshold {
			r.deleteRoomLocked(code)
			removed++
			log.Printf("[RoomRegistry] Удалена заброшенная комната %s", code)
		}
	}
	return removed
}

// RunSweeper периодически вызывает Sweep до отмены контекста.
// Запускается один раз на время жизни процесса.
func (r *RoomRegistry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	log.Printf("[RoomRegistry] Запущена периодическая очистка комнат (интервал %v, порог простоя %v)", r.sweepInterval, r.idleThreshold)
	for {
		select {
		case <-ticker.C:
			r.Sweep(time.Now(), r.idleThreshold)
		case <-ctx.Done():
			log.Println("[RoomRegistry] Очистка комнат остановлена")
			return
		}
	}
}

// generateCodeLocked подбирает свободный 6-буквенный код комнаты.
// Каждый символ выбирается равномерно; коллизия с живой комнатой ведет
// к повторной генерации, после maxCodeAttempts попыток - к отказу.
func (r *RoomRegistry) generateCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		buf := make([]byte, roomCodeLength)
		for i := range buf {
			buf[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		code := string(buf)
		if _, exists := r.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", apperrors.ErrRoomCodeExhausted
}

// detachUserLocked снимает членство пользователя в его текущей комнате, если оно есть
func (r *RoomRegistry) detachUserLocked(userID string, now time.Time) {
	prev, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(r.byUser, userID)
	if room, ok := r.rooms[prev]; ok {
		room.RemoveMember(userID, now)
	}
}

// deleteRoomLocked удаляет комнату и вычищает все индексы на нее
func (r *RoomRegistry) deleteRoomLocked(roomCode string) {
	room, ok := r.rooms[roomCode]
	if !ok {
		return
	}
	for _, m := range room.Members() {
		if r.byUser[m.UserID] == roomCode {
			delete(r.byUser, m.UserID)
		}
	}
	if r.byCreator[room.CreatorID] == roomCode {
		delete(r.byCreator, room.CreatorID)
	}
	delete(r.rooms, roomCode)

	// Хук не берет блокировок реестра: отмена контекста безопасна под r.mu
	if r.onDelete != nil {
		r.onDelete(roomCode)
	}
}
