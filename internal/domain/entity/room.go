package entity

import (
	"sort"
	"sync"
	"time"
)

// RoomState описывает фазу жизненного цикла комнаты
type RoomState string

const (
	// StateLobby - комната создана, викторина еще не запущена
	StateLobby RoomState = "lobby"
	// StateAwaitingQuestions - запуск принят, идет генерация вопросов
	StateAwaitingQuestions RoomState = "awaiting_questions"
	// StateQuestion - вопрос отправлен, идет обратный отсчет
	StateQuestion RoomState = "question"
	// StateRevealingAnswer - отправлен правильный ответ на текущий вопрос
	StateRevealingAnswer RoomState = "revealing_answer"
	// StateInterQuestionPause - пауза между вопросами
	StateInterQuestionPause RoomState = "inter_question_pause"
	// StateFinished - викторина завершена, комната подлежит удалению
	StateFinished RoomState = "finished"
)

// roomScore хранит счет участника вместе с порядком его входа в комнату.
// Порядок входа используется для стабильной сортировки таблицы результатов.
type roomScore struct {
	user    *User
	joinSeq int
}

// Room - состояние одной викторины: участники, вопросы, текущий индекс,
// множество ответивших на текущий вопрос и отметка активности.
// Все мутации проходят через методы комнаты под ее собственным мьютексом;
// цикл викторины является единственным писателем questions и current,
// обработчики submit-answer - единственными писателями submitted и счета.
type Room struct {
	Code      string
	Topic     string
	CreatorID string

	mu        sync.RWMutex
	state     RoomState
	members   map[string]*roomScore
	nextSeq   int
	departed  []*roomScore
	questions []Question
	current   int
	submitted map[string]struct{}

	// Канал текущего вопроса: закрывается, когда все участники ответили.
	// Пересоздается в начале каждого вопроса.
	earlyFinish chan struct{}
	earlyFired  bool

	lastActive time.Time
}

// NewRoom создает комнату в состоянии лобби.
// current = -1 до отправки первого вопроса.
func NewRoom(code, topic, creatorID string, now time.Time) *Room {
	return &Room{
		Code:       code,
		Topic:      topic,
		CreatorID:  creatorID,
		state:      StateLobby,
		members:    make(map[string]*roomScore),
		current:    -1,
		submitted:  make(map[string]struct{}),
		lastActive: now,
	}
}

// AddMember добавляет участника в комнату. Повторное добавление того же
// пользователя идемпотентно и не сбрасывает его счет. Вернувшийся после
// выхода участник получает обратно свою прежнюю запись вместе со счетом,
// иначе он попал бы в итоговую таблицу дважды.
// Возвращает актуальный список участников в порядке входа.
func (r *Room) AddMember(user *User, now time.Time) []MemberInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[user.UserID]; !ok {
		if entry, ok := r.reclaimDepartedLocked(user.UserID); ok {
			r.members[user.UserID] = entry
		} else {
			r.members[user.UserID] = &roomScore{user: user, joinSeq: r.nextSeq}
			r.nextSeq++
		}
	}
	r.lastActive = now
	return r.membersLocked()
}

// reclaimDepartedLocked извлекает запись ранее вышедшего участника.
// Вызывается только под мьютексом.
func (r *Room) reclaimDepartedLocked(userID string) (*roomScore, bool) {
	for i, e := range r.departed {
		if e.user.UserID == userID {
			r.departed = append(r.departed[:i], r.departed[i+1:]...)
			return e, true
		}
	}
	return nil, false
}

// RemoveMember удаляет участника из комнаты. Его счет сохраняется для
// итоговой таблицы результатов (участник, вышедший в середине викторины,
// остается в quiz-finished с частичным счетом).
// Возвращает признак удаления, количество оставшихся участников и их снимок.
func (r *Room) RemoveMember(userID string, now time.Time) (bool, int, []MemberInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.members[userID]
	if !ok {
		return false, len(r.members), r.membersLocked()
	}

	delete(r.members, userID)
	delete(r.submitted, userID)
	r.departed = append(r.departed, entry)
	r.lastActive = now

	// Удаление могло сделать условие "все ответили" истинным.
	// Пустую комнату не ускоряем: цикл обязан переживать ноль получателей.
	if len(r.members) > 0 && r.allSubmittedLocked() {
		r.fireEarlyFinishLocked()
	}

	return true, len(r.members), r.membersLocked()
}

// HasMember проверяет членство пользователя в комнате
func (r *Room) HasMember(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[userID]
	return ok
}

// MemberCount возвращает текущее количество участников
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members возвращает снимок участников в порядке входа в комнату
func (r *Room) Members() []MemberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []MemberInfo {
	entries := make([]*roomScore, 0, len(r.members))
	for _, e := range r.members {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].joinSeq < entries[j].joinSeq })

	out := make([]MemberInfo, len(entries))
	for i, e := range entries {
		out[i] = MemberInfo{UserID: e.user.UserID, Username: e.user.Username, Score: e.user.Score}
	}
	return out
}

// Leaderboard возвращает итоговую таблицу: текущие и вышедшие участники,
// по убыванию счета, при равенстве - по порядку входа в комнату.
func (r *Room) Leaderboard() []MemberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*roomScore, 0, len(r.members)+len(r.departed))
	for _, e := range r.members {
		entries = append(entries, e)
	}
	entries = append(entries, r.departed...)

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].user.Score != entries[j].user.Score {
			return entries[i].user.Score > entries[j].user.Score
		}
		return entries[i].joinSeq < entries[j].joinSeq
	})

	out := make([]MemberInfo, len(entries))
	for i, e := range entries {
		out[i] = MemberInfo{UserID: e.user.UserID, Username: e.user.Username, Score: e.user.Score}
	}
	return out
}

// LastActive возвращает время последней активности комнаты
func (r *Room) LastActive() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActive
}

// State возвращает текущее состояние комнаты
func (r *Room) State() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetState переводит комнату в указанное состояние
func (r *Room) SetState(state RoomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// TryStart атомарно переводит комнату из лобби в ожидание вопросов.
// Возвращает false, если викторина уже запущена или завершена.
func (r *Room) TryStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateLobby {
		return false
	}
	r.state = StateAwaitingQuestions
	r.lastActive = time.Now()
	return true
}

// SetQuestions сохраняет сгенерированный набор вопросов.
// Вызывается единственный раз циклом викторины до первого вопроса.
func (r *Room) SetQuestions(questions []Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = questions
}

// QuestionCount возвращает количество вопросов комнаты
func (r *Room) QuestionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.questions)
}

// QuestionAt возвращает вопрос по индексу
func (r *Room) QuestionAt(index int) (Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.questions) {
		return Question{}, false
	}
	return r.questions[index], true
}

// CurrentIndex возвращает индекс текущего вопроса (-1 до старта)
func (r *Room) CurrentIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// BeginQuestion открывает раунд вопроса index: устанавливает текущий индекс,
// очищает множество ответивших и возвращает канал досрочного завершения,
// который закрывается в момент, когда ответили все текущие участники.
func (r *Room) BeginQuestion(index int, now time.Time) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateQuestion
	r.current = index
	r.submitted = make(map[string]struct{})
	r.earlyFinish = make(chan struct{})
	r.earlyFired = false
	r.lastActive = now
	return r.earlyFinish
}

// Finish переводит комнату в завершенное состояние.
// Индекс устанавливается за последний вопрос, сохраняя инвариант
// current ∈ [-1, len(questions)].
func (r *Room) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateFinished
	r.current = len(r.questions)
}

// Submit регистрирует ответ участника на текущий вопрос.
// Не-участники, повторные ответы и ответы вне раунда молча игнорируются:
// засчитывается не более одного ответа на пользователя на вопрос.
// Возвращает true, если ответ был зарегистрирован.
func (r *Room) Submit(userID string, answerIndex int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current < 0 || r.current >= len(r.questions) {
		return false
	}
	entry, ok := r.members[userID]
	if !ok {
		return false
	}
	if _, dup := r.submitted[userID]; dup {
		return false
	}

	r.submitted[userID] = struct{}{}
	if r.questions[r.current].IsCorrect(answerIndex) {
		entry.user.Score++
	}
	r.lastActive = now

	if r.allSubmittedLocked() {
		r.fireEarlyFinishLocked()
	}
	return true
}

// SubmittedCount возвращает количество ответивших на текущий вопрос
func (r *Room) SubmittedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.submitted)
}

// allSubmittedLocked проверяет, что каждый текущий участник уже ответил.
// Вызывается только под мьютексом.
func (r *Room) allSubmittedLocked() bool {
	if len(r.members) == 0 {
		return false
	}
	for id := range r.members {
		if _, ok := r.submitted[id]; !ok {
			return false
		}
	}
	return true
}

// fireEarlyFinishLocked закрывает канал досрочного завершения не более
// одного раза за вопрос. Вызывается только под мьютексом.
func (r *Room) fireEarlyFinishLocked() {
	if r.earlyFinish == nil || r.earlyFired {
		return
	}
	r.earlyFired = true
	close(r.earlyFinish)
}
