package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

// ============================================================================
// Моки
// ============================================================================

// MockIdentity реализует Identity
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) GetByID(userID string) (*entity.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func knownUser(identity *MockIdentity, userID, username string) {
	identity.On("GetByID", userID).Return(&entity.User{UserID: userID, Username: username}, nil)
}

func newTestRegistry(identity *MockIdentity) *RoomRegistry {
	return NewRoomRegistry(identity, time.Second, time.Minute)
}

// ============================================================================
// Создание комнат
// ============================================================================

func TestRoomRegistry_CreateRoom(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	registry := newTestRegistry(identity)

	room, members, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)
	require.NotNil(t, room)

	assert.Len(t, room.Code, 6)
	for _, ch := range room.Code {
		assert.True(t, ch >= 'A' && ch <= 'Z', "код состоит только из заглавных букв: %s", room.Code)
	}
	assert.Equal(t, "creator-1", room.CreatorID)
	assert.Equal(t, entity.StateLobby, room.State())

	// Создатель сразу участник
	require.Len(t, members, 1)
	assert.Equal(t, "creator-1", members[0].UserID)
	assert.Equal(t, 1, registry.RoomCount())
}

func TestRoomRegistry_CreateRoom_UnknownCreator(t *testing.T) {
	identity := new(MockIdentity)
	identity.On("GetByID", "ghost").Return(nil, apperrors.ErrUserNotFound)
	registry := newTestRegistry(identity)

	_, _, err := registry.CreateRoom("ghost", "история")
	assert.ErrorIs(t, err, apperrors.ErrCreatorNotFound)
	assert.Equal(t, 0, registry.RoomCount())
}

func TestRoomRegistry_CreateRoom_EvictsPreviousRoom(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	registry := newTestRegistry(identity)

	first, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)

	second, _, err := registry.CreateRoom("creator-1", "космос")
	require.NoError(t, err)

	assert.Equal(t, 1, registry.RoomCount(), "у создателя не может быть двух живых комнат")
	_, ok := registry.GetRoom(first.Code)
	assert.False(t, ok, "старая комната создателя удалена")
	_, ok = registry.GetRoom(second.Code)
	assert.True(t, ok)
}

// ============================================================================
// Вход в комнаты
// ============================================================================

func TestRoomRegistry_JoinRoom(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	knownUser(identity, "u2", "bob")
	registry := newTestRegistry(identity)

	room, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)

	members, err := registry.JoinRoom("u2", room.Code)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "creator-1", members[0].UserID)
	assert.Equal(t, "u2", members[1].UserID)

	// Повторный вход идемпотентен
	members, err = registry.JoinRoom("u2", room.Code)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRoomRegistry_JoinRoom_Errors(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	identity.On("GetByID", "ghost").Return(nil, apperrors.ErrUserNotFound)
	registry := newTestRegistry(identity)

	room, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)

	_, err = registry.JoinRoom("creator-1", "NOSUCH")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)

	_, err = registry.JoinRoom("ghost", room.Code)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestRoomRegistry_JoinRoom_MovesUserBetweenRooms(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	knownUser(identity, "creator-2", "bob")
	knownUser(identity, "u3", "carol")
	registry := newTestRegistry(identity)

	roomA, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)
	roomB, _, err := registry.CreateRoom("creator-2", "космос")
	require.NoError(t, err)

	_, err = registry.JoinRoom("u3", roomA.Code)
	require.NoError(t, err)
	_, err = registry.JoinRoom("u3", roomB.Code)
	require.NoError(t, err)

	assert.False(t, roomA.HasMember("u3"), "вход в другую комнату снимает прежнее членство")
	assert.True(t, roomB.HasMember("u3"))
}

// ============================================================================
// Выход и удаление
// ============================================================================

func TestRoomRegistry_RemoveUser(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	knownUser(identity, "u2", "bob")
	registry := newTestRegistry(identity)

	room, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)
	_, err = registry.JoinRoom("u2", room.Code)
	require.NoError(t, err)

	code, members, remaining := registry.RemoveUser("u2")
	assert.Equal(t, room.Code, code)
	assert.Equal(t, 1, remaining)
	require.Len(t, members, 1)
	assert.Equal(t, "creator-1", members[0].UserID)

	// Пользователь вне комнат - no-op
	code, _, remaining = registry.RemoveUser("u2")
	assert.Empty(t, code)
	assert.Equal(t, 0, remaining)
}

func TestRoomRegistry_RemoveUser_EmptyRoomSurvivesUntilSweep(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	registry := newTestRegistry(identity)

	room, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)

	_, _, remaining := registry.RemoveUser("creator-1")
	assert.Equal(t, 0, remaining)

	// Опустевшая комната не удаляется синхронно
	_, ok := registry.GetRoom(room.Code)
	assert.True(t, ok)
}

func TestRoomRegistry_DeleteRoom_Idempotent(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	registry := newTestRegistry(identity)

	room, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)

	registry.DeleteRoom(room.Code)
	registry.DeleteRoom(room.Code)
	assert.Equal(t, 0, registry.RoomCount())

	// Индексы вычищены: создатель может сразу создать новую комнату
	_, _, err = registry.CreateRoom("creator-1", "космос")
	require.NoError(t, err)
}

func TestRoomRegistry_DeleteHook_FiredOnEveryDeletionPath(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	registry := newTestRegistry(identity)

	var deleted []string
	registry.SetDeleteHook(func(roomCode string) {
		deleted = append(deleted, roomCode)
	})

	// Явное удаление
	first, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)
	registry.DeleteRoom(first.Code)
	assert.Equal(t, []string{first.Code}, deleted)

	// Вытеснение прежней комнаты создателя
	second, _, err := registry.CreateRoom("creator-1", "космос")
	require.NoError(t, err)
	third, _, err := registry.CreateRoom("creator-1", "биология")
	require.NoError(t, err)
	assert.Equal(t, []string{first.Code, second.Code}, deleted)

	// Очистка заброшенной комнаты
	registry.RemoveUser("creator-1")
	registry.Sweep(time.Now().Add(2*time.Hour), time.Hour)
	assert.Equal(t, []string{first.Code, second.Code, third.Code}, deleted)

	// Повторное удаление хук не дергает
	registry.DeleteRoom(third.Code)
	assert.Len(t, deleted, 3)
}

// ============================================================================
// Очистка заброшенных комнат
// ============================================================================

func TestRoomRegistry_Sweep(t *testing.T) {
	identity := new(MockIdentity)
	knownUser(identity, "creator-1", "alice")
	knownUser(identity, "creator-2", "bob")
	registry := newTestRegistry(identity)

	emptyRoom, _, err := registry.CreateRoom("creator-1", "история")
	require.NoError(t, err)
	registry.RemoveUser("creator-1")

	occupiedRoom, _, err := registry.CreateRoom("creator-2", "космос")
	require.NoError(t, err)

	// До истечения порога не удаляется ничего
	removed := registry.Sweep(time.Now(), time.Hour)
	assert.Equal(t, 0, removed)

	// После порога удаляется только пустая комната
	removed = registry.Sweep(time.Now().Add(2*time.Hour), time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := registry.GetRoom(emptyRoom.Code)
	assert.False(t, ok)
	_, ok = registry.GetRoom(occupiedRoom.Code)
	assert.True(t, ok, "непустая комната не удаляется независимо от возраста")
}
