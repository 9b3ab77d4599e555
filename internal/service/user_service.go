package service

import (
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

// UserService - реестр сессионных пользователей.
// Аккаунты не персистентны: пользователь живет, пока жив процесс.
type UserService struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

// NewUserService создает новый реестр пользователей
func NewUserService() *UserService {
	return &UserService{
		users: make(map[string]*entity.User),
	}
}

// Register регистрирует пользователя по имени и возвращает его идентификатор
func (s *UserService) Register(username string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.ErrValidation
	}

	user := &entity.User{
		UserID:   uuid.NewString(),
		Username: username,
	}

	s.mu.Lock()
	s.users[user.UserID] = user
	s.mu.Unlock()

	log.Printf("[UserService] Зарегистрирован пользователь %s (%s)", user.Username, user.UserID)
	return user, nil
}

// GetByID возвращает зарегистрированного пользователя по идентификатору
func (s *UserService) GetByID(userID string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

// Remove удаляет пользователя из реестра (например, при явном завершении сессии)
func (s *UserService) Remove(userID string) {
	s.mu.Lock()
	delete(s.users, userID)
	s.mu.Unlock()
}

// Count возвращает количество зарегистрированных пользователей
func (s *UserService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
