package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

func TestUserService_Register(t *testing.T) {
	svc := NewUserService()

	user, err := svc.Register("  alice  ")
	require.NoError(t, err)
	assert.NotEmpty(t, user.UserID)
	assert.Equal(t, "alice", user.Username, "имя нормализуется")

	// Одинаковые имена дают разных пользователей
	other, err := svc.Register("alice")
	require.NoError(t, err)
	assert.NotEqual(t, user.UserID, other.UserID)
	assert.Equal(t, 2, svc.Count())
}

func TestUserService_Register_EmptyUsername(t *testing.T) {
	svc := NewUserService()

	_, err := svc.Register("   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, svc.Count())
}

func TestUserService_GetByID(t *testing.T) {
	svc := NewUserService()
	user, err := svc.Register("alice")
	require.NoError(t, err)

	found, err := svc.GetByID(user.UserID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, found.Username)

	_, err = svc.GetByID("no-such-id")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_Remove(t *testing.T) {
	svc := NewUserService()
	user, err := svc.Register("alice")
	require.NoError(t, err)

	svc.Remove(user.UserID)
	_, err = svc.GetByID(user.UserID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
