package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
	"github.com/dilshadmohammed/quiz-ai/internal/service"
	"github.com/dilshadmohammed/quiz-ai/pkg/auth"
)

// UserHandler обрабатывает HTTP-запросы регистрации пользователей
type UserHandler struct {
	userService *service.UserService
	jwtService  *auth.JWTService
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(userService *service.UserService, jwtService *auth.JWTService) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
	}
}

// RegisterRequest - тело запроса регистрации
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
}

// Register регистрирует сессионного пользователя и выдает токен доступа
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}

	user, err := h.userService.Register(req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
			return
		}
		log.Printf("[UserHandler] Ошибка регистрации пользователя: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	token, err := h.jwtService.GenerateToken(user.UserID, user.Username)
	if err != nil {
		log.Printf("[UserHandler] Ошибка генерации токена для %s: %v", user.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"userId":   user.UserID,
		"username": user.Username,
	})
}
