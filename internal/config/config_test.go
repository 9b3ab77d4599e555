package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 24, cfg.JWT.ExpirationHrs)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.Model)
	assert.Equal(t, 10, cfg.Quiz.QuestionCount)
	assert.Equal(t, 8, cfg.Quiz.QuestionSeconds)
	assert.Equal(t, 3, cfg.Quiz.SettleSeconds)
	assert.Equal(t, 30, cfg.Quiz.SweepIntervalSec)
	assert.Equal(t, 15, cfg.Quiz.IdleThresholdMin)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("QUIZ_QUESTION_COUNT", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, 5, cfg.Quiz.QuestionCount)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoad_RedisAddrRequiredWhenEnabled(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis addr")
}

func TestLoad_MissingConfigFileIsNotFatal(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}
