package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server ServerConfig
	JWT    JWTConfig
	Redis  RedisConfig
	AI     AIConfig
	Quiz   QuizConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// RedisConfig содержит настройки подключения к Redis.
// Redis опционален: при Enabled=false кеш сгенерированных вопросов не используется.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AIConfig содержит настройки провайдера генерации вопросов (Gemini)
type AIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// QuizConfig содержит настройки проведения викторин
type QuizConfig struct {
	// QuestionCount - количество вопросов в одной викторине
	QuestionCount int `mapstructure:"question_count"`

	// QuestionSeconds - длительность обратного отсчета на вопрос (в секундах)
	QuestionSeconds int `mapstructure:"question_seconds"`

	// SettleSeconds - пауза после показа правильного ответа (в секундах)
	SettleSeconds int `mapstructure:"settle_seconds"`

	// SweepIntervalSec - интервал обхода реестра для удаления заброшенных комнат
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`

	// IdleThresholdMin - сколько минут пустая комната живет до удаления
	IdleThresholdMin int `mapstructure:"idle_threshold_min"`

	// CacheTTLMin - время жизни кеша сгенерированных вопросов (в минутах)
	CacheTTLMin int `mapstructure:"cache_ttl_min"`
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("redis.enabled", false)
	vip.SetDefault("redis.db", 0)
	vip.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	vip.SetDefault("ai.model", "gemini-1.5-flash")
	vip.SetDefault("quiz.question_count", 10)
	vip.SetDefault("quiz.question_seconds", 8)
	vip.SetDefault("quiz.settle_seconds", 3)
	vip.SetDefault("quiz.sweep_interval_sec", 30)
	vip.SetDefault("quiz.idle_threshold_min", 15)
	vip.SetDefault("quiz.cache_ttl_min", 60)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("redis.enabled", "REDIS_ENABLED")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")

	vip.BindEnv("ai.api_key", "GOOGLE_API_KEY")
	vip.BindEnv("ai.base_url", "AI_BASE_URL")
	vip.BindEnv("ai.model", "AI_MODEL")

	vip.BindEnv("quiz.question_count", "QUIZ_QUESTION_COUNT")
	vip.BindEnv("quiz.question_seconds", "QUIZ_QUESTION_SECONDS")
	vip.BindEnv("quiz.settle_seconds", "QUIZ_SETTLE_SECONDS")
	vip.BindEnv("quiz.sweep_interval_sec", "QUIZ_SWEEP_INTERVAL_SEC")
	vip.BindEnv("quiz.idle_threshold_min", "QUIZ_IDLE_THRESHOLD_MIN")
	vip.BindEnv("quiz.cache_ttl_min", "QUIZ_CACHE_TTL_MIN")

	// 3. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else if os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Allowed Origins: %v", cfg.Server.AllowedOrigins)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("JWT Expiration Hours: %d", cfg.JWT.ExpirationHrs)
		log.Printf("Redis Enabled: %t", cfg.Redis.Enabled)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("AI API Key Set: %t", cfg.AI.APIKey != "")
		log.Printf("AI Model: %s", cfg.AI.Model)
		log.Printf("Quiz Question Count: %d", cfg.Quiz.QuestionCount)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required when redis is enabled (check REDIS_ADDR env var)")
	}
	if cfg.AI.APIKey == "" {
		log.Println("Warning: GOOGLE_API_KEY is not set, question generation will degrade to empty quizzes.")
	}

	return &cfg, nil
}
