package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	apperrors "github.com/dilshadmohammed/quiz-ai/internal/pkg/errors"
)

// ============================================================================
// Моки и хелперы
// ============================================================================

// MockCacheRepo реализует repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepo) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

// geminiReply собирает ответ generateContent с указанным текстом
func geminiReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": text},
					},
				},
			},
		},
	}
}

func questionsJSON(t *testing.T, n int) string {
	t.Helper()
	generated := make([]map[string]interface{}, n)
	for i := range generated {
		generated[i] = map[string]interface{}{
			"question": fmt.Sprintf("question %d", i),
			"options":  []string{"a", "b", "c", "d"},
			"answer":   i % entity.OptionsPerQuestion,
		}
	}
	data, err := json.Marshal(generated)
	require.NoError(t, err)
	return string(data)
}

// ============================================================================
// GeminiQuestionSource
// ============================================================================

func TestGeminiQuestionSource_Generate(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(geminiReply(questionsJSON(t, 3)))
	}))
	defer server.Close()

	source := NewGeminiQuestionSource("test-key", server.URL, "gemini-1.5-flash", 10)
	questions, err := source.Generate(context.Background(), "космос")
	require.NoError(t, err)

	require.Len(t, questions, 3)
	assert.Equal(t, "question 0", questions[0].Text)
	assert.Equal(t, []string{"a", "b", "c", "d"}, questions[0].Options)
	assert.Equal(t, 1, questions[1].CorrectOption)

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)

	// Запрос несет схему ответа: модель обязана вернуть строгий JSON
	genConfig, ok := gotBody["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "application/json", genConfig["responseMimeType"])
	assert.Contains(t, genConfig, "responseSchema")
}

func TestGeminiQuestionSource_Generate_StripsMarkdownFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fenced := "```json\n" + questionsJSON(t, 1) + "\n```"
		json.NewEncoder(w).Encode(geminiReply(fenced))
	}))
	defer server.Close()

	source := NewGeminiQuestionSource("test-key", server.URL, "gemini-1.5-flash", 10)
	questions, err := source.Generate(context.Background(), "история")
	require.NoError(t, err)
	assert.Len(t, questions, 1)
}

func TestGeminiQuestionSource_Generate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "API error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]interface{}{"message": "quota exceeded"},
				})
			},
		},
		{
			name: "empty candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
			},
		},
		{
			name: "invalid JSON from model",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(geminiReply("this is not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			source := NewGeminiQuestionSource("test-key", server.URL, "gemini-1.5-flash", 10)
			questions, err := source.Generate(context.Background(), "космос")
			assert.Error(t, err)
			assert.Nil(t, questions)
		})
	}
}

func TestGeminiQuestionSource_Generate_NoAPIKey(t *testing.T) {
	source := NewGeminiQuestionSource("", "http://unused", "gemini-1.5-flash", 10)
	_, err := source.Generate(context.Background(), "космос")
	assert.Error(t, err)
}

// ============================================================================
// CachedQuestionSource
// ============================================================================

func TestCachedQuestionSource_CacheHit(t *testing.T) {
	cached := []entity.Question{
		{Text: "cached", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0},
	}

	cache := new(MockCacheRepo)
	cache.On("GetJSON", "questions:topic:космос", mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(1).(*[]entity.Question)
			*dest = cached
		}).
		Return(nil)

	// Источник не должен быть вызван: URL заведомо нерабочий
	source := NewGeminiQuestionSource("test-key", "http://127.0.0.1:1", "gemini-1.5-flash", 10)
	cachedSource := NewCachedQuestionSource(source, cache, time.Minute)

	questions, err := cachedSource.Generate(context.Background(), "Космос ")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "cached", questions[0].Text)

	cache.AssertExpectations(t)
}

func TestCachedQuestionSource_CacheMissGeneratesAndStores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiReply(questionsJSON(t, 2)))
	}))
	defer server.Close()

	cache := new(MockCacheRepo)
	cache.On("GetJSON", "questions:topic:история", mock.Anything).Return(apperrors.ErrNotFound)
	cache.On("SetJSON", "questions:topic:история", mock.Anything, time.Minute).Return(nil)

	source := NewGeminiQuestionSource("test-key", server.URL, "gemini-1.5-flash", 10)
	cachedSource := NewCachedQuestionSource(source, cache, time.Minute)

	questions, err := cachedSource.Generate(context.Background(), "история")
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	cache.AssertExpectations(t)
}

func TestCachedQuestionSource_NilCacheReturnsPlainSource(t *testing.T) {
	source := NewGeminiQuestionSource("test-key", "http://unused", "gemini-1.5-flash", 10)
	wrapped := NewCachedQuestionSource(source, nil, time.Minute)
	assert.Same(t, interface{}(source), interface{}(wrapped))
}
