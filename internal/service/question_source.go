package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dilshadmohammed/quiz-ai/internal/domain/entity"
	"github.com/dilshadmohammed/quiz-ai/internal/domain/repository"
)

// GeminiQuestionSource генерирует вопросы викторины через Gemini API.
// Модель возвращает строго типизированный JSON благодаря responseSchema:
// массив объектов {question, options, answer}.
type GeminiQuestionSource struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	count      int
}

// NewGeminiQuestionSource создает новый источник вопросов
func NewGeminiQuestionSource(apiKey, baseURL, model string, count int) *GeminiQuestionSource {
	if count <= 0 {
		count = 10
	}
	return &GeminiQuestionSource{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		count:      count,
	}
}

// IsAvailable сообщает, настроен ли ключ API
func (s *GeminiQuestionSource) IsAvailable() bool {
	return s.apiKey != ""
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64       `json:"temperature"`
	ResponseMimeType string        `json:"responseMimeType"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
}

// geminiSchema - подмножество OpenAPI-схемы, которое понимает Gemini
type geminiSchema struct {
	Type       string                   `json:"type"`
	Items      *geminiSchema            `json:"items,omitempty"`
	Properties map[string]*geminiSchema `json:"properties,omitempty"`
	Required   []string                 `json:"required,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generatedQuestion - формат одного вопроса в ответе модели
type generatedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// questionListSchema описывает ожидаемый формат ответа модели
func questionListSchema() *geminiSchema {
	return &geminiSchema{
		Type: "array",
		Items: &geminiSchema{
			Type: "object",
			Properties: map[string]*geminiSchema{
				"question": {Type: "string"},
				"options": {
					Type:  "array",
					Items: &geminiSchema{Type: "string"},
				},
				"answer": {Type: "integer"},
			},
			Required: []string{"question", "options", "answer"},
		},
	}
}

// Generate запрашивает у модели набор вопросов по теме.
// Любой сбой (сеть, статус, невалидный JSON) возвращается ошибкой:
// решение о деградации принимает вызывающий.
func (s *GeminiQuestionSource) Generate(ctx context.Context, topic string) ([]entity.Question, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("question generation is not configured: missing API key")
	}

	prompt := fmt.Sprintf(
		"Generate %d multiple-choice trivia questions about %q. "+
			"Each question must have exactly %d options and the index of the correct option (0-based) in the \"answer\" field. "+
			"Questions must be factually accurate and varied in difficulty.",
		s.count, topic, entity.OptionsPerQuestion,
	)

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.8,
			ResponseMimeType: "application/json",
			ResponseSchema:   questionListSchema(),
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	// Модель иногда оборачивает JSON в markdown-забор даже при
	// responseMimeType application/json
	content := cleanJSONContent(apiResp.Candidates[0].Content.Parts[0].Text)

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(content), &generated); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	questions := make([]entity.Question, 0, len(generated))
	for _, g := range generated {
		questions = append(questions, entity.Question{
			Text:          g.Question,
			Options:       g.Options,
			CorrectOption: g.Answer,
		})
	}

	log.Printf("[QuestionSource] Сгенерировано %d вопросов по теме %q", len(questions), topic)
	return questions, nil
}

// cleanJSONContent убирает markdown-заборы вокруг JSON-ответа модели
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	if strings.HasSuffix(content, "```") {
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// QuestionGenerator - общий контракт источников вопросов
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string) ([]entity.Question, error)
}

// CachedQuestionSource кэширует сгенерированные наборы вопросов по теме.
// Повторная викторина на ту же тему не ходит в модель, пока жив ключ.
type CachedQuestionSource struct {
	source QuestionGenerator
	cache  repository.CacheRepository
	ttl    time.Duration
}

// NewCachedQuestionSource оборачивает источник вопросов кэшем.
// При nil-кэше возвращается исходный источник без обертки.
func NewCachedQuestionSource(
	source *GeminiQuestionSource,
	cache repository.CacheRepository,
	ttl time.Duration,
) QuestionGenerator {
	if cache == nil {
		return source
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedQuestionSource{source: source, cache: cache, ttl: ttl}
}

// Generate отдает набор вопросов из кэша или генерирует и кэширует новый
func (s *CachedQuestionSource) Generate(ctx context.Context, topic string) ([]entity.Question, error) {
	key := cacheKeyForTopic(topic)

	var cached []entity.Question
	if err := s.cache.GetJSON(key, &cached); err == nil && len(cached) > 0 {
		log.Printf("[QuestionSource] Набор вопросов по теме %q взят из кэша (%d вопросов)", topic, len(cached))
		return cached, nil
	}

	questions, err := s.source.Generate(ctx, topic)
	if err != nil {
		return nil, err
	}

	if len(questions) > 0 {
		// Ошибка кэширования не мешает отдать свежий набор
		if err := s.cache.SetJSON(key, questions, s.ttl); err != nil {
			log.Printf("[QuestionSource] Не удалось закэшировать вопросы по теме %q: %v", topic, err)
		}
	}
	return questions, nil
}

// cacheKeyForTopic нормализует тему в ключ кэша
func cacheKeyForTopic(topic string) string {
	return "questions:topic:" + strings.ToLower(strings.TrimSpace(topic))
}
