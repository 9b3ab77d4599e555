package entity

// OptionsPerQuestion - обязательное количество вариантов ответа на вопрос
const OptionsPerQuestion = 4

// Question представляет вопрос викторины.
// Вопрос неизменяем после генерации и принадлежит комнате, которая его запросила.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"answer"` // Индекс правильного ответа (0-3), клиентам не отправляется до new-answer
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// IsValid проверяет, что вопрос пригоден для проведения раунда:
// ровно 4 варианта и корректный индекс ответа.
func (q *Question) IsValid() bool {
	if q.Text == "" {
		return false
	}
	if len(q.Options) != OptionsPerQuestion {
		return false
	}
	return q.CorrectOption >= 0 && q.CorrectOption < OptionsPerQuestion
}
