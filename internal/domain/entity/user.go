package entity

// User представляет участника в рамках одной сессии.
// Это не долговременный аккаунт: пользователь живет, пока жив процесс,
// а его счет принадлежит комнате, в которой он сейчас находится.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// MemberInfo - снимок участника комнаты для отправки клиентам.
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}
