// internal/workers/assistant/kiro-answer/models.go
package kiroanswer

import "kiro-assistant/internal/models"

type Input struct {
	Message string                    `json:"message"`
	History []models.ConversationTurn `json:"history"`
}

type Output struct {
	Answer   string                    `json:"answer"`
	Articles []models.ArticleReference `json:"articles"`
	Model    string                    `json:"model,omitempty"`
	Tokens   int                       `json:"tokens"`
}
