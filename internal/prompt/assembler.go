// internal/prompt/assembler.go
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/knowledge"
	"kiro-assistant/internal/models"
	"kiro-assistant/pkg/registry"
)

const documentSeparator = "\n\n---\n\n"

// Payload is the ordered message list sent to the generation API.
type Payload struct {
	System   string                    `json:"system"`
	Messages []models.ConversationTurn `json:"messages"`
}

// UserPrompt builds a payload holding a single user message.
func UserPrompt(text string) Payload {
	return Payload{Messages: []models.ConversationTurn{{Role: models.RoleUser, Text: text}}}
}

// Assembler fills the persona template with retrieved knowledge and appends the conversation.
type Assembler struct {
	persona  *registry.Template
	document *registry.Template
	cfg      config.PromptConfig
}

// NewAssembler resolves both templates and test-renders them so Assemble cannot hit a slot error later.
func NewAssembler(reg *registry.TemplateRegistry, cfg config.PromptConfig) (*Assembler, error) {
	persona, err := reg.Get(cfg.PersonaTemplate)
	if err != nil {
		return nil, err
	}
	document, err := reg.Get(cfg.DocumentTemplate)
	if err != nil {
		return nil, err
	}

	a := &Assembler{persona: persona, document: document, cfg: cfg}
	if _, err := a.renderDocument(models.KnowledgeDocument{}); err != nil {
		return nil, err
	}
	if _, err := a.renderPersona(""); err != nil {
		return nil, err
	}
	return a, nil
}

// Assemble builds the payload: persona system prompt, the last HistoryTurns turns in order, then the user message.
func (a *Assembler) Assemble(retrieval knowledge.Retrieval, history []models.ConversationTurn, userMessage string) (Payload, error) {
	kbContext, err := a.KnowledgeContext(retrieval)
	if err != nil {
		return Payload{}, err
	}
	system, err := a.renderPersona(kbContext)
	if err != nil {
		return Payload{}, err
	}

	recent := history
	if len(recent) > a.cfg.HistoryTurns {
		recent = recent[len(recent)-a.cfg.HistoryTurns:]
	}

	messages := make([]models.ConversationTurn, 0, len(recent)+1)
	for _, turn := range recent {
		role := turn.Role
		if role != models.RoleAssistant {
			role = models.RoleUser
		}
		messages = append(messages, models.ConversationTurn{Role: role, Text: turn.Text})
	}
	messages = append(messages, models.ConversationTurn{Role: models.RoleUser, Text: userMessage})

	return Payload{System: system, Messages: messages}, nil
}

// KnowledgeContext renders retrieved documents, or the sentinel when nothing matched.
func (a *Assembler) KnowledgeContext(retrieval knowledge.Retrieval) (string, error) {
	if retrieval.Empty() {
		return retrieval.Sentinel, nil
	}

	blocks := make([]string, 0, len(retrieval.Documents))
	for _, sd := range retrieval.Documents {
		block, err := a.renderDocument(sd.Document)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, documentSeparator), nil
}

func (a *Assembler) renderDocument(doc models.KnowledgeDocument) (string, error) {
	out, err := a.document.Render(map[string]string{
		"id":      doc.ID,
		"title":   doc.Title,
		"content": truncateRunes(doc.Body, a.cfg.BodyRunes),
		"url":     doc.TargetURL,
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", a.document.ID, err)
	}
	return out, nil
}

func (a *Assembler) renderPersona(knowledgeContext string) (string, error) {
	out, err := a.persona.Render(map[string]string{
		"knowledge_context": knowledgeContext,
		"clinic_name":       a.cfg.ClinicName,
		"clinic_phone":      a.cfg.ClinicPhone,
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", a.persona.ID, err)
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
