// internal/api/chat.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"kiro-assistant/internal/models"
)

const msgInvalidMessage = "Invalid message"

type chatRequest struct {
	Message json.RawMessage           `json:"message"`
	History []models.ConversationTurn `json:"history"`
}

type deltaEvent struct {
	Text string `json:"text"`
}

type doneEvent struct {
	Text      string                    `json:"text"`
	Articles  []models.ArticleReference `json:"articles"`
	RequestID string                    `json:"requestId"`
}

// decodeChatRequest accepts only a non-blank JSON string message.
func decodeChatRequest(c echo.Context) (string, []models.ConversationTurn, bool) {
	var req chatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return "", nil, false
	}
	var message string
	if len(req.Message) == 0 || json.Unmarshal(req.Message, &message) != nil {
		return "", nil, false
	}
	if strings.TrimSpace(message) == "" {
		return "", nil, false
	}
	return message, req.History, true
}

// chat streams the answer as server-sent events. Headers are committed on the first delta, so a
// failure before any output still gets a plain JSON 500.
func (s *Server) chat(c echo.Context) error {
	message, history, ok := decodeChatRequest(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidMessage)
	}

	id := requestID(c)
	stream := newEventStream(c.Response())

	answer, err := s.deps.Chat.Stream(c.Request().Context(), history, message, func(delta string) error {
		return stream.send("delta", deltaEvent{Text: delta})
	})
	if err != nil {
		s.logger.Error("chat failed", map[string]interface{}{
			"requestId": id,
			"error":     err.Error(),
			"streamed":  stream.started,
		})
		if !stream.started {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}
		_ = stream.send("error", errorResponse{Error: "Internal server error"})
		return nil
	}

	if err := stream.send("done", doneEvent{Text: answer.Text, Articles: answer.Articles, RequestID: id}); err != nil {
		s.logger.Warn("client went away before done event", map[string]interface{}{"requestId": id})
	}
	return nil
}

type eventStream struct {
	resp    *echo.Response
	started bool
}

func newEventStream(resp *echo.Response) *eventStream {
	return &eventStream{resp: resp}
}

func (e *eventStream) start() {
	h := e.resp.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.resp.WriteHeader(http.StatusOK)
	e.started = true
}

func (e *eventStream) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if !e.started {
		e.start()
	}
	if _, err := fmt.Fprintf(e.resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	e.resp.Flush()
	return nil
}
