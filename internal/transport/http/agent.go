package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ainotes/backend/internal/agent"
	"github.com/ainotes/backend/internal/domain"
)

// ProcessRequest is the body of the agent endpoints.
type ProcessRequest struct {
	Input     string                 `json:"input"`
	SessionID string                 `json:"session_id"`
	NoteID    *int64                 `json:"note_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

func (r *ProcessRequest) toAgent(c echo.Context) *agent.Request {
	if r.SessionID == "" {
		r.SessionID = uuid.New().String()
	}
	return &agent.Request{
		UserID:    userID(c),
		SessionID: r.SessionID,
		Input:     r.Input,
		NoteID:    r.NoteID,
		Context:   r.Context,
	}
}

// ProcessAgent runs one agent request to completion without streaming.
// POST /agent/process
func (h *Handler) ProcessAgent(c echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Input == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "input is required"})
	}

	outcome, err := h.processor.Process(c.Request().Context(), req.toAgent(c))
	if err != nil {
		if errors.Is(err, agent.ErrUnknownIntent) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.log.Error().Err(err).Msg("agent request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "agent request failed"})
	}

	return c.JSON(http.StatusOK, outcomeBody(req.SessionID, outcome))
}

func outcomeBody(sessionID string, outcome domain.Outcome) map[string]interface{} {
	switch outcome.Kind {
	case domain.OutcomeNeedsClarification:
		body := map[string]interface{}{
			"status":     "clarification_needed",
			"session_id": sessionID,
			"question":   outcome.Question,
		}
		if len(outcome.Candidates) > 0 {
			body["candidates"] = outcome.Candidates
		}
		return body
	case domain.OutcomeRejected:
		return map[string]interface{}{
			"status":     "rejected",
			"session_id": sessionID,
			"reason":     outcome.Reason,
		}
	default:
		if outcome.SkipReason != "" {
			return map[string]interface{}{
				"status":     "completed",
				"session_id": sessionID,
				"skipped":    true,
				"reason":     outcome.SkipReason,
			}
		}
		body := map[string]interface{}{
			"status":       "completed",
			"session_id":   sessionID,
			"affected_ids": orEmpty(outcome.AffectedIDs),
			"created_ids":  orEmpty(outcome.CreatedIDs),
		}
		if outcome.Answer != "" {
			body["answer"] = outcome.Answer
		}
		return body
	}
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// StreamAgent runs one agent request, streaming progress as SSE.
// POST /agent/process/stream
func (h *Handler) StreamAgent(c echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Input == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "input is required"})
	}

	areq := req.toAgent(c)
	return h.streamSSE(c, func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		areq.Progress = progress
		return h.processor.Process(ctx, areq)
	})
}

// StreamChat runs a chat turn over the note tools, streaming deltas as SSE.
// POST /agent/chat/stream
func (h *Handler) StreamChat(c echo.Context) error {
	if h.chat == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "chat agent is not configured"})
	}

	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Input == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "input is required"})
	}

	areq := req.toAgent(c)
	return h.streamSSE(c, func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		areq.Progress = progress
		return h.chat.Execute(ctx, areq)
	})
}

func (h *Handler) streamSSE(c echo.Context, fn agent.RunFunc) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	flusher, _ := res.Writer.(http.Flusher)
	emit := func(ev agent.StreamEvent) error {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	return agent.StreamRequest(c.Request().Context(), fn, emit)
}
