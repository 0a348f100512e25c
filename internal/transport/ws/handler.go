package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/agent"
	"github.com/ainotes/backend/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The backend sits behind a trusted frontend; origin checks are the
	// proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is an inbound websocket frame.
type Message struct {
	Action    string                 `json:"action"`
	Input     string                 `json:"input"`
	SessionID string                 `json:"session_id"`
	NoteID    *int64                 `json:"note_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Handler serves the /ws/agent endpoint.
type Handler struct {
	processor *agent.Processor
	manager   *ConnectionManager
	log       zerolog.Logger
}

func NewHandler(processor *agent.Processor, manager *ConnectionManager, log zerolog.Logger) *Handler {
	return &Handler{
		processor: processor,
		manager:   manager,
		log:       log.With().Str("component", "ws").Logger(),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/agent", h.Serve)
}

func wsUserID(c echo.Context) int64 {
	if v := c.Request().Header.Get("X-User-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

// Serve upgrades the connection and handles agent messages until the peer
// disconnects. Each frame is processed sequentially; progress events stream
// back on the same connection.
func (h *Handler) Serve(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	uid := wsUserID(c)
	cn := &conn{ws: ws}
	h.manager.add(uid, cn)
	defer func() {
		h.manager.remove(uid, cn)
		ws.Close()
	}()

	ctx := c.Request().Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Int64("user_id", uid).Msg("websocket closed")
			}
			return nil
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = cn.sendJSON(map[string]string{"error": "Invalid JSON"})
			continue
		}
		h.handle(ctx, uid, cn, &msg)
	}
}

func (h *Handler) handle(ctx context.Context, uid int64, cn *conn, msg *Message) {
	switch msg.Action {
	case "process":
		if msg.SessionID == "" {
			msg.SessionID = uuid.New().String()
		}
		req := &agent.Request{
			UserID:    uid,
			SessionID: msg.SessionID,
			Input:     msg.Input,
			NoteID:    msg.NoteID,
			Context:   msg.Context,
			Progress:  progressSender(cn),
		}
		h.respond(cn, msg.SessionID)(h.processor.Process(ctx, req))
	case "resume":
		if msg.SessionID == "" {
			_ = cn.sendJSON(map[string]string{"error": "session_id is required"})
			return
		}
		req := &agent.Request{
			UserID:    uid,
			SessionID: msg.SessionID,
			Input:     msg.Input,
			Progress:  progressSender(cn),
		}
		h.respond(cn, msg.SessionID)(h.processor.Resume(ctx, req))
	default:
		_ = cn.sendJSON(map[string]string{"error": "Unknown action"})
	}
}

func progressSender(cn *conn) func(domain.AgentEvent) {
	return func(ev domain.AgentEvent) {
		body := map[string]interface{}{"type": "status", "phase": ev.Phase}
		if ev.Phase == "done" {
			body["type"] = "done"
		}
		for k, v := range ev.Data {
			body[k] = v
		}
		_ = cn.sendJSON(body)
	}
}

func (h *Handler) respond(cn *conn, sessionID string) func(domain.Outcome, error) {
	return func(outcome domain.Outcome, err error) {
		if err != nil {
			switch {
			case errors.Is(err, agent.ErrNoPending):
				_ = cn.sendJSON(map[string]string{"error": "No pending action found"})
			case errors.Is(err, agent.ErrUnknownIntent):
				_ = cn.sendJSON(map[string]string{"error": err.Error()})
			default:
				h.log.Error().Err(err).Msg("agent request failed")
				_ = cn.sendJSON(map[string]string{"error": "agent request failed"})
			}
			return
		}

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
			_ = cn.sendJSON(body)
		case domain.OutcomeRejected:
			_ = cn.sendJSON(map[string]interface{}{
				"status":     "rejected",
				"session_id": sessionID,
				"reason":     outcome.Reason,
			})
		default:
			affected := outcome.AffectedIDs
			if affected == nil {
				affected = []int64{}
			}
			created := outcome.CreatedIDs
			if created == nil {
				created = []int64{}
			}
			body := map[string]interface{}{
				"status":       "completed",
				"session_id":   sessionID,
				"affected_ids": affected,
				"created_ids":  created,
			}
			if outcome.SkipReason != "" {
				body["skipped"] = true
				body["reason"] = outcome.SkipReason
			}
			_ = cn.sendJSON(body)
		}
	}
}
