// Package http provides the HTTP and SSE transport for the notes agent
// backend.
package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/agent"
	"github.com/ainotes/backend/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	processor *agent.Processor
	chat      agent.Executor
	store     *store.SQLiteStore
	log       zerolog.Logger
}

// NewHandler creates a new handler. chat may be nil to disable the chat
// stream endpoint.
func NewHandler(processor *agent.Processor, chat agent.Executor, st *store.SQLiteStore, log zerolog.Logger) *Handler {
	return &Handler{
		processor: processor,
		chat:      chat,
		store:     st,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/agent/process", h.ProcessAgent)
	e.POST("/agent/process/stream", h.StreamAgent)
	e.POST("/agent/chat/stream", h.StreamChat)

	e.GET("/agent/settings", h.GetAgentSettings)
	e.PATCH("/agent/settings", h.PatchAgentSettings)

	e.GET("/agent/profile", h.ListProfileFacts)
	e.PATCH("/agent/profile/:id", h.UpdateProfileFact)
	e.DELETE("/agent/profile/:id", h.DeleteProfileFact)

	e.GET("/notes", h.ListNotes)
	e.GET("/notes/:id", h.GetNote)
	e.GET("/folders", h.ListFolders)
	e.GET("/events", h.ListEvents)

	e.GET("/healthz", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// userID resolves the acting user. There is no auth layer; the user comes
// from the X-User-ID header and defaults to 1.
func userID(c echo.Context) int64 {
	if v := c.Request().Header.Get("X-User-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
