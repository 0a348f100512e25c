package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

func limitParam(c echo.Context, def int) int {
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		return v
	}
	return def
}

// ListNotes returns the user's notes, most recently updated first.
// GET /notes
func (h *Handler) ListNotes(c echo.Context) error {
	notes, err := h.store.ListNotes(c.Request().Context(), userID(c), limitParam(c, 100))
	if err != nil {
		h.log.Error().Err(err).Msg("listing notes failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list notes"})
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notes": notes})
}

// GetNote returns one note with its full content.
// GET /notes/:id
func (h *Handler) GetNote(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid note id"})
	}

	note, err := h.store.GetNote(c.Request().Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "note not found"})
		}
		h.log.Error().Err(err).Msg("fetching note failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get note"})
	}
	return c.JSON(http.StatusOK, note)
}

// ListFolders returns all folders, parents before children.
// GET /folders
func (h *Handler) ListFolders(c echo.Context) error {
	folders, err := h.store.ListFolders(c.Request().Context(), userID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("listing folders failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list folders"})
	}
	if folders == nil {
		folders = []domain.Folder{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"folders": folders})
}

// ListEvents returns the user's upcoming calendar events.
// GET /events
func (h *Handler) ListEvents(c echo.Context) error {
	events, err := h.store.ListUpcomingEvents(c.Request().Context(), userID(c), limitParam(c, 50))
	if err != nil {
		h.log.Error().Err(err).Msg("listing events failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}
