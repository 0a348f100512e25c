package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

func agentName(c echo.Context) (string, bool) {
	name := c.QueryParam("agent")
	if name != "notes" && name != "chat" {
		return "", false
	}
	return name, true
}

// GetAgentSettings returns the stored LLM overrides for an agent.
// GET /agent/settings?agent=notes
func (h *Handler) GetAgentSettings(c echo.Context) error {
	name, ok := agentName(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent must be notes or chat"})
	}

	settings, err := h.store.GetAgentSettings(c.Request().Context(), userID(c), name)
	if err != nil {
		h.log.Error().Err(err).Msg("fetching agent settings failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
	}
	if settings == nil {
		settings = &domain.AgentSettings{Agent: name}
	}
	return c.JSON(http.StatusOK, settings)
}

// PatchAgentSettings merges the provided overrides into the stored ones.
// PATCH /agent/settings?agent=notes
func (h *Handler) PatchAgentSettings(c echo.Context) error {
	name, ok := agentName(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent must be notes or chat"})
	}

	var patch domain.AgentSettings
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	uid := userID(c)
	settings, err := h.store.GetAgentSettings(ctx, uid, name)
	if err != nil {
		h.log.Error().Err(err).Msg("fetching agent settings failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
	}
	if settings == nil {
		settings = &domain.AgentSettings{Agent: name}
	}
	settings.Agent = name
	if patch.BaseURL != "" {
		settings.BaseURL = patch.BaseURL
	}
	if patch.Model != "" {
		settings.Model = patch.Model
	}
	if patch.APIKey != "" {
		settings.APIKey = patch.APIKey
	}
	if patch.Temperature != nil {
		settings.Temperature = patch.Temperature
	}
	if patch.TopP != nil {
		settings.TopP = patch.TopP
	}
	if patch.FrequencyPenalty != nil {
		settings.FrequencyPenalty = patch.FrequencyPenalty
	}
	if patch.MaxTokens != nil {
		settings.MaxTokens = patch.MaxTokens
	}

	if err := h.store.UpsertAgentSettings(ctx, uid, settings); err != nil {
		h.log.Error().Err(err).Msg("saving agent settings failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

// ListProfileFacts returns the remembered facts about the user.
// GET /agent/profile
func (h *Handler) ListProfileFacts(c echo.Context) error {
	facts, err := h.store.ListProfileFacts(c.Request().Context(), userID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("listing profile facts failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list facts"})
	}
	if facts == nil {
		facts = []domain.ProfileFact{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"facts": facts})
}

// UpdateProfileFact rewrites one fact.
// PATCH /agent/profile/:id
func (h *Handler) UpdateProfileFact(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid fact id"})
	}

	var req struct {
		Fact string `json:"fact"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Fact = strings.TrimSpace(req.Fact)
	if req.Fact == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "fact is required"})
	}

	if err := h.store.UpdateProfileFact(c.Request().Context(), userID(c), id, req.Fact); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Fact not found"})
		}
		h.log.Error().Err(err).Msg("updating profile fact failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update fact"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "fact": req.Fact})
}

// DeleteProfileFact removes one fact.
// DELETE /agent/profile/:id
func (h *Handler) DeleteProfileFact(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid fact id"})
	}

	if err := h.store.DeleteProfileFact(c.Request().Context(), userID(c), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Fact not found"})
		}
		h.log.Error().Err(err).Msg("deleting profile fact failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete fact"})
	}
	return c.NoContent(http.StatusNoContent)
}
