package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/websocket"
	"github.com/qishuigrab/api/pkg/response"
)

type PlaylistHandler struct {
	service *service.PlaylistService
	hub     *websocket.Hub
}

func NewPlaylistHandler(svc *service.PlaylistService, hub *websocket.Hub) *PlaylistHandler {
	return &PlaylistHandler{
		service: svc,
		hub:     hub,
	}
}

// Playlist handles GET /api/playlist
// @Summary      Resolve a share link
// @Description  Resolve a pasted share link into playlist metadata and per-track download URLs, with fetching progress pushed over the websocket
// @Tags         Playlist
// @Produce      json
// @Param        url query string true "Share link (may be embedded in surrounding text)"
// @Param        page query int false "Page number (1-based)"
// @Param        pageSize query int false "Items per page"
// @Param        token query string false "Progress token for the websocket subscription"
// @Success      200 {object} model.PlaylistResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /api/playlist [get]
func (h *PlaylistHandler) Playlist(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return response.InvalidInput(c, "url is required")
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("pageSize", 10)
	token := c.Query("token")

	result, err := h.service.Resolve(c.Context(), rawURL, page, pageSize, h.hub.Sink(token))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return response.InvalidInput(c, err.Error())
		case errors.Is(err, service.ErrParse):
			return response.ParseFailure(c, err.Error())
		case errors.Is(err, service.ErrUpstream):
			return response.UpstreamUnavailable(c, err.Error())
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
