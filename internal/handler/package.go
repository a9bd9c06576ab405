package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/websocket"
	"github.com/qishuigrab/api/pkg/response"
)

type PackageHandler struct {
	service   *service.PackageService
	hub       *websocket.Hub
	validator *validator.Validate
}

func NewPackageHandler(svc *service.PackageService, hub *websocket.Hub, v *validator.Validate) *PackageHandler {
	return &PackageHandler{
		service:   svc,
		hub:       hub,
		validator: v,
	}
}

// PackageSelected handles POST /api/packageSelected
// @Summary      Package selected tracks
// @Description  Download the selected tracks, transcode video items to MP3, and bundle everything into a zip archive
// @Tags         Package
// @Accept       json
// @Produce      json
// @Param        request body model.PackageRequest true "Track selection"
// @Success      200 {object} model.PackageResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/packageSelected [post]
func (h *PackageHandler) PackageSelected(c *fiber.Ctx) error {
	var req model.PackageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if len(req.Tracks) == 0 {
		return response.NoSelection(c)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Package(c.Context(), req.Tracks, h.hub.Sink(req.Token))
	if err != nil {
		if errors.Is(err, service.ErrNoSelection) {
			return response.NoSelection(c)
		}
		h.hub.BroadcastError(progressToken(req.Token, model.OperationPackaging),
			model.OperationPackaging, response.CodePackagingFailed, err.Error())
		return response.PackagingFailed(c, err.Error())
	}

	return response.OK(c, result)
}

// progressToken mirrors the hub's fallback: untokened requests publish
// under the operation kind itself.
func progressToken(token string, op model.Operation) string {
	if token == "" {
		return string(op)
	}
	return token
}
