package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/websocket"
	"github.com/qishuigrab/api/pkg/response"
)

type ExtractHandler struct {
	service *service.ExtractService
	hub     *websocket.Hub
}

func NewExtractHandler(svc *service.ExtractService, hub *websocket.Hub) *ExtractHandler {
	return &ExtractHandler{
		service: svc,
		hub:     hub,
	}
}

// ExtractAudio handles GET /api/extractAudio
// @Summary      Extract audio from a video
// @Description  Download a video, strip the video stream, and return a retrievable MP3 reference; transcode progress is pushed over the websocket
// @Tags         Extract
// @Produce      json
// @Param        url query string true "Resolved video URL"
// @Param        title query string true "Display title for the downloaded file"
// @Param        token query string false "Progress token for the websocket subscription"
// @Success      200 {object} model.ExtractResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/extractAudio [get]
func (h *ExtractHandler) ExtractAudio(c *fiber.Ctx) error {
	mediaURL := c.Query("url")
	title := c.Query("title")
	if mediaURL == "" || title == "" {
		return response.InvalidInput(c, "url and title are required")
	}
	token := c.Query("token")

	result, err := h.service.Extract(c.Context(), mediaURL, title, h.hub.Sink(token))
	if err != nil {
		h.hub.BroadcastError(progressToken(token, model.OperationAudioExtract),
			model.OperationAudioExtract, response.CodeExtractionFailed, err.Error())
		return response.ExtractionFailed(c, err.Error())
	}

	return response.OK(c, result)
}
