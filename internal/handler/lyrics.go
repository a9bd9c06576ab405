package handler

import (
	"errors"
	"net/url"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/pkg/response"
)

type LyricsHandler struct {
	service *service.LyricsService
}

func NewLyricsHandler(svc *service.LyricsService) *LyricsHandler {
	return &LyricsHandler{
		service: svc,
	}
}

// Lyrics handles GET /api/lyrics
// @Summary      Download lyrics
// @Description  Scrape a track's lyric text and stream it as a plain-text attachment named {title}-{artist}.txt
// @Tags         Lyrics
// @Produce      text/plain
// @Param        trackId query string true "Track id"
// @Success      200 {file} string
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /api/lyrics [get]
func (h *LyricsHandler) Lyrics(c *fiber.Ctx) error {
	trackID := c.Query("trackId")
	if trackID == "" {
		return response.InvalidInput(c, "trackId is required")
	}

	lyrics, err := h.service.Fetch(c.Context(), trackID)
	if err != nil {
		if errors.Is(err, service.ErrUpstream) {
			return response.UpstreamUnavailable(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	// The scratch file is deleted on every exit path once the bytes have
	// been copied into the response.
	return h.service.ServeScoped(lyrics, func(path, fileName string) error {
		body, err := os.ReadFile(path)
		if err != nil {
			return response.ServiceError(c, "failed to read lyrics file")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		c.Set(fiber.HeaderContentDisposition,
			"attachment; filename*=UTF-8''"+url.PathEscape(fileName))
		return c.Send(body)
	})
}
