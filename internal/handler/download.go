package handler

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/storage"
	"github.com/qishuigrab/api/pkg/response"
)

type DownloadHandler struct {
	downloader client.MediaDownloader
}

func NewDownloadHandler(downloader client.MediaDownloader) *DownloadHandler {
	return &DownloadHandler{
		downloader: downloader,
	}
}

// DownloadFile handles GET /api/downloadFile
// @Summary      Proxy a single media download
// @Description  Stream a resolved media URL through to the client as an MP3 attachment; bytes are passed through unchanged
// @Tags         Download
// @Produce      audio/mpeg
// @Param        url query string true "Resolved media URL"
// @Param        fileName query string false "Display name for the attachment"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /api/downloadFile [get]
func (h *DownloadHandler) DownloadFile(c *fiber.Ctx) error {
	mediaURL := c.Query("url")
	if mediaURL == "" {
		return response.InvalidInput(c, "url is required")
	}

	fileName := storage.SanitizeFileName(c.Query("fileName"))
	if fileName == "" {
		fileName = "download"
	}
	fileName += ".mp3"

	stream, size, err := h.downloader.OpenStream(c.Context(), mediaURL)
	if err != nil {
		return response.UpstreamUnavailable(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	c.Set(fiber.HeaderContentDisposition,
		"attachment; filename*=UTF-8''"+url.PathEscape(fileName))

	// Fiber closes the stream once the response body has been written.
	if size > 0 {
		return c.SendStream(stream, int(size))
	}
	return c.SendStream(stream)
}
