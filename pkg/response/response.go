package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNoSelection         = "NO_SELECTION"
	CodeParseFailure        = "PARSE_FAILURE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodePackagingFailed     = "PACKAGING_FAILED"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeServiceError        = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func InvalidInput(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeInvalidInput, message, nil)
}

func NoSelection(c *fiber.Ctx) error {
	return Error(c, fiber.StatusBadRequest, CodeNoSelection, "No tracks selected", nil)
}

func ParseFailure(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeParseFailure, message, nil)
}

func UpstreamUnavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeUpstreamUnavailable, message, nil)
}

func PackagingFailed(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodePackagingFailed, message, nil)
}

func ExtractionFailed(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeExtractionFailed, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}
