package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorBody is the JSON envelope for failed requests.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Category string         `json:"category"`
	TextCode string         `json:"text_code,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StatusFor maps an error to the HTTP status used to render it.
func StatusFor(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fiber.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func errorBody(err error) ErrorBody {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ErrorBody{Error: ErrorDetail{
			Category: fmt.Sprint(goerrors.CategoryInternal),
			Message:  "internal error",
		}}
	}

	detail := ErrorDetail{
		Category: fmt.Sprint(richErr.Category),
		TextCode: richErr.TextCode,
		Message:  richErr.Message,
		Metadata: richErr.Metadata,
	}

	// internal failures keep their detail in the logs
	if StatusFor(err) == fiber.StatusInternalServerError {
		detail.Message = "internal error"
		detail.Metadata = nil
	}
	return ErrorBody{Error: detail}
}

func writeError(c *fiber.Ctx, logger credentials.Logger, err error) error {
	status := StatusFor(err)
	body := errorBody(err)

	if status >= fiber.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	} else {
		logger.Debug("%s %s rejected:\n%s", c.Method(), c.Path(), print.MaybePrettyJSON(body))
	}

	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors that escape the route handlers, such as
// unmatched routes or body parsing failures.
func ErrorHandler(logger credentials.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = credentials.DefaultLogger()
	}
	return func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(ErrorBody{Error: ErrorDetail{
				Category: fmt.Sprint(goerrors.CategoryBadInput),
				Message:  fe.Message,
			}})
		}
		return writeError(c, logger, err)
	}
}
