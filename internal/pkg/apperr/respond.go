package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Body is the JSON error shape of every API response.
type Body struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// BodyOf converts err into its response status and body. Causes of
// unavailable and unclassified errors are not exposed.
func BodyOf(err error) (int, Body) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, Body{Error: statusText(fe.Code), Message: fe.Message}
	}

	var e *Error
	if !errors.As(err, &e) {
		return fiber.StatusInternalServerError, Body{Error: "internal", Message: "internal error"}
	}
	body := Body{Error: string(e.Kind), Fields: e.Fields}
	switch e.Kind {
	case KindUnavailable:
		body.Message = "temporarily unavailable, retry later"
	case KindUnknown, KindSyncDegraded:
		body.Error = "internal"
		body.Message = "internal error"
	default:
		body.Message = e.Msg
		if body.Message == "" && e.Err != nil {
			body.Message = e.Err.Error()
		}
	}
	return HTTPStatus(e.Kind), body
}

// Respond writes err as a JSON error response.
func Respond(c *fiber.Ctx, err error) error {
	status, body := BodyOf(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return Respond(c, err)
}

func statusText(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return string(KindForbidden)
	case fiber.StatusNotFound:
		return string(KindNotFound)
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusTooManyRequests:
		return "too_many_requests"
	case fiber.StatusServiceUnavailable:
		return string(KindUnavailable)
	default:
		return "internal"
	}
}
