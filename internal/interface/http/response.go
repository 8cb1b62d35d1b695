package http

import (
	"errors"
	"time"

	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
	BatchID    string    `json:"batch_id,omitempty"`
}

// Error codes returned in APIError.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_failed"
	CodeNotFound         = "not_found"
	CodeConflict         = "state_conflict"
	CodeUnavailable      = "store_unavailable"
	CodeInternal         = "internal_error"
	CodeRouteNotFound    = "route_not_found"
	CodeMethodNotAllowed = "method_not_allowed"
)

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(logger.RequestIDKey).(string)
	return id
}

// writeJSON writes a successful response.
func writeJSON(c *fiber.Ctx, status int, data any) error {
	return writeJSONWithMeta(c, status, data, nil)
}

// writeJSONWithMeta writes a successful response with custom metadata.
func writeJSONWithMeta(c *fiber.Ctx, status int, data any, meta *ResponseMeta) error {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	return c.Status(status).JSON(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

// writeJSONError writes an error response.
func writeJSONError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: requestID(c),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error to an HTTP status and an error code.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		switch fe.Code {
		case fiber.StatusNotFound:
			return fe.Code, CodeRouteNotFound
		case fiber.StatusMethodNotAllowed:
			return fe.Code, CodeMethodNotAllowed
		case fiber.StatusUnprocessableEntity:
			return fe.Code, CodeValidation
		}
		if fe.Code >= fiber.StatusInternalServerError {
			return fe.Code, CodeInternal
		}
		return fe.Code, CodeBadRequest
	case shared.IsValidation(err):
		return fiber.StatusUnprocessableEntity, CodeValidation
	case shared.IsNotFound(err):
		return fiber.StatusNotFound, CodeNotFound
	case shared.IsStateTransition(err):
		return fiber.StatusConflict, CodeConflict
	case shared.IsPersistence(err):
		return fiber.StatusServiceUnavailable, CodeUnavailable
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

// handleError is the fiber error handler. Store failures and unknown errors
// are reported without their internal details.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)

	message := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	} else if status >= fiber.StatusInternalServerError {
		message = "the request could not be completed"
		if status == fiber.StatusServiceUnavailable {
			message = "the record store is unavailable, nothing was written"
		}
	}
	return writeJSONError(c, status, code, message)
}

// badRequest reports a body or parameter that could not be decoded.
func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}
