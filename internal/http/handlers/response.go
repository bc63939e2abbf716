// Package handlers provides the HTTP handlers for the transport webhooks and
// the admin API.
//
// This file defines the response helpers shared by all handlers:
//
//   - Admin endpoints answer JSON. Failures use ErrorResponse with a stable
//     code from errors.go; fail() logs 5xx with the request-scoped logger.
//   - Webhook endpoints answer TwiML through twiml(), always with 200 so the
//     transport never retries a delivery the ledger already holds.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "message not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/http/middleware"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
)

// ErrorResponse is the standard error envelope returned by admin endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"message not found"`
}

// fail aborts the request with a structured error. Server errors (>= 500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.RequestIDHeader),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// twiml answers a webhook with 200 and a TwiML document carrying text, or an
// empty <Response/> when text is "".
func twiml(c *gin.Context, text string) {
	c.Data(http.StatusOK, messaging.TwiMLContentType, messaging.RenderReply(text))
}

// TwiMLPanicWriter answers a webhook whose handler panicked with the
// generic apology so the transport does not redeliver.
func TwiMLPanicWriter(reply string) middleware.PanicWriter {
	return func(c *gin.Context, _ string) {
		twiml(c, reply)
	}
}
