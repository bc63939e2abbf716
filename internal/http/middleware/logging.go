// Package middleware contains the Gin middleware shared by the webhook and
// admin routes.
//
// This file provides correlation ids, panic recovery and access to the
// request-scoped logger:
//
//   - RequestID() reuses an inbound X-Request-ID, then the transport's
//     idempotency token header on webhooks, then a fresh UUID.
//   - Recovery() converts panics into a 500 response. Webhook routes pass a
//     custom writer so the transport still receives a TwiML body.
//   - LoggerFrom() returns the logger attached by RedactingLogger.
//
// Recommended order: RequestID, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
	// RequestIDHeader propagates the correlation id.
	RequestIDHeader = "X-Request-ID"
	// twilioTokenHeader is set by Twilio on every webhook delivery attempt.
	twilioTokenHeader = "I-Twilio-Idempotency-Token"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches a correlation identifier to every request and echoes it
// in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = c.GetHeader(twilioTokenHeader)
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the correlation id stored by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// PanicWriter writes a response after a recovered panic. It is only called
// when nothing has been written yet.
type PanicWriter func(c *gin.Context, requestID string)

// JSONPanicWriter writes the standard JSON 500 error envelope.
func JSONPanicWriter(c *gin.Context, requestID string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"request_id": requestID,
		"code":       "internal_error",
		"message":    "internal server error",
	})
}

// Recovery intercepts panics, logs the stack with the request id and hands
// the response to write (JSONPanicWriter when nil).
func Recovery(write PanicWriter) gin.HandlerFunc {
	if write == nil {
		write = JSONPanicWriter
	}
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := GetRequestID(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(RequestIDHeader, rid)
			write(c, rid)
			c.Abort()
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or a copy of the
// global logger when none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes and appends an ellipsis. A max <= 0 disables
// truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
