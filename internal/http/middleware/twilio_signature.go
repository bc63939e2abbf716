// Package middleware contains the Gin middleware shared by the webhook and
// admin routes.
//
// This file verifies the transport's request signature on webhook routes.
// Twilio signs the full public URL it posted to plus the sorted form
// parameters; behind a proxy the URL the app sees differs, so the public
// base URL is configured explicitly when known.
package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/messaging"
)

// RequestValidator checks a webhook signature.
type RequestValidator interface {
	Validate(fullURL string, form url.Values, signature string) error
}

// SignatureOptions configures TwilioSignature.
type SignatureOptions struct {
	// Enabled switches verification on. When false every request passes.
	Enabled bool
	// PublicBaseURL is the scheme://host[:port] Twilio posts to. When empty
	// it is rebuilt from the request (Host and X-Forwarded-Proto).
	PublicBaseURL string
}

// TwilioSignature rejects webhook requests whose X-Twilio-Signature does not
// match with 403 and an empty TwiML body, which Twilio treats as a terminal
// failure and does not retry.
func TwilioSignature(v RequestValidator, opt SignatureOptions) gin.HandlerFunc {
	base := strings.TrimRight(strings.TrimSpace(opt.PublicBaseURL), "/")
	return func(c *gin.Context) {
		if !opt.Enabled || v == nil {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			reject(c, err)
			return
		}
		full := requestURL(c.Request, base)
		err := v.Validate(full, c.Request.PostForm, c.GetHeader(messaging.SignatureHeader))
		if err != nil {
			reject(c, err)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, err error) {
	if !errors.Is(err, messaging.ErrInvalidSignature) {
		err = errors.Join(messaging.ErrInvalidSignature, err)
	}
	LoggerFrom(c).Warn().Err(err).Msg("webhook signature rejected")
	c.Data(http.StatusForbidden, messaging.TwiMLContentType, messaging.RenderReply(""))
	c.Abort()
}

// requestURL rebuilds the URL Twilio signed from base (or the request's own
// scheme and host) plus the request URI.
func requestURL(r *http.Request, base string) string {
	if base == "" {
		scheme := "http"
		if isHTTPS(r) {
			scheme = "https"
		}
		host := r.Host
		if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
			host = fh
		}
		base = scheme + "://" + host
	}
	return base + r.URL.RequestURI()
}
