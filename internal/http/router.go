// Package httpapi wires the HTTP transport (Gin) to the webhook and admin
// handlers. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, rate
// limiting, CORS and security headers.
//
// Two surfaces are mounted:
//   - /webhook/whatsapp[/status]: form-encoded Twilio deliveries, answered
//     with TwiML and optionally signature-checked.
//   - API_BASE_PATH (default /api/v1): the JSON admin API, gzip-compressed
//     and CORS-enabled.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-sales-assistant/docs"
	"github.com/tbourn/go-sales-assistant/internal/config"
	"github.com/tbourn/go-sales-assistant/internal/http/handlers"
	"github.com/tbourn/go-sales-assistant/internal/http/middleware"
	"github.com/tbourn/go-sales-assistant/internal/services"
)

// maxBodyBytes caps request bodies on every route.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. sig verifies webhook signatures when cfg.Twilio.ValidateSignature
// is set; it may be nil otherwise.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with phone/email scrubbing
//  4. Recovery: capture panics after logger (webhooks answer TwiML)
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per sender on webhooks, per IP elsewhere)
//  8. Security headers
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, sig middleware.RequestValidator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery(nil))

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per sender/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySenderOrIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	// 8) Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	// Transport webhooks. A panic here still answers TwiML so Twilio does
	// not redeliver.
	wh := r.Group("/webhook/whatsapp",
		middleware.Recovery(handlers.TwiMLPanicWriter(services.ErrorReply)),
		middleware.TwilioSignature(sig, middleware.SignatureOptions{
			Enabled:       cfg.Twilio.ValidateSignature,
			PublicBaseURL: cfg.Twilio.PublicBaseURL,
		}),
	)
	{
		wh.POST("", h.Webhook)
		wh.POST("/status", h.StatusCallback)
	}

	// Admin API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(corsMiddleware(cfg.CORS)...)
	{
		// Sales cache
		api.GET("/sales/best-selling", h.BestSelling)
		api.POST("/sales/refresh", h.RefreshSales)
		api.GET("/sales/cache-status", h.CacheStatus)
		api.GET("/sales/trends", h.Trends)

		// Ledger history
		api.GET("/messages", h.ListMessages)
		api.GET("/messages/:sid", h.GetMessage)

		// Scheduler
		api.GET("/scheduler/status", h.SchedulerStatus)
		api.POST("/scheduler/refresh", h.SchedulerRefresh)

		// Outbound WhatsApp
		api.POST("/whatsapp/send", h.SendMessage)
		api.POST("/whatsapp/send-sales-report", h.SendSalesReport)

		// Pipeline simulation
		api.POST("/test/webhook", h.TestWebhook)
	}

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// corsMiddleware returns the CORS chain for the admin API. Without an
// allowlist every origin is accepted without credentials; with one, the
// request Origin is echoed only when listed.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = cfg.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
