// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database, the sales data source, the WhatsApp transport,
// text generation, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-sales-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SalesConfig controls the sales cache and its refresh schedule.
type SalesConfig struct {
	CacheExpiry  time.Duration // CACHE_EXPIRY_HOURS
	LookbackDays int           // LOOKBACK_DAYS
	// RefreshHour and RefreshMinute are parsed from REFRESH_AT ("HH:MM", server local time).
	RefreshHour       int
	RefreshMinute     int
	StartupCheckDelay time.Duration // STARTUP_CHECK_DELAY
	RefreshTimeout    time.Duration // REFRESH_TIMEOUT
	StoreTimeout      time.Duration // STORE_TIMEOUT
}

// CloverConfig holds the sales data source settings. An empty AccessToken
// selects the built-in demo data.
type CloverConfig struct {
	BaseURL      string
	AccessToken  string
	Timeout      time.Duration
	InventoryTTL time.Duration
}

// TwilioConfig holds the WhatsApp transport settings. Without AccountSID
// and AuthToken outbound sends are simulated.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppNumber    string
	ValidateSignature bool
	// PublicBaseURL is the externally visible scheme://host used to verify
	// webhook signatures behind a proxy.
	PublicBaseURL string
}

// LLMConfig configures text generation. An empty APIKey selects the
// keyword templates.
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// RedisConfig configures the optional inventory cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Merchant served by the webhook
	MerchantID string

	Sales  SalesConfig
	Clover CloverConfig
	Twilio TwilioConfig
	LLM    LLMConfig
	Redis  RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Database
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "sales_assistant.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		MerchantID: strings.TrimSpace(getenv("MERCHANT_ID", "MERCHANT_001")),

		Sales: SalesConfig{
			CacheExpiry:       time.Duration(getint("CACHE_EXPIRY_HOURS", 24)) * time.Hour,
			LookbackDays:      getint("LOOKBACK_DAYS", 7),
			StartupCheckDelay: getdur("STARTUP_CHECK_DELAY", 30*time.Second),
			RefreshTimeout:    getdur("REFRESH_TIMEOUT", 60*time.Second),
			StoreTimeout:      getdur("STORE_TIMEOUT", 5*time.Second),
		},
		Clover: CloverConfig{
			BaseURL:      strings.TrimRight(getenv("CLOVER_BASE_URL", "https://api.clover.com"), "/"),
			AccessToken:  getenv("CLOVER_ACCESS_TOKEN", ""),
			Timeout:      getdur("CLOVER_TIMEOUT", 15*time.Second),
			InventoryTTL: getdur("CLOVER_INVENTORY_TTL", 10*time.Minute),
		},
		Twilio: TwilioConfig{
			AccountSID:        getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getenv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppNumber:    getenv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886"),
			ValidateSignature: getbool("TWILIO_VALIDATE_SIGNATURE", false),
			PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		},
		LLM: LLMConfig{
			APIKey:  getenv("OPENAI_API_KEY", ""),
			Model:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
			BaseURL: strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Timeout: getdur("LLM_TIMEOUT", 20*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			UseTLS:   getbool("REDIS_TLS", false),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-sales-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}
	h, m, err := parseClock(getenv("REFRESH_AT", "23:55"))
	if err != nil {
		return cfg, err
	}
	cfg.Sales.RefreshHour, cfg.Sales.RefreshMinute = h, m

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.MerchantID == "" {
		return cfg, errors.New("MERCHANT_ID must not be empty")
	}
	if cfg.Sales.CacheExpiry < 0 {
		return cfg, errors.New("CACHE_EXPIRY_HOURS must be >= 0")
	}
	if cfg.Sales.LookbackDays < 1 {
		return cfg, errors.New("LOOKBACK_DAYS must be >= 1")
	}
	if cfg.Sales.StartupCheckDelay < 0 {
		return cfg, errors.New("STARTUP_CHECK_DELAY must be >= 0")
	}
	if cfg.Sales.RefreshTimeout <= 0 || cfg.Sales.StoreTimeout <= 0 ||
		cfg.Clover.Timeout <= 0 || cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("REFRESH_TIMEOUT, STORE_TIMEOUT, CLOVER_TIMEOUT and LLM_TIMEOUT must be positive")
	}
	if cfg.Clover.InventoryTTL <= 0 {
		return cfg, errors.New("CLOVER_INVENTORY_TTL must be > 0")
	}
	if cfg.Twilio.ValidateSignature && strings.TrimSpace(cfg.Twilio.AuthToken) == "" {
		return cfg, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_SIGNATURE=true")
	}
	if cfg.Redis.DB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseClock parses "HH:MM" in 24-hour form.
func parseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", strings.TrimSpace(s))
	if perr != nil {
		return 0, 0, fmt.Errorf("REFRESH_AT must be HH:MM (24h): %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
