package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Clear all env that might affect defaults. t.Setenv isolates per test.
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Database / merchant
	t.Setenv("DB_DRIVER", "PostgreSQL") // will normalize to "postgres"
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/sales")
	t.Setenv("MERCHANT_ID", " M42 ")

	// Sales cache
	t.Setenv("CACHE_EXPIRY_HOURS", "6")
	t.Setenv("LOOKBACK_DAYS", "14")
	t.Setenv("REFRESH_AT", "03:30")
	t.Setenv("STARTUP_CHECK_DELAY", "0s")

	// Collaborators
	t.Setenv("CLOVER_BASE_URL", "https://sandbox.dev.clover.com/")
	t.Setenv("CLOVER_ACCESS_TOKEN", "tok")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "true")
	t.Setenv("PUBLIC_BASE_URL", "https://bot.example.com/")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// Database / merchant
	if cfg.DBDriver != "postgres" || cfg.DatabaseURL != "postgres://u:p@db:5432/sales" || cfg.MerchantID != "M42" {
		t.Fatalf("database fields unexpected: %+v", cfg)
	}

	// Sales cache
	wantSales := SalesConfig{
		CacheExpiry:       6 * time.Hour,
		LookbackDays:      14,
		RefreshHour:       3,
		RefreshMinute:     30,
		StartupCheckDelay: 0,
		RefreshTimeout:    60 * time.Second,
		StoreTimeout:      5 * time.Second,
	}
	if cfg.Sales != wantSales {
		t.Fatalf("sales unexpected: %+v", cfg.Sales)
	}

	// Collaborators
	if cfg.Clover.BaseURL != "https://sandbox.dev.clover.com" || cfg.Clover.AccessToken != "tok" || cfg.Clover.InventoryTTL != 10*time.Minute {
		t.Fatalf("clover unexpected: %+v", cfg.Clover)
	}
	if !cfg.Twilio.ValidateSignature || cfg.Twilio.PublicBaseURL != "https://bot.example.com" || cfg.Twilio.WhatsAppNumber != "whatsapp:+14155238886" {
		t.Fatalf("twilio unexpected: %+v", cfg.Twilio)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "gpt-4.1-mini" || cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("llm unexpected: %+v", cfg.LLM)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 || cfg.Redis.UseTLS {
		t.Fatalf("redis unexpected: %+v", cfg.Redis)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("empty PORT via spaces", func(t *testing.T) {
		t.Setenv("PORT", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "PORT must not be empty") {
			t.Fatalf("expected port validation error, got: %v", err)
		}
	})
	t.Run("non-positive timeouts", func(t *testing.T) {
		t.Setenv("READ_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "timeouts must be positive") {
			t.Fatalf("expected timeouts validation error, got: %v", err)
		}
	})
	t.Run("max header bytes <= 0", func(t *testing.T) {
		t.Setenv("MAX_HEADER_BYTES", "0")
		if _, err := Load(); err == nil || !containsErr(err, "MAX_HEADER_BYTES") {
			t.Fatalf("expected MAX_HEADER_BYTES validation error, got: %v", err)
		}
	})
	t.Run("empty DB_PATH", func(t *testing.T) {
		t.Setenv("DB_PATH", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH must not be empty") {
			t.Fatalf("expected DB_PATH validation error, got: %v", err)
		}
	})
	t.Run("postgres without DATABASE_URL", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		if _, err := Load(); err == nil || !containsErr(err, "DATABASE_URL") {
			t.Fatalf("expected DATABASE_URL validation error, got: %v", err)
		}
	})
	t.Run("unknown DB_DRIVER", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		if _, err := Load(); err == nil || !containsErr(err, "DB_DRIVER") {
			t.Fatalf("expected DB_DRIVER validation error, got: %v", err)
		}
	})
	t.Run("empty MERCHANT_ID", func(t *testing.T) {
		t.Setenv("MERCHANT_ID", "  ")
		if _, err := Load(); err == nil || !containsErr(err, "MERCHANT_ID") {
			t.Fatalf("expected MERCHANT_ID validation error, got: %v", err)
		}
	})
	t.Run("cache expiry negative", func(t *testing.T) {
		t.Setenv("CACHE_EXPIRY_HOURS", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "CACHE_EXPIRY_HOURS") {
			t.Fatalf("expected CACHE_EXPIRY_HOURS validation error, got: %v", err)
		}
	})
	t.Run("cache expiry zero means always refresh", func(t *testing.T) {
		t.Setenv("CACHE_EXPIRY_HOURS", "0")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("CACHE_EXPIRY_HOURS=0 should load: %v", err)
		}
		if cfg.Sales.CacheExpiry != 0 {
			t.Fatalf("CacheExpiry = %v; want 0", cfg.Sales.CacheExpiry)
		}
	})
	t.Run("lookback zero", func(t *testing.T) {
		t.Setenv("LOOKBACK_DAYS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "LOOKBACK_DAYS") {
			t.Fatalf("expected LOOKBACK_DAYS validation error, got: %v", err)
		}
	})
	t.Run("malformed REFRESH_AT", func(t *testing.T) {
		t.Setenv("REFRESH_AT", "25:00")
		if _, err := Load(); err == nil || !containsErr(err, "REFRESH_AT") {
			t.Fatalf("expected REFRESH_AT validation error, got: %v", err)
		}
	})
	t.Run("non-positive collaborator timeout", func(t *testing.T) {
		t.Setenv("CLOVER_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "CLOVER_TIMEOUT") {
			t.Fatalf("expected timeout validation error, got: %v", err)
		}
	})
	t.Run("signature validation without token", func(t *testing.T) {
		t.Setenv("TWILIO_VALIDATE_SIGNATURE", "true")
		if _, err := Load(); err == nil || !containsErr(err, "TWILIO_AUTH_TOKEN") {
			t.Fatalf("expected TWILIO_AUTH_TOKEN validation error, got: %v", err)
		}
	})
	t.Run("negative REDIS_DB", func(t *testing.T) {
		t.Setenv("REDIS_DB", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "REDIS_DB") {
			t.Fatalf("expected REDIS_DB validation error, got: %v", err)
		}
	})
	t.Run("rate rps negative", func(t *testing.T) {
		t.Setenv("RATE_RPS", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_RPS") {
			t.Fatalf("expected RATE_RPS validation error, got: %v", err)
		}
	})
	t.Run("rate burst < 1", func(t *testing.T) {
		t.Setenv("RATE_BURST", "0")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_BURST") {
			t.Fatalf("expected RATE_BURST validation error, got: %v", err)
		}
	})
	t.Run("hsts max age negative", func(t *testing.T) {
		t.Setenv("HSTS_MAX_AGE", "-1s")
		if _, err := Load(); err == nil || !containsErr(err, "HSTS_MAX_AGE") {
			t.Fatalf("expected HSTS_MAX_AGE validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})

	// Note: API_BASE_PATH validation is effectively unreachable due to normalizeBasePath
	// always ensuring a leading '/' and returning "/" for empty input.
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	// normalizeBasePath
	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure tests do not inherit PORT from the environment.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "sales_assistant.db" || cfg.MerchantID != "MERCHANT_001" {
		t.Fatalf("database defaults unexpected: %+v", cfg)
	}
	if cfg.Sales.CacheExpiry != 24*time.Hour || cfg.Sales.LookbackDays != 7 ||
		cfg.Sales.RefreshHour != 23 || cfg.Sales.RefreshMinute != 55 || cfg.Sales.StartupCheckDelay != 30*time.Second {
		t.Fatalf("sales defaults unexpected: %+v", cfg.Sales)
	}
	// empty credentials select the mock source, templates and simulated sends
	if cfg.Clover.AccessToken != "" || cfg.LLM.APIKey != "" || cfg.Twilio.AccountSID != "" || cfg.Redis.Addr != "" {
		t.Fatalf("collaborator defaults should be unset: %+v", cfg)
	}
	if cfg.Twilio.ValidateSignature {
		t.Fatalf("signature validation should default off")
	}
	if cfg.OTEL.ServiceName != "go-sales-assistant" {
		t.Fatalf("otel service default unexpected: %q", cfg.OTEL.ServiceName)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"02:00", 2, 0, false},
		{" 23:59 ", 23, 59, false},
		{"7:05", 7, 5, false},
		{"24:00", 0, 0, true},
		{"noon", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := parseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && (h != tt.h || m != tt.m) {
			t.Fatalf("parseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.h, tt.m)
		}
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}
