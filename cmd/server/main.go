// Command server runs the WhatsApp sales assistant: the Twilio webhook, the
// admin API and the scheduled sales-cache refresh.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sales-assistant/internal/cache"
	"github.com/tbourn/go-sales-assistant/internal/clover"
	"github.com/tbourn/go-sales-assistant/internal/config"
	httpapi "github.com/tbourn/go-sales-assistant/internal/http"
	"github.com/tbourn/go-sales-assistant/internal/http/handlers"
	"github.com/tbourn/go-sales-assistant/internal/http/middleware"
	"github.com/tbourn/go-sales-assistant/internal/llm"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/repo"
	"github.com/tbourn/go-sales-assistant/internal/scheduler"
	"github.com/tbourn/go-sales-assistant/internal/services"
	"github.com/tbourn/go-sales-assistant/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	metricsNamespace = "sales_assistant"
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sysutil.ConfigureLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName)
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	m := metrics.Registry(metricsNamespace)

	// Database
	target := cfg.DBPath
	if cfg.DBDriver == repo.DriverPostgres {
		target = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, target)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	// Optional inventory cache
	var inventoryCache cache.JSONCache
	if cfg.Redis.Addr != "" {
		rc := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			UseTLS:   cfg.Redis.UseTLS,
		})
		defer func() {
			if err := rc.Close(); err != nil {
				log.Warn().Err(err).Msg("close redis")
			}
		}()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; inventory is fetched uncached")
		} else {
			inventoryCache = rc
		}
	}

	// Sales data and cache refresh
	source := clover.NewSource(clover.Config{
		BaseURL:      cfg.Clover.BaseURL,
		MerchantID:   cfg.MerchantID,
		AccessToken:  cfg.Clover.AccessToken,
		Timeout:      cfg.Clover.Timeout,
		InventoryTTL: cfg.Clover.InventoryTTL,
	}, m, inventoryCache)
	if _, mock := source.(*clover.MockSource); mock {
		log.Warn().Msg("CLOVER_ACCESS_TOKEN not set; serving demo sales data")
	}

	store := repo.NewMetricsStore(db)
	ledger := repo.NewMessageLedger(db)
	refresher := refresh.New(source, store, repo.NewRefreshStates(db), m)
	refresher.Timeout = cfg.Sales.RefreshTimeout
	refresher.DefaultLookback = cfg.Sales.LookbackDays

	sched := scheduler.New()
	if err := refresh.RegisterJobs(sched, refresher, refresh.JobOptions{
		MerchantID:   cfg.MerchantID,
		LookbackDays: cfg.Sales.LookbackDays,
		FreshFor:     cfg.Sales.CacheExpiry,
		DailyHour:    cfg.Sales.RefreshHour,
		DailyMinute:  cfg.Sales.RefreshMinute,
		Location:     time.Local,
		StartupDelay: cfg.Sales.StartupCheckDelay,
	}); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	// Reply path
	sales := services.NewSalesService(store, refresher)
	sales.FreshFor = cfg.Sales.CacheExpiry
	sales.LookbackDays = cfg.Sales.LookbackDays

	composer := services.NewComposer(sales, llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, m), m)
	composer.LLMTimeout = cfg.LLM.Timeout
	log.Info().Str("provider", composer.Generator.Name()).Msg("text generator selected")

	pipeline := services.NewPipeline(ledger, services.StaticResolver(cfg.MerchantID), composer, m)
	pipeline.StoreTimeout = cfg.Sales.StoreTimeout

	sender := messaging.NewSender(messaging.SenderConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.WhatsAppNumber,
	}, m)

	var sig middleware.RequestValidator
	if cfg.Twilio.ValidateSignature {
		sig = messaging.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	h := handlers.New(handlers.Deps{
		Pipeline:   pipeline,
		Sales:      sales,
		Trends:     composer,
		History:    services.NewHistoryService(ledger),
		Scheduler:  sched,
		Outbound:   services.NewReportService(sales, sender),
		Metrics:    m,
		MerchantID: cfg.MerchantID,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, h, sig, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("merchant_id", cfg.MerchantID).
			Bool("signature_check", cfg.Twilio.ValidateSignature).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	// Stop accepting requests, then let the running refresh finish before
	// the deferred database close.
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	sched.Stop()
	log.Info().Msg("shutdown complete")
	return nil
}
