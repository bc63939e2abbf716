// Package handlers exposes the webhook and admin endpoints.
//
// Handlers depend on narrow service interfaces so that tests can substitute
// fakes and the router stays free of wiring logic.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/repo"
	"github.com/tbourn/go-sales-assistant/internal/scheduler"
	"github.com/tbourn/go-sales-assistant/internal/services"
)

// MessagePipeline answers inbound messages.
type MessagePipeline interface {
	Handle(ctx context.Context, in repo.Inbound) services.HandleResult
}

// SalesAPI is the subset of services.SalesService used by the sales routes.
type SalesAPI interface {
	BestSelling(ctx context.Context, merchant string, limit int, category string) ([]domain.CacheEntry, error)
	Refresh(ctx context.Context, merchant string, lookbackDays int) (refresh.Result, error)
	CacheStatus(ctx context.Context, merchant string) (*services.CacheStatus, error)
}

// TrendAnalyzer produces a trend narrative for the merchant's cached sales.
type TrendAnalyzer interface {
	AnalyzeTrends(ctx context.Context, merchant, question string) string
}

// HistoryAPI lists ledger records.
type HistoryAPI interface {
	ListPage(ctx context.Context, page, pageSize int) ([]domain.MessageRecord, int64, error)
	Get(ctx context.Context, sid string) (*domain.MessageRecord, error)
}

// SchedulerAPI exposes job status and manual triggering.
type SchedulerAPI interface {
	Jobs() []scheduler.JobStatus
	Running() bool
	RunNow(ctx context.Context, id string) error
}

// OutboundAPI sends free-form messages and formatted reports.
type OutboundAPI interface {
	Send(ctx context.Context, to, body, mediaURL string) (messaging.SendResult, error)
	SendReport(ctx context.Context, merchant, to, kind string) (messaging.SendResult, string, error)
}

// Deps carries the services behind the handlers. Nil members disable the
// routes that need them.
type Deps struct {
	Pipeline   MessagePipeline
	Sales      SalesAPI
	Trends     TrendAnalyzer
	History    HistoryAPI
	Scheduler  SchedulerAPI
	Outbound   OutboundAPI
	Metrics    *metrics.Metrics
	MerchantID string
	// RefreshJobID is the scheduler job triggered by POST /scheduler/refresh.
	RefreshJobID string
}

// Handlers holds the dependencies shared by all endpoints.
type Handlers struct {
	deps Deps
}

// New returns Handlers bound to deps.
func New(deps Deps) *Handlers {
	if deps.RefreshJobID == "" {
		deps.RefreshJobID = refresh.DailyJobID
	}
	return &Handlers{deps: deps}
}

// merchant returns the merchant_id query parameter or the configured
// merchant.
func (h *Handlers) merchant(c *gin.Context) string {
	if m := strings.TrimSpace(c.Query("merchant_id")); m != "" {
		return m
	}
	return h.deps.MerchantID
}
