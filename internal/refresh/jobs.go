package refresh

import (
	"context"
	"time"

	"github.com/tbourn/go-sales-assistant/internal/scheduler"
)

// Job ids registered by RegisterJobs.
const (
	DailyJobID   = "daily_sales_refresh"
	StartupJobID = "startup_refresh_check"
)

// Registrar is the subset of scheduler.Scheduler used to register jobs.
type Registrar interface {
	Register(job scheduler.Job, trigger scheduler.Trigger) error
}

// JobOptions configures the scheduled refresh triggers.
type JobOptions struct {
	MerchantID   string
	LookbackDays int
	// FreshFor is the cache age under which the startup check skips work.
	FreshFor time.Duration
	// DailyHour and DailyMinute give the daily refresh time in Location.
	DailyHour    int
	DailyMinute  int
	Location     *time.Location
	StartupDelay time.Duration
}

// RegisterJobs wires the daily refresh and the one-shot startup freshness
// check into s. Both go through RefreshNow, so they never overlap with a
// manual or on-demand refresh of the same merchant.
func RegisterJobs(s Registrar, r *Refresher, opts JobOptions) error {
	daily := scheduler.Job{
		ID: DailyJobID,
		Run: func(ctx context.Context) error {
			_, err := r.RefreshNow(ctx, opts.MerchantID, opts.LookbackDays)
			return err
		},
	}
	if err := s.Register(daily, scheduler.Daily(opts.DailyHour, opts.DailyMinute, opts.Location)); err != nil {
		return err
	}

	startup := scheduler.Job{
		ID: StartupJobID,
		Run: func(ctx context.Context) error {
			ran, err := r.EnsureFresh(ctx, opts.MerchantID, opts.FreshFor, opts.LookbackDays)
			if err == nil && !ran {
				r.Logger.Info().Str("merchant_id", opts.MerchantID).Msg("startup check: cache is fresh")
			}
			return err
		},
	}
	return s.Register(startup, scheduler.Once(opts.StartupDelay))
}
