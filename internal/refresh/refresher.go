// Package refresh rebuilds the per-merchant sales cache from the POS source.
//
// A refresh fetches orders for a lookback window plus the inventory
// catalogue, aggregates per item and publishes the result through
// repo.MetricsStore.ReplacePeriod. At most one refresh per merchant runs at a
// time; concurrent callers join the in-flight one and share its outcome.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-sales-assistant/internal/clover"
	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
	"github.com/tbourn/go-sales-assistant/internal/repo"
)

const (
	// DefaultLookbackDays is used when a caller passes lookbackDays <= 0.
	DefaultLookbackDays = 7
	// DefaultTimeout bounds a single refresh end to end.
	DefaultTimeout = 60 * time.Second
)

// Store is the write/read subset of repo.MetricsStore the refresher needs.
type Store interface {
	ReplacePeriod(ctx context.Context, merchant string, start, end time.Time, items []repo.SalesItem) error
	IsFresh(ctx context.Context, merchant string, maxAge time.Duration) (bool, error)
}

// StateStore persists refresh bookkeeping. Implemented by repo.RefreshStates.
type StateStore interface {
	MarkStarted(ctx context.Context, merchant string, lookbackDays int, at time.Time) error
	MarkFinished(ctx context.Context, merchant string, at time.Time, orders, items int, cause error) error
	Get(ctx context.Context, merchant string) (*domain.RefreshState, error)
}

// Result summarizes a completed refresh.
type Result struct {
	MerchantID      string        `json:"merchant_id"`
	PeriodStart     time.Time     `json:"period_start"`
	PeriodEnd       time.Time     `json:"period_end"`
	OrdersProcessed int           `json:"orders_processed"`
	ItemsUpdated    int           `json:"items_updated"`
	Duration        time.Duration `json:"duration_ns"`
	// Shared is true when the outcome was delivered to more than one caller.
	Shared bool `json:"shared"`
}

// Refresher owns the Idle -> Running -> Idle lifecycle per merchant.
//
// Source and Store are required. States and Metrics are optional. Now
// defaults to time.Now; Logger defaults to the global logger.
type Refresher struct {
	Source          clover.Source
	Store           Store
	States          StateStore
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
	Timeout         time.Duration
	DefaultLookback int
	Now             func() time.Time

	group singleflight.Group
}

// New returns a Refresher with defaults applied.
func New(src clover.Source, store Store, states StateStore, m *metrics.Metrics) *Refresher {
	return &Refresher{
		Source:          src,
		Store:           store,
		States:          states,
		Metrics:         m,
		Logger:          log.With().Str("component", "refresher").Logger(),
		Timeout:         DefaultTimeout,
		DefaultLookback: DefaultLookbackDays,
		Now:             time.Now,
	}
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Refresher) lookback(days int) int {
	if days > 0 {
		return days
	}
	if r.DefaultLookback > 0 {
		return r.DefaultLookback
	}
	return DefaultLookbackDays
}

// RefreshNow rebuilds the merchant's cache from the last lookbackDays of
// orders. If a refresh for merchant is already running the call joins it and
// returns that refresh's Result and error; the lookback of the joined run
// wins.
//
// The work runs detached from ctx cancellation, bounded by Timeout, so a
// caller giving up does not abort a refresh other callers are waiting on.
func (r *Refresher) RefreshNow(ctx context.Context, merchant string, lookbackDays int) (Result, error) {
	days := r.lookback(lookbackDays)
	v, err, shared := r.group.Do(merchant, func() (any, error) {
		return r.run(context.WithoutCancel(ctx), merchant, days)
	})
	res, _ := v.(Result)
	res.Shared = shared
	if shared && r.Metrics != nil {
		r.Metrics.Refreshes.WithLabelValues("shared").Inc()
	}
	return res, err
}

// EnsureFresh refreshes merchant only when its cache is not younger than
// maxAge. It reports whether a refresh ran.
func (r *Refresher) EnsureFresh(ctx context.Context, merchant string, maxAge time.Duration, lookbackDays int) (bool, error) {
	fresh, err := r.Store.IsFresh(ctx, merchant, maxAge)
	if err != nil {
		r.Logger.Warn().Err(err).Str("merchant_id", merchant).Msg("freshness check failed; refreshing")
	}
	if err == nil && fresh {
		return false, nil
	}
	_, err = r.RefreshNow(ctx, merchant, lookbackDays)
	return true, err
}

// Status returns the stored refresh bookkeeping for merchant, or
// repo.ErrNotFound when no refresh was ever attempted.
func (r *Refresher) Status(ctx context.Context, merchant string) (*domain.RefreshState, error) {
	if r.States == nil {
		return nil, repo.ErrNotFound
	}
	return r.States.Get(ctx, merchant)
}

func (r *Refresher) run(parent context.Context, merchant string, days int) (res Result, err error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, span := observability.Tracer("refresh").Start(ctx, "RefreshNow",
		trace.WithAttributes(
			attribute.String("merchant_id", merchant),
			attribute.Int("lookback_days", days),
		))
	defer span.End()

	started := r.now()
	end := started.UTC()
	start := end.AddDate(0, 0, -days)
	res = Result{MerchantID: merchant, PeriodStart: start, PeriodEnd: end}

	lg := r.Logger.With().Str("merchant_id", merchant).Int("lookback_days", days).Logger()
	lg.Info().Time("period_start", start).Time("period_end", end).Msg("sales refresh started")

	if r.States != nil {
		if serr := r.States.MarkStarted(ctx, merchant, days, started); serr != nil {
			lg.Warn().Err(serr).Msg("record refresh start")
		}
	}
	// release the in-progress marker whatever happens below
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("refresh panicked")
			lg.Error().Interface("panic", p).Msg("sales refresh panicked")
		}
		elapsed := r.now().Sub(started)
		res.Duration = elapsed
		if r.States != nil {
			if serr := r.States.MarkFinished(context.WithoutCancel(ctx), merchant, r.now(), res.OrdersProcessed, res.ItemsUpdated, err); serr != nil {
				lg.Warn().Err(serr).Msg("record refresh finish")
			}
		}
		if r.Metrics != nil {
			r.Metrics.RefreshDuration.Observe(elapsed.Seconds())
			if err != nil {
				r.Metrics.Refreshes.WithLabelValues("failure").Inc()
				r.Metrics.Error("refresher")
			} else {
				r.Metrics.Refreshes.WithLabelValues("success").Inc()
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			lg.Error().Err(err).Dur("elapsed", elapsed).Msg("sales refresh failed")
			return
		}
		lg.Info().
			Int("orders", res.OrdersProcessed).
			Int("items", res.ItemsUpdated).
			Dur("elapsed", elapsed).
			Msg("sales refresh completed")
	}()

	orders, err := r.Source.GetOrders(ctx, start, end)
	if err != nil {
		return res, &UpstreamFetchError{Op: "orders", Err: err}
	}
	inventory, err := r.Source.GetInventory(ctx)
	if err != nil {
		return res, &UpstreamFetchError{Op: "inventory", Err: err}
	}

	items := Aggregate(orders, inventory)
	if err = r.Store.ReplacePeriod(ctx, merchant, start, end, items); err != nil {
		return res, err
	}
	res.OrdersProcessed = len(orders)
	res.ItemsUpdated = len(items)
	return res, nil
}
