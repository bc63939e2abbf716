// Package services – SalesService
//
// SalesService is the read side of the sales cache. It applies the
// refresh-if-stale policy shared by the reply composer and the admin API, and
// exposes manual refresh and cache status.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/repo"
)

// DefaultFreshFor is the cache freshness window when none is configured.
const DefaultFreshFor = 24 * time.Hour

// SalesStore is the read contract over the sales cache.
type SalesStore interface {
	TopItems(ctx context.Context, merchant string, limit int, category string) ([]domain.CacheEntry, error)
	IsFresh(ctx context.Context, merchant string, maxAge time.Duration) (bool, error)
	CurrentPeriod(ctx context.Context, merchant string) (*repo.Period, error)
}

// SalesRefresher triggers cache rebuilds. Implemented by refresh.Refresher.
type SalesRefresher interface {
	RefreshNow(ctx context.Context, merchant string, lookbackDays int) (refresh.Result, error)
	EnsureFresh(ctx context.Context, merchant string, maxAge time.Duration, lookbackDays int) (bool, error)
	Status(ctx context.Context, merchant string) (*domain.RefreshState, error)
}

// CacheStatus describes a merchant's cached period and refresh bookkeeping.
type CacheStatus struct {
	MerchantID string               `json:"merchant_id"`
	Fresh      bool                 `json:"fresh"`
	FreshFor   string               `json:"fresh_for"`
	Period     *repo.Period         `json:"period,omitempty"`
	Refresh    *domain.RefreshState `json:"refresh,omitempty"`
}

// SalesService exposes the sales cache to callers.
type SalesService struct {
	Store     SalesStore
	Refresher SalesRefresher
	// FreshFor is the maximum cache age served without a refresh. Zero
	// refreshes before every sales read.
	FreshFor time.Duration
	// LookbackDays is passed to refreshes triggered here; <= 0 lets the
	// refresher pick its default.
	LookbackDays int
	Logger       zerolog.Logger
}

// NewSalesService returns a SalesService with the default freshness window.
func NewSalesService(store SalesStore, r SalesRefresher) *SalesService {
	return &SalesService{
		Store:     store,
		Refresher: r,
		FreshFor:  DefaultFreshFor,
		Logger:    log.With().Str("component", "sales").Logger(),
	}
}

// freshFor returns the configured window. Zero is kept and means every
// read refreshes first; only a negative window falls back to the default.
func (s *SalesService) freshFor() time.Duration {
	if s.FreshFor >= 0 {
		return s.FreshFor
	}
	return DefaultFreshFor
}

// EnsureFresh refreshes the merchant's cache when it is stale. A failed
// refresh is logged and swallowed; the previous period keeps being served.
func (s *SalesService) EnsureFresh(ctx context.Context, merchant string) {
	if s.Refresher == nil {
		return
	}
	ran, err := s.Refresher.EnsureFresh(ctx, merchant, s.freshFor(), s.LookbackDays)
	if err != nil {
		s.Logger.Warn().Err(err).Str("merchant_id", merchant).Msg("refresh failed; serving cached data")
		return
	}
	if ran {
		s.Logger.Info().Str("merchant_id", merchant).Msg("stale cache refreshed on demand")
	}
}

// BestSelling refreshes a stale cache and returns the merchant's top items.
func (s *SalesService) BestSelling(ctx context.Context, merchant string, limit int, category string) ([]domain.CacheEntry, error) {
	s.EnsureFresh(ctx, merchant)
	return s.Store.TopItems(ctx, merchant, limit, category)
}

// Refresh runs a manual refresh.
func (s *SalesService) Refresh(ctx context.Context, merchant string, lookbackDays int) (refresh.Result, error) {
	if lookbackDays <= 0 {
		lookbackDays = s.LookbackDays
	}
	return s.Refresher.RefreshNow(ctx, merchant, lookbackDays)
}

// CacheStatus reports what is cached for merchant. Missing data is not an
// error: Period and Refresh are simply nil.
func (s *SalesService) CacheStatus(ctx context.Context, merchant string) (*CacheStatus, error) {
	out := &CacheStatus{MerchantID: merchant, FreshFor: s.freshFor().String()}

	fresh, err := s.Store.IsFresh(ctx, merchant, s.freshFor())
	if err != nil {
		return nil, err
	}
	out.Fresh = fresh

	p, err := s.Store.CurrentPeriod(ctx, merchant)
	switch {
	case err == nil:
		out.Period = p
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	if s.Refresher != nil {
		st, err := s.Refresher.Status(ctx, merchant)
		switch {
		case err == nil:
			out.Refresh = st
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}
	return out, nil
}
