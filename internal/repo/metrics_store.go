// Package repo implements the data persistence layer for domain entities.
// This file provides MetricsStore, the owner of the per-merchant sales cache.
//
// Invariants:
//   - For a merchant, all live CacheEntry rows share one (period_start,
//     period_end) pair: the current period.
//   - ReplacePeriod swaps the whole set in a single transaction, so readers
//     observe either the previous period or the new one, never a mix and
//     never an empty merchant mid-write.
//   - TopItems and IsFresh never fail just because a merchant has no data.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-sales-assistant/internal/domain"
)

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 200

// SalesItem is one aggregated item handed to ReplacePeriod.
type SalesItem struct {
	ItemID   string
	ItemName string
	Category string
	Quantity int64
	Revenue  decimal.Decimal
}

// Period describes a merchant's current cached period.
type Period struct {
	MerchantID  string    `json:"merchant_id"`
	Start       time.Time `json:"period_start"`
	End         time.Time `json:"period_end"`
	LastUpdated time.Time `json:"last_updated"`
	ItemCount   int64     `json:"item_count"`
}

// MetricsStore persists and queries aggregated sales per merchant.
//
// Only the refresher writes through ReplacePeriod; every other caller reads.
// Now is injectable for tests and defaults to time.Now.
type MetricsStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewMetricsStore returns a MetricsStore bound to db.
func NewMetricsStore(db *gorm.DB) *MetricsStore {
	return &MetricsStore{DB: db, Now: time.Now}
}

func (s *MetricsStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ReplacePeriod atomically discards every cached row for merchant and
// inserts items as the new current period [start, end) with last_updated set
// to now. On failure nothing is applied and a *PersistenceError is returned.
func (s *MetricsStore) ReplacePeriod(ctx context.Context, merchant string, start, end time.Time, items []SalesItem) error {
	if !end.After(start) {
		return ErrInvalidPeriod
	}
	now := s.now()
	rows := make([]domain.CacheEntry, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ItemID) == "" || it.Quantity < 0 || it.Revenue.IsNegative() {
			return ErrInvalidItem
		}
		var cat *string
		if c := strings.TrimSpace(it.Category); c != "" {
			cat = &c
		}
		rows = append(rows, domain.CacheEntry{
			ID:           uuid.NewString(),
			MerchantID:   merchant,
			ItemID:       it.ItemID,
			ItemName:     it.ItemName,
			Category:     cat,
			QuantitySold: it.Quantity,
			TotalRevenue: it.Revenue.Round(2),
			PeriodStart:  start.UTC(),
			PeriodEnd:    end.UTC(),
			LastUpdated:  now,
		})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_id = ?", merchant).Delete(&domain.CacheEntry{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	return persistErr("replace_period", err)
}

// TopItems returns the merchant's entries from its most recent period,
// optionally filtered by category (case-insensitive), ordered by quantity
// sold descending and item id ascending. A limit <= 0 yields an empty slice.
func (s *MetricsStore) TopItems(ctx context.Context, merchant string, limit int, category string) ([]domain.CacheEntry, error) {
	out := []domain.CacheEntry{}
	if limit <= 0 {
		return out, nil
	}

	db := s.DB.WithContext(ctx)
	latest := db.Model(&domain.CacheEntry{}).
		Select("period_start").
		Where("merchant_id = ?", merchant).
		Order("last_updated DESC").
		Limit(1)

	q := db.Where("merchant_id = ? AND period_start = (?)", merchant, latest)
	if c := strings.TrimSpace(category); c != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(c))
	}
	err := q.Order("quantity_sold DESC, item_id ASC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.CacheEntry{}
	}
	return out, nil
}

// IsFresh reports whether merchant has a current period whose last update
// is strictly younger than maxAge. No data, or maxAge <= 0, is not fresh.
func (s *MetricsStore) IsFresh(ctx context.Context, merchant string, maxAge time.Duration) (bool, error) {
	if maxAge <= 0 {
		return false, nil
	}
	row, err := s.latestRow(ctx, merchant)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.now().Sub(row.LastUpdated) < maxAge, nil
}

// CurrentPeriod describes the merchant's current period, or ErrNotFound
// when nothing is cached.
func (s *MetricsStore) CurrentPeriod(ctx context.Context, merchant string) (*Period, error) {
	row, err := s.latestRow(ctx, merchant)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.CacheEntry{}).
		Where("merchant_id = ?", merchant).
		Count(&n).Error; err != nil {
		return nil, err
	}
	return &Period{
		MerchantID:  merchant,
		Start:       row.PeriodStart,
		End:         row.PeriodEnd,
		LastUpdated: row.LastUpdated,
		ItemCount:   n,
	}, nil
}

func (s *MetricsStore) latestRow(ctx context.Context, merchant string) (*domain.CacheEntry, error) {
	var row domain.CacheEntry
	err := s.DB.WithContext(ctx).
		Where("merchant_id = ?", merchant).
		Order("last_updated DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
