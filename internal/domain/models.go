// Package domain defines the persistence models for the sales cache, the
// inbound message ledger, and per-merchant refresh bookkeeping. These types
// are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is stored for items whose inventory record carries no
// category.
const DefaultCategory = "Uncategorized"

// CacheEntry is one aggregated sales row for a (merchant, item, period).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - MerchantID: owning merchant; every live row of a merchant shares the
//     same PeriodStart/PeriodEnd pair (the "current period").
//   - ItemID / ItemName / Category: item identity resolved from inventory.
//   - QuantitySold: units sold in the period (>= 0).
//   - TotalRevenue: revenue in major currency units (>= 0).
//   - PeriodStart / PeriodEnd: the [start, end) window summarized.
//   - LastUpdated: time the period was published by the refresher.
type CacheEntry struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	MerchantID   string          `json:"merchant_id"   gorm:"type:varchar(64);not null;index:idx_cache_merchant_updated,priority:1;uniqueIndex:ux_cache_merchant_item_period,priority:1"`
	ItemID       string          `json:"item_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_cache_merchant_item_period,priority:2"`
	ItemName     string          `json:"item_name"     gorm:"type:varchar(255);not null"`
	Category     *string         `json:"category,omitempty" gorm:"type:varchar(128);index"`
	QuantitySold int64           `json:"quantity_sold" gorm:"not null;default:0;check:quantity_sold >= 0"`
	TotalRevenue decimal.Decimal `json:"total_revenue" gorm:"type:decimal(14,2);not null"`
	PeriodStart  time.Time       `json:"period_start"  gorm:"not null;uniqueIndex:ux_cache_merchant_item_period,priority:3"`
	PeriodEnd    time.Time       `json:"period_end"    gorm:"not null"`
	LastUpdated  time.Time       `json:"last_updated"  gorm:"not null;index:idx_cache_merchant_updated,priority:2"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "sales_cache" }

// CategoryName returns the entry's category or DefaultCategory when unset.
func (e CacheEntry) CategoryName() string {
	if e.Category == nil || *e.Category == "" {
		return DefaultCategory
	}
	return *e.Category
}

// MessageRecord is the ledger row for one inbound transport message, keyed
// by the transport-assigned MessageSID. A record is created pending and is
// finalized exactly once; afterwards Reply is immutable.
type MessageRecord struct {
	ID           uint      `json:"id"            gorm:"primaryKey;autoIncrement"`
	MessageSID   string    `json:"message_sid"   gorm:"type:varchar(128);not null;uniqueIndex:ux_message_sid"`
	FromNumber   string    `json:"from_number"   gorm:"type:varchar(64);not null;index"`
	ToNumber     string    `json:"to_number"     gorm:"type:varchar(64);not null"`
	Body         string    `json:"body"          gorm:"type:text;not null"`
	NumMedia     int       `json:"num_media"     gorm:"not null;default:0"`
	Reply        *string   `json:"reply,omitempty" gorm:"type:text"`
	Processed    bool      `json:"processed"     gorm:"not null;default:false;index"`
	ReceivedAt   time.Time `json:"received_at"   gorm:"not null;index"`
	ProcessingMS *int64    `json:"processing_ms,omitempty"`
}

// TableName returns the database table name for MessageRecord.
func (MessageRecord) TableName() string { return "message_records" }

// RefreshState tracks refresh attempts for one merchant. It is created on
// the first attempt, updated on every attempt, and never deleted.
type RefreshState struct {
	MerchantID    string     `json:"merchant_id"     gorm:"type:varchar(64);primaryKey"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastAttemptAt time.Time  `json:"last_attempt_at" gorm:"not null"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:text"`
	InProgress    bool       `json:"in_progress"     gorm:"not null;default:false"`
	LookbackDays  int        `json:"lookback_days"   gorm:"not null;default:7"`
	LastOrders    int        `json:"last_orders"     gorm:"not null;default:0"`
	LastItems     int        `json:"last_items"      gorm:"not null;default:0"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for RefreshState.
func (RefreshState) TableName() string { return "refresh_states" }
