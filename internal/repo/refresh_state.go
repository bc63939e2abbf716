package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-sales-assistant/internal/domain"
)

// RefreshStates records refresh attempts per merchant.
type RefreshStates struct {
	DB *gorm.DB
}

// NewRefreshStates returns a RefreshStates bound to db.
func NewRefreshStates(db *gorm.DB) *RefreshStates {
	return &RefreshStates{DB: db}
}

// MarkStarted creates or updates the merchant's state for a new attempt.
func (r *RefreshStates) MarkStarted(ctx context.Context, merchant string, lookbackDays int, at time.Time) error {
	st := domain.RefreshState{
		MerchantID:    merchant,
		LastAttemptAt: at.UTC(),
		InProgress:    true,
		LookbackDays:  lookbackDays,
		UpdatedAt:     at.UTC(),
	}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_attempt_at": st.LastAttemptAt,
			"in_progress":     true,
			"lookback_days":   lookbackDays,
			"updated_at":      st.UpdatedAt,
		}),
	}).Create(&st).Error
	return persistErr("refresh_state_start", err)
}

// MarkFinished clears the in-progress flag. A nil cause records success
// along with the order and item counts; otherwise the error text is kept
// and the last success instant is left as it was.
func (r *RefreshStates) MarkFinished(ctx context.Context, merchant string, at time.Time, orders, items int, cause error) error {
	updates := map[string]any{
		"in_progress": false,
		"updated_at":  at.UTC(),
	}
	if cause == nil {
		updates["last_success_at"] = at.UTC()
		updates["last_error"] = ""
		updates["last_orders"] = orders
		updates["last_items"] = items
	} else {
		updates["last_error"] = cause.Error()
	}
	err := r.DB.WithContext(ctx).
		Model(&domain.RefreshState{}).
		Where("merchant_id = ?", merchant).
		Updates(updates).Error
	return persistErr("refresh_state_finish", err)
}

// Get returns the merchant's state or ErrNotFound.
func (r *RefreshStates) Get(ctx context.Context, merchant string) (*domain.RefreshState, error) {
	var st domain.RefreshState
	err := r.DB.WithContext(ctx).Where("merchant_id = ?", merchant).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
