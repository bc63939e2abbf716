// Package services – HistoryService
//
// HistoryService serves the message ledger to the admin API with page-based
// pagination.
package services

import (
	"context"
	"errors"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/repo"
	"github.com/tbourn/go-sales-assistant/internal/utils"
)

// HistoryRepo defines the read contract required by HistoryService.
type HistoryRepo interface {
	// Count returns the total number of ledger records.
	Count(ctx context.Context) (int64, error)
	// ListPage returns records newest first.
	ListPage(ctx context.Context, offset, limit int) ([]domain.MessageRecord, error)
	// Get fetches one record by message id.
	Get(ctx context.Context, sid string) (*domain.MessageRecord, error)
}

// HistoryService lists processed and pending inbound messages.
type HistoryService struct {
	Repo HistoryRepo
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(r HistoryRepo) *HistoryService {
	return &HistoryService{Repo: r}
}

// ListPage returns a page of records and the total count. It applies
// defaults for invalid page/pageSize.
func (s *HistoryService) ListPage(ctx context.Context, page, pageSize int) ([]domain.MessageRecord, int64, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.MessageRecord{}, 0, nil
	}

	items, err := s.Repo.ListPage(ctx, offset, pageSize)
	return items, total, err
}

// Get returns one record or ErrMessageNotFound.
func (s *HistoryService) Get(ctx context.Context, sid string) (*domain.MessageRecord, error) {
	rec, err := s.Repo.Get(ctx, sid)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	return rec, err
}
