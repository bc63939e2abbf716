// Package repo implements the data persistence layer for domain entities.
// This file provides MessageLedger, the at-most-once ledger of inbound
// transport messages keyed by the transport-assigned message id.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sales-assistant/internal/domain"
)

// AlreadyHandledReply is replayed for a finalized record that has no stored
// reply.
const AlreadyHandledReply = "I've already processed this message."

// OutcomeKind distinguishes first-time processing from redelivery.
type OutcomeKind int

const (
	// OutcomeNew means the caller owns processing of Record.
	OutcomeNew OutcomeKind = iota
	// OutcomeReplay means the message was already finalized; Reply holds
	// the text to send back verbatim.
	OutcomeReplay
)

func (k OutcomeKind) String() string {
	if k == OutcomeReplay {
		return "replay"
	}
	return "new"
}

// Inbound carries the transport fields recorded for a message.
type Inbound struct {
	MessageSID string
	From       string
	To         string
	Body       string
	NumMedia   int
}

// Outcome is the result of RecordOrReplay.
type Outcome struct {
	Kind   OutcomeKind
	Record *domain.MessageRecord
	Reply  string
}

// MessageLedger owns MessageRecord rows. The unique index on message_sid is
// the only idempotence boundary: insert first, and treat a unique violation
// as "seen before".
type MessageLedger struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewMessageLedger returns a MessageLedger bound to db.
func NewMessageLedger(db *gorm.DB) *MessageLedger {
	return &MessageLedger{DB: db, Now: time.Now}
}

func (l *MessageLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// RecordOrReplay persists a pending record for an unseen id and returns
// OutcomeNew. For an id that is already finalized it returns OutcomeReplay
// with the stored reply (or AlreadyHandledReply when none was stored). A
// pending record left by an interrupted attempt is reused as OutcomeNew.
func (l *MessageLedger) RecordOrReplay(ctx context.Context, in Inbound) (Outcome, error) {
	sid := strings.TrimSpace(in.MessageSID)
	if sid == "" {
		return Outcome{}, persistErr("record_message", errors.New("message id is empty"))
	}

	rec := &domain.MessageRecord{
		MessageSID: sid,
		FromNumber: in.From,
		ToNumber:   in.To,
		Body:       in.Body,
		NumMedia:   in.NumMedia,
		ReceivedAt: l.now(),
	}
	err := l.DB.WithContext(ctx).Create(rec).Error
	if err == nil {
		return Outcome{Kind: OutcomeNew, Record: rec}, nil
	}
	if !isUniqueViolation(err) {
		return Outcome{}, persistErr("record_message", err)
	}

	existing, err := l.Get(ctx, sid)
	if err != nil {
		return Outcome{}, persistErr("record_message", err)
	}
	if !existing.Processed {
		return Outcome{Kind: OutcomeNew, Record: existing}, nil
	}
	reply := AlreadyHandledReply
	if existing.Reply != nil {
		reply = *existing.Reply
	}
	return Outcome{Kind: OutcomeReplay, Record: existing, Reply: reply}, nil
}

// Finalize stores reply and elapsed time and marks the record processed.
// The update is conditional on processed = false, so it takes effect at most
// once; later calls return ErrAlreadyFinalized and leave the row untouched.
func (l *MessageLedger) Finalize(ctx context.Context, sid, reply string, elapsed time.Duration) error {
	ms := elapsed.Milliseconds()
	res := l.DB.WithContext(ctx).
		Model(&domain.MessageRecord{}).
		Where("message_sid = ? AND processed = ?", sid, false).
		Updates(map[string]any{
			"reply":         reply,
			"processed":     true,
			"processing_ms": ms,
		})
	if res.Error != nil {
		return persistErr("finalize_message", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := l.Get(ctx, sid); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return persistErr("finalize_message", err)
	}
	return ErrAlreadyFinalized
}

// Get returns the record for sid or ErrNotFound.
func (l *MessageLedger) Get(ctx context.Context, sid string) (*domain.MessageRecord, error) {
	var rec domain.MessageRecord
	err := l.DB.WithContext(ctx).Where("message_sid = ?", sid).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count returns the total number of ledger records.
func (l *MessageLedger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.DB.WithContext(ctx).Model(&domain.MessageRecord{}).Count(&n).Error
	return n, err
}

// ListPage returns a page of records ordered newest first (received_at DESC,
// id DESC).
func (l *MessageLedger) ListPage(ctx context.Context, offset, limit int) ([]domain.MessageRecord, error) {
	out := []domain.MessageRecord{}
	err := l.DB.WithContext(ctx).
		Order("received_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
