package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshStates_Lifecycle(t *testing.T) {
	db := newRepoDB(t)
	r := NewRefreshStates(db)
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 23, 55, 0, 0, time.UTC)

	if _, err := r.Get(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound before first attempt, got %v", err)
	}

	if err := r.MarkStarted(ctx, "m1", 7, t0); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	st, err := r.Get(ctx, "m1")
	if err != nil || !st.InProgress || st.LookbackDays != 7 {
		t.Fatalf("after start: %+v, %v", st, err)
	}

	if err := r.MarkFinished(ctx, "m1", t0.Add(time.Second), 12, 5, nil); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	st, _ = r.Get(ctx, "m1")
	if st.InProgress || st.LastSuccessAt == nil || st.LastOrders != 12 || st.LastItems != 5 {
		t.Fatalf("after success: %+v", st)
	}
	success := *st.LastSuccessAt

	// A failed second attempt keeps the last success instant.
	t1 := t0.Add(24 * time.Hour)
	if err := r.MarkStarted(ctx, "m1", 3, t1); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	if err := r.MarkFinished(ctx, "m1", t1.Add(time.Second), 0, 0, errors.New("clover down")); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	st, _ = r.Get(ctx, "m1")
	if st.InProgress || st.LastError != "clover down" || st.LookbackDays != 3 {
		t.Fatalf("after failure: %+v", st)
	}
	if st.LastSuccessAt == nil || !st.LastSuccessAt.Equal(success) {
		t.Fatalf("last success changed: %v vs %v", st.LastSuccessAt, success)
	}
	if !st.LastAttemptAt.Equal(t1) {
		t.Fatalf("last attempt = %v; want %v", st.LastAttemptAt, t1)
	}
}
