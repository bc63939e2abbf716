package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sales-assistant/internal/clover"
	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/llm"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strp(s string) *string { return &s }

func cacheEntry(id, name, category string, qty int64, rev string) domain.CacheEntry {
	return domain.CacheEntry{
		ItemID:       id,
		ItemName:     name,
		Category:     strp(category),
		QuantitySold: qty,
		TotalRevenue: decimal.RequireFromString(rev),
	}
}

// fakeGen counts calls and returns a fixed reply or error.
type fakeGen struct {
	reply  string
	err    error
	calls  int32
	bundle *llm.SalesBundle
	mu     sync.Mutex
}

func (g *fakeGen) Name() string { return "fake" }

func (g *fakeGen) Generate(_ context.Context, _, _ string, b *llm.SalesBundle) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	g.bundle = b
	g.mu.Unlock()
	return g.reply, g.err
}

func (g *fakeGen) AnalyzeTrends(context.Context, []llm.BundleItem, string) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	return g.reply, g.err
}

// fakeSales is an in-memory SalesStore.
type fakeSales struct {
	items   []domain.CacheEntry
	fresh   bool
	err     error
	queries int32
}

func (f *fakeSales) TopItems(_ context.Context, _ string, limit int, _ string) ([]domain.CacheEntry, error) {
	atomic.AddInt32(&f.queries, 1)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeSales) IsFresh(context.Context, string, time.Duration) (bool, error) { return f.fresh, nil }

func (f *fakeSales) CurrentPeriod(context.Context, string) (*repo.Period, error) {
	if len(f.items) == 0 {
		return nil, repo.ErrNotFound
	}
	return &repo.Period{ItemCount: int64(len(f.items))}, nil
}

// countingSource is a clover.Source that counts order fetches.
type countingSource struct {
	calls int32
}

func (s *countingSource) GetOrders(context.Context, time.Time, time.Time) ([]clover.Order, error) {
	atomic.AddInt32(&s.calls, 1)
	return []clover.Order{{ID: "o1", LineItems: []clover.LineItem{
		{ItemID: "ITEM_001", Quantity: 150, UnitPriceMinor: 500},
		{ItemID: "ITEM_002", Quantity: 120, UnitPriceMinor: 550},
	}}}, nil
}

func (s *countingSource) GetInventory(context.Context) ([]clover.InventoryItem, error) {
	return []clover.InventoryItem{
		{ID: "ITEM_001", Name: "Cappuccino", Category: "Coffee"},
		{ID: "ITEM_002", Name: "Latte", Category: "Coffee"},
	}, nil
}

// stack is a fully wired pipeline over in-memory sqlite.
type stack struct {
	db       *gorm.DB
	store    *repo.MetricsStore
	ledger   *repo.MessageLedger
	source   *countingSource
	gen      *fakeGen
	pipeline *Pipeline
}

func newStack(t *testing.T, gen *fakeGen) *stack {
	t.Helper()
	db := newSvcDB(t)
	store := repo.NewMetricsStore(db)
	ledger := repo.NewMessageLedger(db)
	src := &countingSource{}
	r := refresh.New(src, store, repo.NewRefreshStates(db), nil)

	sales := NewSalesService(store, r)
	composer := NewComposer(sales, gen, nil)
	return &stack{
		db:       db,
		store:    store,
		ledger:   ledger,
		source:   src,
		gen:      gen,
		pipeline: NewPipeline(ledger, StaticResolver("m1"), composer, nil),
	}
}
