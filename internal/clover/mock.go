package clover

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type mockProduct struct {
	id, name, category string
	price              int64
}

var mockCatalogue = []mockProduct{
	{"ITEM_001", "Cappuccino", "Coffee", 500},
	{"ITEM_002", "Latte", "Coffee", 550},
	{"ITEM_003", "Espresso", "Coffee", 400},
	{"ITEM_004", "Croissant", "Pastry", 300},
	{"ITEM_005", "Muffin", "Pastry", 350},
}

// MockSource serves generated coffee-shop data. Orders are seeded by
// calendar day so repeated fetches of the same window are identical.
type MockSource struct{}

// NewMockSource returns a MockSource.
func NewMockSource() *MockSource { return &MockSource{} }

// GetOrders generates roughly eleven orders per day between 08:00 and
// 19:59 UTC, each with one to three line items.
func (MockSource) GetOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Order
	seq := 1
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		rng := rand.New(rand.NewSource(day.Unix()))
		for i := 10; i <= 20; i++ {
			at := day.Add(time.Duration(8+i%12)*time.Hour + time.Duration((i*17)%60)*time.Minute)
			if at.Before(start) || !at.Before(end) {
				continue
			}
			o := Order{ID: fmt.Sprintf("ORDER_%d", seq), CreatedTime: at}
			n := 1 + rng.Intn(3)
			for j := 0; j < n; j++ {
				p := mockCatalogue[rng.Intn(len(mockCatalogue))]
				o.LineItems = append(o.LineItems, LineItem{ItemID: p.id, Name: p.name, Quantity: 1, UnitPriceMinor: p.price})
			}
			out = append(out, o)
			seq++
		}
	}
	return out, nil
}

// GetInventory returns the fixed demo catalogue.
func (MockSource) GetInventory(ctx context.Context) ([]InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]InventoryItem, 0, len(mockCatalogue))
	for _, p := range mockCatalogue {
		out = append(out, InventoryItem{ID: p.id, Name: p.name, Category: p.category})
	}
	return out, nil
}
