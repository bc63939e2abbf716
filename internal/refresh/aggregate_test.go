package refresh

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-sales-assistant/internal/clover"
	"github.com/tbourn/go-sales-assistant/internal/domain"
)

func TestAggregate_Fallbacks(t *testing.T) {
	orders := []clover.Order{{LineItems: []clover.LineItem{
		{ItemID: "A", Name: "Line Name", Quantity: 1, UnitPriceMinor: 199},
		{ItemID: "B", Quantity: 3, UnitPriceMinor: 100},
		{ItemID: "", Quantity: 9, UnitPriceMinor: 100},
	}}}
	inv := []clover.InventoryItem{{ID: "B", Name: "", Category: "  pastry "}}

	got := Aggregate(orders, inv)
	if len(got) != 2 {
		t.Fatalf("want 2 items, got %+v", got)
	}
	a, b := got[0], got[1]
	if a.ItemName != "Line Name" || a.Category != domain.DefaultCategory || a.Quantity != 1 ||
		!a.Revenue.Equal(decimal.RequireFromString("1.99")) {
		t.Fatalf("A=%+v", a)
	}
	if b.ItemName != "Unknown Item B" || b.Category != "Pastry" || !b.Revenue.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("B=%+v", b)
	}
}

func TestAggregate_SkipsNonPositiveQuantities(t *testing.T) {
	orders := []clover.Order{
		{LineItems: []clover.LineItem{
			{ItemID: "ITEM_001", Quantity: 2, UnitPriceMinor: 500},
			{ItemID: "ITEM_001", Quantity: -1, UnitPriceMinor: 500}, // refund
		}},
		{LineItems: []clover.LineItem{
			{ItemID: "ITEM_002", Quantity: 0, UnitPriceMinor: 550},
			{ItemID: "ITEM_003", Quantity: -4, UnitPriceMinor: 300},
		}},
	}

	got := Aggregate(orders, nil)
	if len(got) != 1 {
		t.Fatalf("want only ITEM_001, got %+v", got)
	}
	if got[0].ItemID != "ITEM_001" || got[0].Quantity != 2 || !got[0].Revenue.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("ITEM_001=%+v", got[0])
	}
}

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil, nil); got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}
