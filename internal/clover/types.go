// Package clover is the client for the Clover point-of-sale REST API, the
// sales-data collaborator of the refresher. It also provides a deterministic
// mock source used when no API token is configured.
package clover

import (
	"context"
	"time"
)

// Order is one POS order with its line items.
type Order struct {
	ID          string     `json:"id"`
	CreatedTime time.Time  `json:"created_time"`
	LineItems   []LineItem `json:"line_items"`
}

// LineItem is one sold item within an order. UnitPriceMinor is expressed in
// minor currency units (cents).
type LineItem struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// InventoryItem is one catalogue entry. Category is empty when the item has
// no category assigned.
type InventoryItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Source is the contract the refresher depends on. Implementations must
// honor ctx for cancellation and deadlines.
type Source interface {
	// GetOrders returns orders created in [start, end).
	GetOrders(ctx context.Context, start, end time.Time) ([]Order, error)
	// GetInventory returns the merchant's item catalogue.
	GetInventory(ctx context.Context) ([]InventoryItem, error)
}

// wire formats --------------------------------------------------------------

// envelope is Clover's list wrapper: {"elements": [...]}.
type envelope[T any] struct {
	Elements []T `json:"elements"`
}

type wireOrder struct {
	ID          string `json:"id"`
	CreatedTime int64  `json:"createdTime"`
	LineItems   struct {
		Elements []wireLineItem `json:"elements"`
	} `json:"lineItems"`
}

type wireLineItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"item"`
	Price   int64  `json:"price"`
	UnitQty *int64 `json:"unitQty"`
}

type wireItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Categories struct {
		Elements []struct {
			Name string `json:"name"`
		} `json:"elements"`
	} `json:"categories"`
}

func (o wireOrder) toOrder() Order {
	out := Order{
		ID:          o.ID,
		CreatedTime: time.UnixMilli(o.CreatedTime).UTC(),
		LineItems:   make([]LineItem, 0, len(o.LineItems.Elements)),
	}
	for _, li := range o.LineItems.Elements {
		if li.Item.ID == "" {
			continue
		}
		qty := int64(1)
		if li.UnitQty != nil {
			qty = *li.UnitQty
		}
		name := li.Item.Name
		if name == "" {
			name = li.Name
		}
		out.LineItems = append(out.LineItems, LineItem{
			ItemID:         li.Item.ID,
			Name:           name,
			Quantity:       qty,
			UnitPriceMinor: li.Price,
		})
	}
	return out
}

func (w wireItem) toItem() InventoryItem {
	it := InventoryItem{ID: w.ID, Name: w.Name}
	if len(w.Categories.Elements) > 0 {
		it.Category = w.Categories.Elements[0].Name
	}
	return it
}
