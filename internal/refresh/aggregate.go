package refresh

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-sales-assistant/internal/clover"
	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/repo"
)

// Aggregate sums quantity and revenue per item across orders. Prices are
// converted from minor to major units; names and categories come from the
// inventory, falling back to the line-item name, then to a placeholder and
// domain.DefaultCategory. Line items with a non-positive quantity are
// skipped. The result is ordered by item id.
func Aggregate(orders []clover.Order, inventory []clover.InventoryItem) []repo.SalesItem {
	lookup := make(map[string]clover.InventoryItem, len(inventory))
	for _, it := range inventory {
		lookup[it.ID] = it
	}
	title := cases.Title(language.English)

	acc := make(map[string]*repo.SalesItem)
	for _, o := range orders {
		for _, li := range o.LineItems {
			qty := li.Quantity
			// refund and void lines carry no sale
			if li.ItemID == "" || qty <= 0 {
				continue
			}
			agg, ok := acc[li.ItemID]
			if !ok {
				agg = &repo.SalesItem{ItemID: li.ItemID, Revenue: decimal.Zero}
				inv := lookup[li.ItemID]
				agg.ItemName = firstNonEmpty(inv.Name, li.Name, fmt.Sprintf("Unknown Item %s", li.ItemID))
				agg.Category = domain.DefaultCategory
				if c := strings.TrimSpace(inv.Category); c != "" {
					agg.Category = title.String(c)
				}
				acc[li.ItemID] = agg
			}
			agg.Quantity += qty
			// unit price is in cents: price*qty / 100
			agg.Revenue = agg.Revenue.Add(decimal.New(li.UnitPriceMinor*qty, -2))
		}
	}

	out := make([]repo.SalesItem, 0, len(acc))
	for _, v := range acc {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
