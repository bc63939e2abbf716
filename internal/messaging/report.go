package messaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-sales-assistant/internal/domain"
)

// Report kinds accepted by FormatReport.
const (
	ReportSalesSummary = "sales_summary"
	ReportBestSelling  = "best_selling"
	ReportRevenue      = "revenue_report"
)

// ErrUnknownReport is returned for an unsupported report kind.
var ErrUnknownReport = errors.New("unknown report type")

func itemEmoji(e domain.CacheEntry) string {
	if strings.EqualFold(e.CategoryName(), "Coffee") {
		return "☕"
	}
	return "🥐"
}

func money(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

// FormatReport renders entries (ordered best first) as a WhatsApp text.
func FormatReport(kind string, entries []domain.CacheEntry) (string, error) {
	switch kind {
	case ReportSalesSummary:
		return salesSummary(entries), nil
	case ReportBestSelling:
		return bestSelling(entries), nil
	case ReportRevenue:
		return revenueReport(entries), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReport, kind)
}

func totals(entries []domain.CacheEntry) (int64, decimal.Decimal) {
	var units int64
	rev := decimal.Zero
	for _, e := range entries {
		units += e.QuantitySold
		rev = rev.Add(e.TotalRevenue)
	}
	return units, rev
}

func salesSummary(entries []domain.CacheEntry) string {
	if len(entries) == 0 {
		return "No sales data available."
	}
	var b strings.Builder
	b.WriteString("📊 *Sales Summary*\n\n")
	for i, e := range entries {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%s %d. *%s*\n   Sold: %d | Revenue: %s\n", itemEmoji(e), i+1, e.ItemName, e.QuantitySold, money(e.TotalRevenue))
	}
	units, rev := totals(entries)
	fmt.Fprintf(&b, "\n📈 *Total*: %d items | %s", units, money(rev))
	return b.String()
}

func bestSelling(entries []domain.CacheEntry) string {
	if len(entries) == 0 {
		return "No sales data available."
	}
	top := entries[0]
	msg := fmt.Sprintf("%s *Best Seller*: %s\nSold: %d units\nRevenue: %s", itemEmoji(top), top.ItemName, top.QuantitySold, money(top.TotalRevenue))
	if len(entries) > 1 {
		second := entries[1]
		msg += fmt.Sprintf("\n\n%s *Runner-up*: %s\nSold: %d units", itemEmoji(second), second.ItemName, second.QuantitySold)
	}
	return msg
}

func revenueReport(entries []domain.CacheEntry) string {
	if len(entries) == 0 {
		return "No revenue data available."
	}
	units, rev := totals(entries)
	avg := decimal.Zero
	if units > 0 {
		avg = rev.Div(decimal.NewFromInt(units))
	}
	var b strings.Builder
	b.WriteString("💰 *Revenue Report*\n\n")
	fmt.Fprintf(&b, "Total Revenue: %s\nItems Sold: %d\nAverage Price: %s\n\n", money(rev), units, money(avg))
	b.WriteString("*Top Revenue Generators:*\n")
	for i, e := range entries {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "%s %d. %s: %s\n", itemEmoji(e), i+1, e.ItemName, money(e.TotalRevenue))
	}
	return strings.TrimRight(b.String(), "\n")
}
