// Package llm produces natural-language replies about sales data.
//
// Two Generators exist: OpenAI, which calls the Chat Completions API, and
// Template, a keyword-driven fallback that never fails. New picks one at
// startup based on whether an API key is configured; the choice is not
// revisited at runtime.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-sales-assistant/internal/metrics"
)

// BundleItem is one sales line shown to the generator.
type BundleItem struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// SalesBundle is the structured sales context handed to Generate. An empty
// Items slice means the cache had nothing to report.
type SalesBundle struct {
	Items       []BundleItem `json:"items"`
	Category    string       `json:"category,omitempty"`
	PeriodStart time.Time    `json:"period_start,omitempty"`
	PeriodEnd   time.Time    `json:"period_end,omitempty"`
}

// Generator turns a question plus optional sales data into reply text.
// Implementations must honor ctx deadlines.
type Generator interface {
	Name() string
	Generate(ctx context.Context, question, background string, bundle *SalesBundle) (string, error)
	AnalyzeTrends(ctx context.Context, items []BundleItem, question string) (string, error)
}

// Config selects and configures the generator.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// New returns OpenAI when an API key is set and Template otherwise.
func New(cfg Config, m *metrics.Metrics) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewTemplate()
	}
	return NewOpenAI(cfg, m)
}

// Money renders d as dollars with two decimals.
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// promptItemLimit caps items mentioned in the Generate prompt.
const promptItemLimit = 5

func buildPrompt(question, background string, bundle *SalesBundle) string {
	var parts []string
	if background != "" {
		parts = append(parts, "Context: "+background)
	}
	if bundle != nil && len(bundle.Items) > 0 {
		parts = append(parts, "Current sales data:")
		for i, it := range bundle.Items {
			if i == promptItemLimit {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. %s: %d sold, %s revenue", i+1, it.Name, it.Quantity, Money(it.Revenue)))
		}
		if bundle.Category != "" {
			parts = append(parts, fmt.Sprintf("(Filtered by category: %s)", bundle.Category))
		}
	}
	parts = append(parts, "Question: "+question)
	parts = append(parts, "Please provide a helpful, friendly response based on the sales data above. "+
		"Keep it concise and business-focused. If asking about best-selling items, "+
		"mention specific numbers and revenue when available.")
	return strings.Join(parts, "\n\n")
}

// trendItemLimit caps items listed in the trend-analysis prompt.
const trendItemLimit = 10

func buildTrendPrompt(items []BundleItem, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following sales data and answer the question: %s\n\nSales Data:\n", question)
	for i, it := range items {
		if i == trendItemLimit {
			break
		}
		cat := it.Category
		if cat == "" {
			cat = "Unknown"
		}
		fmt.Fprintf(&b, "- %s: %d sold, %s revenue, Category: %s\n", it.Name, it.Quantity, Money(it.Revenue), cat)
	}
	b.WriteString("\nPlease provide insights about trends, patterns, or specific answers to the question.\n")
	b.WriteString("Keep the response concise and actionable for a coffee shop owner.")
	return b.String()
}

// SummarizeTrends is the local trend analysis: totals, average price, the
// category with most units and the first (best) item.
func SummarizeTrends(items []BundleItem) string {
	if len(items) == 0 {
		return "I don't have enough sales data to analyze trends right now."
	}
	var units int64
	revenue := decimal.Zero
	perCat := map[string]int64{}
	var cats []string
	for _, it := range items {
		units += it.Quantity
		revenue = revenue.Add(it.Revenue)
		cat := it.Category
		if cat == "" {
			cat = "Unknown"
		}
		if _, ok := perCat[cat]; !ok {
			cats = append(cats, cat)
		}
		perCat[cat] += it.Quantity
	}
	avg := decimal.Zero
	if units > 0 {
		avg = revenue.Div(decimal.NewFromInt(units))
	}
	top := cats[0]
	for _, c := range cats[1:] {
		if perCat[c] > perCat[top] {
			top = c
		}
	}
	return fmt.Sprintf("Sales Analysis:\n"+
		"• Total items sold: %d\n"+
		"• Total revenue: %s\n"+
		"• Average price per item: %s\n"+
		"• Top category: %s\n"+
		"• Best performer: %s (%d sold)",
		units, Money(revenue), Money(avg), top, items[0].Name, items[0].Quantity)
}
