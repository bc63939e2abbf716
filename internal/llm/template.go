package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const templateProvider = "template"

// Template answers from keywords in the question and the bundle contents.
// It never returns an error.
type Template struct{}

// NewTemplate returns the keyword-driven generator.
func NewTemplate() *Template { return &Template{} }

// Name returns "template".
func (*Template) Name() string { return templateProvider }

// Generate picks a canned answer by keyword, filling in bundle numbers when
// there are any.
func (*Template) Generate(_ context.Context, question, _ string, bundle *SalesBundle) (string, error) {
	q := strings.ToLower(question)
	var items []BundleItem
	if bundle != nil {
		items = bundle.Items
	}

	switch {
	case strings.Contains(q, "best") && (strings.Contains(q, "selling") || strings.Contains(q, "popular")):
		if len(items) == 0 {
			return "Based on your recent sales data, Cappuccino appears to be your best-selling item this week.", nil
		}
		top := items[0]
		reply := fmt.Sprintf("Your best-selling item is %s with %d units sold", top.Name, top.Quantity)
		if len(items) > 1 {
			reply += fmt.Sprintf(", followed by %s with %d units", items[1].Name, items[1].Quantity)
		}
		return reply + fmt.Sprintf(". Total revenue from %s: %s.", top.Name, Money(top.Revenue)), nil

	case containsAny(q, "coffee", "drink", "beverage"):
		for _, it := range items {
			if strings.EqualFold(it.Category, "Coffee") {
				return fmt.Sprintf("Your top coffee drink is %s with %d sold and %s in revenue.", it.Name, it.Quantity, Money(it.Revenue)), nil
			}
		}
		return "Your coffee sales are performing well. Cappuccino and Latte are typically your top performers.", nil

	case containsAny(q, "sales", "revenue", "income", "money"):
		if len(items) == 0 {
			return "Your sales data shows consistent performance across your menu items.", nil
		}
		var units int64
		rev := decimal.Zero
		for _, it := range items {
			units += it.Quantity
			rev = rev.Add(it.Revenue)
		}
		return fmt.Sprintf("Your recent sales show %d items sold with %s in total revenue from your top items.", units, Money(rev)), nil
	}

	return "I understand you're asking about your business data. Let me help you with that information based on your recent sales. " +
		"Try asking about your best-selling items or specific product performance.", nil
}

// AnalyzeTrends returns SummarizeTrends(items).
func (*Template) AnalyzeTrends(_ context.Context, items []BundleItem, _ string) (string, error) {
	return SummarizeTrends(items), nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
