// Package services – Composer
//
// Composer turns a classified message into reply text. Greeting, help and
// empty messages get fixed templates. Sales questions are answered from the
// cache through the text generator, and general questions go to the
// generator with no sales data. Whatever the generator returns is checked:
// errors and replies shorter than MinReplyRunes are replaced by a
// deterministic fallback, so callers always receive usable text.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/intent"
	"github.com/tbourn/go-sales-assistant/internal/llm"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
)

// MinReplyRunes is the shortest generated reply accepted as usable.
const MinReplyRunes = 10

// Fixed reply texts.
const (
	EmptyReply = "Hello! I can help you with sales information for your coffee shop. " +
		"Try asking 'What's my best-selling drink this week?'"
	GreetingReply = "Hello! I'm your coffee shop sales assistant. I can help you with sales data and analytics. " +
		"Try asking about your best-selling items!"
	HelpReply = "I can help you with your coffee shop sales data! Here are some things you can ask:\n\n" +
		"• \"What's my best-selling drink this week?\"\n" +
		"• \"How many cappuccinos did I sell?\"\n" +
		"• \"What are my top 5 items?\"\n" +
		"• \"Show me coffee sales\"\n" +
		"• \"What's my revenue today?\"\n\n" +
		"Just ask me any question about your sales and I'll help you find the answer!"
	NoSalesDataReply = "I don't have any sales data available right now. Please check back later."
	GeneralFallback  = "I'm not sure how to help with that. Try asking about your sales data, " +
		"like 'What's my best-selling drink this week?'"
	SalesUnavailableReply = "Sorry, I'm having trouble accessing your sales data right now. Please try again later."

	generalContext = "You are a helpful assistant for a coffee shop owner. " +
		"You can help with sales data and general business questions."
	salesContext = "You are a helpful assistant for a coffee shop owner. " +
		"Answer the user's question about their sales data using the figures provided."
)

// trendItemLimit is the number of items handed to trend analysis.
const trendItemLimit = 10

// DefaultLLMTimeout bounds a generator call when none is configured.
const DefaultLLMTimeout = 20 * time.Second

// Composer builds replies. Sales and Generator are required.
type Composer struct {
	Sales      *SalesService
	Generator  llm.Generator
	LLMTimeout time.Duration
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// NewComposer returns a Composer with the default generator timeout.
func NewComposer(sales *SalesService, gen llm.Generator, m *metrics.Metrics) *Composer {
	return &Composer{
		Sales:      sales,
		Generator:  gen,
		LLMTimeout: DefaultLLMTimeout,
		Metrics:    m,
		Logger:     log.With().Str("component", "composer").Logger(),
	}
}

// Compose answers r for merchant. It never returns an empty reply. The
// error is non-nil only when the sales cache could not be read; the reply is
// then SalesUnavailableReply and should not be stored as the final answer.
func (c *Composer) Compose(ctx context.Context, merchant string, r intent.Result) (string, error) {
	ctx, span := observability.Tracer("composer").Start(ctx, "Compose",
		trace.WithAttributes(
			attribute.String("merchant_id", merchant),
			attribute.String("intent", string(r.Intent)),
		))
	defer span.End()

	switch r.Intent {
	case intent.Empty:
		return EmptyReply, nil
	case intent.Greeting:
		return GreetingReply, nil
	case intent.Help:
		return HelpReply, nil
	case intent.Sales:
		return c.composeSales(ctx, merchant, r)
	default:
		reply, err := c.generate(ctx, r.Text, generalContext, nil)
		if reason := unusable(reply, err); reason != "" {
			c.fallback(reason, err)
			return GeneralFallback, nil
		}
		return reply, nil
	}
}

func (c *Composer) composeSales(ctx context.Context, merchant string, r intent.Result) (string, error) {
	items, err := c.Sales.BestSelling(ctx, merchant, r.Limit, r.Category)
	if err != nil {
		c.Logger.Error().Err(err).Str("merchant_id", merchant).Msg("read sales cache")
		c.Metrics.Error("composer")
		return SalesUnavailableReply, fmt.Errorf("%w: %w", ErrSalesUnavailable, err)
	}
	bundle := toBundle(items, r.Category)

	reply, err := c.generate(ctx, r.Text, salesContext, bundle)
	if reason := unusable(reply, err); reason != "" {
		c.fallback(reason, err)
		return SalesFallback(bundle), nil
	}
	return reply, nil
}

// AnalyzeTrends answers a trend question over the merchant's top items,
// falling back to llm.SummarizeTrends when the generator is unusable.
func (c *Composer) AnalyzeTrends(ctx context.Context, merchant, question string) string {
	entries, err := c.Sales.BestSelling(ctx, merchant, trendItemLimit, "")
	if err != nil {
		c.Logger.Error().Err(err).Str("merchant_id", merchant).Msg("read sales cache")
		c.Metrics.Error("composer")
		return SalesUnavailableReply
	}
	items := toBundle(entries, "").Items
	if strings.TrimSpace(question) == "" {
		question = "What are my sales trends?"
	}

	cctx, cancel := context.WithTimeout(ctx, c.llmTimeout())
	defer cancel()
	reply, err := c.Generator.AnalyzeTrends(cctx, items, question)
	if reason := unusable(reply, err); reason != "" {
		c.fallback(reason, err)
		return llm.SummarizeTrends(items)
	}
	return strings.TrimSpace(reply)
}

func (c *Composer) llmTimeout() time.Duration {
	if c.LLMTimeout > 0 {
		return c.LLMTimeout
	}
	return DefaultLLMTimeout
}

func (c *Composer) generate(ctx context.Context, question, background string, bundle *llm.SalesBundle) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.llmTimeout())
	defer cancel()
	reply, err := c.Generator.Generate(cctx, question, background, bundle)
	return strings.TrimSpace(reply), err
}

func (c *Composer) fallback(reason string, err error) {
	ev := c.Logger.Warn().Str("reason", reason)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("generated reply unusable; using fallback")
	if c.Metrics != nil {
		c.Metrics.LLMFallbacks.WithLabelValues(reason).Inc()
	}
}

// unusable returns the fallback reason for a generator outcome, or "" when
// the reply can be sent.
func unusable(reply string, err error) string {
	switch {
	case err != nil:
		return "error"
	case utf8.RuneCountInString(strings.TrimSpace(reply)) < MinReplyRunes:
		return "too_short"
	}
	return ""
}

func toBundle(entries []domain.CacheEntry, category string) *llm.SalesBundle {
	b := &llm.SalesBundle{Category: category, Items: make([]llm.BundleItem, 0, len(entries))}
	for i, e := range entries {
		if i == 0 {
			b.PeriodStart, b.PeriodEnd = e.PeriodStart, e.PeriodEnd
		}
		b.Items = append(b.Items, llm.BundleItem{
			Name:     e.ItemName,
			Category: e.CategoryName(),
			Quantity: e.QuantitySold,
			Revenue:  e.TotalRevenue,
		})
	}
	return b
}

// SalesFallback is the deterministic sales answer built from bundle.
func SalesFallback(bundle *llm.SalesBundle) string {
	if bundle == nil || len(bundle.Items) == 0 {
		return NoSalesDataReply
	}
	top := bundle.Items[0]
	reply := fmt.Sprintf("Your best-selling item is %s with %d sold", top.Name, top.Quantity)
	if len(bundle.Items) > 1 {
		next := bundle.Items[1]
		reply += fmt.Sprintf(", followed by %s with %d sold", next.Name, next.Quantity)
	}
	return reply + "."
}
