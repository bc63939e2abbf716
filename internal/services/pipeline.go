// Package services – Pipeline
//
// Pipeline is the inbound webhook path: ledger first, then intent, reply and
// finalize. It has no error return; every failure ends in a reply so the
// transport always gets a 200 and never retries forever.
//
// Idempotence rests on the ledger's unique message id. Deliveries of the
// same id racing inside this process are additionally collapsed with
// singleflight so only one of them composes.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/intent"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
	"github.com/tbourn/go-sales-assistant/internal/repo"
)

// ErrorReply is sent when the message could not be recorded or routed.
const ErrorReply = "Sorry, I encountered an error while processing your request. Please try again."

// DefaultStoreTimeout bounds each ledger call made by the pipeline.
const DefaultStoreTimeout = 5 * time.Second

// Ledger is the message-ledger contract. Implemented by repo.MessageLedger.
type Ledger interface {
	RecordOrReplay(ctx context.Context, in repo.Inbound) (repo.Outcome, error)
	Finalize(ctx context.Context, sid, reply string, elapsed time.Duration) error
	Get(ctx context.Context, sid string) (*domain.MessageRecord, error)
}

// Responder composes replies. Implemented by Composer. A non-nil error
// means the reply is a transient apology: it is sent but not finalized.
type Responder interface {
	Compose(ctx context.Context, merchant string, r intent.Result) (string, error)
}

// MerchantResolver maps a sender address to the merchant being served.
type MerchantResolver interface {
	Resolve(ctx context.Context, from string) (string, error)
}

// StaticResolver serves every sender as the same merchant.
type StaticResolver string

// Resolve returns the configured merchant id.
func (s StaticResolver) Resolve(context.Context, string) (string, error) {
	if s == "" {
		return "", errors.New("no merchant configured")
	}
	return string(s), nil
}

// HandleResult is what the transport replies with.
type HandleResult struct {
	MessageSID string        `json:"message_sid"`
	Reply      string        `json:"reply"`
	Replayed   bool          `json:"replayed"`
	Intent     intent.Intent `json:"intent,omitempty"`
}

// Pipeline wires the ledger, resolver and composer together.
type Pipeline struct {
	Ledger       Ledger
	Resolver     MerchantResolver
	Composer     Responder
	StoreTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Now          func() time.Time

	group singleflight.Group
}

// NewPipeline returns a Pipeline with default timeouts.
func NewPipeline(l Ledger, r MerchantResolver, c Responder, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		Ledger:       l,
		Resolver:     r,
		Composer:     c,
		StoreTimeout: DefaultStoreTimeout,
		Metrics:      m,
		Logger:       log.With().Str("component", "pipeline").Logger(),
		Now:          time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.StoreTimeout
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	// ledger writes complete even if the webhook caller went away
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// SyntheticMessageID builds an id for deliveries that carry none, such as
// local tests: LOCAL_TEST_<YYYYmmdd_HHMMSS>_<8 hex>.
func SyntheticMessageID(now time.Time) string {
	return fmt.Sprintf("LOCAL_TEST_%s_%s", now.Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Handle processes one inbound message and returns the reply to send.
func (p *Pipeline) Handle(ctx context.Context, in repo.Inbound) HandleResult {
	if strings.TrimSpace(in.MessageSID) == "" {
		in.MessageSID = SyntheticMessageID(p.now())
	}
	v, _, _ := p.group.Do(in.MessageSID, func() (any, error) {
		return p.handle(ctx, in), nil
	})
	return v.(HandleResult)
}

func (p *Pipeline) handle(ctx context.Context, in repo.Inbound) HandleResult {
	ctx, span := observability.Tracer("pipeline").Start(ctx, "Handle",
		trace.WithAttributes(attribute.String("message.sid", in.MessageSID)))
	defer span.End()

	start := p.now()
	lg := p.Logger.With().Str("message_sid", in.MessageSID).Logger()
	res := HandleResult{MessageSID: in.MessageSID}

	sctx, cancel := p.storeCtx(ctx)
	out, err := p.Ledger.RecordOrReplay(sctx, in)
	cancel()
	if err != nil {
		lg.Error().Err(err).Msg("record inbound message")
		p.count("error")
		p.Metrics.Error("ledger")
		res.Reply = ErrorReply
		return res
	}
	if out.Kind == repo.OutcomeReplay {
		lg.Info().Msg("duplicate delivery; replaying stored reply")
		p.count("replay")
		res.Reply, res.Replayed = out.Reply, true
		return res
	}

	merchant, err := p.Resolver.Resolve(ctx, in.From)
	if err != nil {
		lg.Error().Err(err).Msg("resolve merchant")
		p.count("error")
		p.Metrics.Error("pipeline")
		res.Reply = ErrorReply
		return res
	}

	r := intent.Classify(in.Body)
	res.Intent = r.Intent
	span.SetAttributes(attribute.String("intent", string(r.Intent)))
	reply, cerr := p.Composer.Compose(ctx, merchant, r)
	res.Reply = reply
	elapsed := p.now().Sub(start)
	if cerr != nil {
		// a redelivery composes again instead of replaying the apology
		lg.Warn().Err(cerr).Msg("reply not finalized; record left pending")
		p.count("error")
		return res
	}

	sctx, cancel = p.storeCtx(ctx)
	defer cancel()
	switch err := p.Ledger.Finalize(sctx, in.MessageSID, res.Reply, elapsed); {
	case err == nil:
	case errors.Is(err, repo.ErrAlreadyFinalized):
		// another delivery won; answer with what it stored
		if rec, gerr := p.Ledger.Get(sctx, in.MessageSID); gerr == nil && rec.Reply != nil {
			res.Reply, res.Replayed = *rec.Reply, true
		}
	default:
		lg.Warn().Err(err).Msg("finalize message; record left pending")
		p.Metrics.Error("ledger")
	}

	p.count("new")
	if p.Metrics != nil {
		p.Metrics.PipelineLatency.WithLabelValues(string(r.Intent)).Observe(elapsed.Seconds())
	}
	lg.Info().Str("intent", string(r.Intent)).Dur("elapsed", elapsed).Msg("message answered")
	return res
}

func (p *Pipeline) count(outcome string) {
	if p.Metrics != nil {
		p.Metrics.IncomingMessages.WithLabelValues(outcome).Inc()
	}
}
