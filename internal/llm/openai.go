package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
)

const (
	openaiBaseURL  = "https://api.openai.com/v1"
	openaiModel    = "gpt-4.1-mini"
	openaiTimeout  = 20 * time.Second
	openaiProvider = "openai"
	maxErrorBody   = 512

	assistantSystemPrompt = "You are a helpful AI assistant for a coffee shop owner. You provide clear, concise, " +
		"and friendly responses about sales data and business analytics. Always be professional but approachable."
	analystSystemPrompt = "You are a business analyst specializing in coffee shop operations. Provide clear, actionable insights."
)

// OpenAI calls the Chat Completions endpoint with a single attempt per
// request. Replies are trimmed; guarding against short replies is left to
// the caller.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAI returns an OpenAI generator. m may be nil.
func NewOpenAI(cfg Config, m *metrics.Metrics) *OpenAI {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = openaiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openaiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openaiTimeout
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
		logger:  log.With().Str("component", "llm").Str("provider", openaiProvider).Logger(),
	}
}

// Name returns "openai".
func (o *OpenAI) Name() string { return openaiProvider }

// Generate answers question with the sales bundle and context in the prompt.
func (o *OpenAI) Generate(ctx context.Context, question, background string, bundle *SalesBundle) (string, error) {
	return o.complete(ctx, "Generate", chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: assistantSystemPrompt},
			{Role: "user", Content: buildPrompt(question, background, bundle)},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
}

// AnalyzeTrends asks for insights over items.
func (o *OpenAI) AnalyzeTrends(ctx context.Context, items []BundleItem, question string) (string, error) {
	if len(items) == 0 {
		return SummarizeTrends(nil), nil
	}
	return o.complete(ctx, "AnalyzeTrends", chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: analystSystemPrompt},
			{Role: "user", Content: buildTrendPrompt(items, question)},
		},
		MaxTokens:   300,
		Temperature: 0.5,
	})
}

func (o *OpenAI) complete(ctx context.Context, op string, req chatRequest) (out string, err error) {
	ctx, span := observability.Tracer("llm").Start(ctx, op,
		trace.WithAttributes(attribute.String("llm.provider", openaiProvider), attribute.String("llm.model", o.model)))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Warn().Err(err).Str("op", op).Msg("chat completion failed")
		}
		if o.metrics != nil {
			o.metrics.LLMRequests.WithLabelValues(openaiProvider, status).Inc()
			o.metrics.LLMLatency.WithLabelValues(openaiProvider).Observe(time.Since(start).Seconds())
		}
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return "", &GenerationError{Provider: openaiProvider, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Provider: openaiProvider, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: openaiProvider, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: openaiProvider, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return "", &GenerationError{Provider: openaiProvider, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &GenerationError{Provider: openaiProvider, Err: fmt.Errorf("decode: %w", err)}
	}
	if len(decoded.Choices) == 0 {
		return "", &GenerationError{Provider: openaiProvider, Err: ErrDegenerate}
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", &GenerationError{Provider: openaiProvider, Err: ErrDegenerate}
	}
	return text, nil
}
