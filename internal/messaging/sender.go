package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tbourn/go-sales-assistant/internal/metrics"
)

// DefaultFromNumber is the Twilio WhatsApp sandbox number.
const DefaultFromNumber = "whatsapp:+14155238886"

// StatusMock is reported for sends made without credentials.
const StatusMock = "mock"

// ErrEmptyBody is returned by Send when there is neither text nor media.
var ErrEmptyBody = errors.New("message body is empty")

// SendResult is the transport's acknowledgement of an outbound message.
type SendResult struct {
	MessageID string `json:"message_sid"`
	Status    string `json:"status"`
	To        string `json:"to"`
	From      string `json:"from"`
	Mock      bool   `json:"mock,omitempty"`
}

// SenderConfig holds Twilio credentials and the sending number.
type SenderConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// messageCreator is the twilio-go surface Sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender sends WhatsApp messages. Without credentials it runs in mock mode
// and only logs.
type Sender struct {
	api     messageCreator
	from    string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSender builds a Sender. m may be nil.
func NewSender(cfg SenderConfig, m *metrics.Metrics) *Sender {
	from := cfg.FromNumber
	if strings.TrimSpace(from) == "" {
		from = DefaultFromNumber
	}
	if n, err := NormalizeAddress(from); err == nil {
		from = n
	}
	s := &Sender{
		from:    from,
		metrics: m,
		logger:  log.With().Str("component", "sender").Logger(),
	}
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		s.api = client.Api
	} else {
		s.logger.Warn().Msg("twilio credentials not configured; outbound messages are simulated")
	}
	return s
}

// Mock reports whether the sender simulates sends.
func (s *Sender) Mock() bool { return s.api == nil }

// From returns the normalized sending address.
func (s *Sender) From() string { return s.from }

// Send delivers body (and optional mediaURL) to the given recipient. The
// twilio-go client has no context support, so the call runs on its own
// goroutine and Send returns ctx.Err() if ctx ends first.
func (s *Sender) Send(ctx context.Context, to, body, mediaURL string) (SendResult, error) {
	dest, err := NormalizeAddress(to)
	if err != nil {
		return SendResult{}, err
	}
	if strings.TrimSpace(body) == "" && mediaURL == "" {
		return SendResult{}, ErrEmptyBody
	}

	if s.api == nil {
		res := SendResult{
			MessageID: "MOCK_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
			Status:    StatusMock,
			To:        dest,
			From:      s.from,
			Mock:      true,
		}
		s.logger.Info().Str("to", DisplayNumber(dest)).Str("message_sid", res.MessageID).Bool("media", mediaURL != "").Msg("mock send")
		s.count(StatusMock)
		return res, nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(dest)
	params.SetFrom(s.from)
	if body != "" {
		params.SetBody(body)
	}
	if mediaURL != "" {
		params.SetMediaUrl([]string{mediaURL})
	}

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		ch <- result{msg, err}
	}()

	select {
	case <-ctx.Done():
		s.count("timeout")
		return SendResult{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			s.count("error")
			s.logger.Error().Err(r.err).Str("to", DisplayNumber(dest)).Msg("twilio send failed")
			return SendResult{}, fmt.Errorf("twilio send: %w", r.err)
		}
		res := SendResult{To: dest, From: s.from}
		if r.msg != nil && r.msg.Sid != nil {
			res.MessageID = *r.msg.Sid
		}
		if r.msg != nil && r.msg.Status != nil {
			res.Status = *r.msg.Status
		}
		s.count("sent")
		s.logger.Info().Str("to", DisplayNumber(dest)).Str("message_sid", res.MessageID).Str("status", res.Status).Msg("message sent")
		return res, nil
	}
}

func (s *Sender) count(status string) {
	if s.metrics != nil {
		s.metrics.OutgoingMessages.WithLabelValues(status).Inc()
	}
}
