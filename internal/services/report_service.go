// Package services – ReportService
//
// ReportService pushes text reports and ad-hoc messages to a WhatsApp
// recipient through the outbound sender.
package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-sales-assistant/internal/messaging"
)

// reportItemLimit is the number of top items a report is built from.
const reportItemLimit = 5

// Sender delivers outbound messages. Implemented by messaging.Sender.
type Sender interface {
	Send(ctx context.Context, to, body, mediaURL string) (messaging.SendResult, error)
}

// ReportService formats and sends reports.
type ReportService struct {
	Sales  *SalesService
	Sender Sender
}

// NewReportService constructs a ReportService.
func NewReportService(sales *SalesService, s Sender) *ReportService {
	return &ReportService{Sales: sales, Sender: s}
}

// Send delivers a free-form message.
func (s *ReportService) Send(ctx context.Context, to, body, mediaURL string) (messaging.SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return messaging.SendResult{}, ErrNoRecipient
	}
	if strings.TrimSpace(body) == "" && mediaURL == "" {
		return messaging.SendResult{}, ErrEmptyMessage
	}
	return s.Sender.Send(ctx, to, body, mediaURL)
}

// SendReport builds a report of kind for merchant and sends it to to. It
// returns the send result together with the text that was sent.
func (s *ReportService) SendReport(ctx context.Context, merchant, to, kind string) (messaging.SendResult, string, error) {
	if strings.TrimSpace(to) == "" {
		return messaging.SendResult{}, "", ErrNoRecipient
	}
	if kind == "" {
		kind = messaging.ReportSalesSummary
	}
	items, err := s.Sales.BestSelling(ctx, merchant, reportItemLimit, "")
	if err != nil {
		return messaging.SendResult{}, "", err
	}
	text, err := messaging.FormatReport(kind, items)
	if err != nil {
		return messaging.SendResult{}, "", err
	}
	res, err := s.Sender.Send(ctx, to, text, "")
	return res, text, err
}
