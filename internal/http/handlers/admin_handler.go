package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
	"github.com/tbourn/go-sales-assistant/internal/scheduler"
	"github.com/tbourn/go-sales-assistant/internal/services"
	"github.com/tbourn/go-sales-assistant/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of ledger records.
type ListMessagesResponse struct {
	Messages   []domain.MessageRecord `json:"messages"`
	Pagination Pagination             `json:"pagination"`
}

// SchedulerStatusResponse lists registered jobs.
type SchedulerStatusResponse struct {
	Running bool                  `json:"running"`
	Jobs    []scheduler.JobStatus `json:"jobs"`
}

// SendMessageRequest is the payload of POST /whatsapp/send.
type SendMessageRequest struct {
	To       string `json:"to" binding:"required" example:"+15551234567"`
	Message  string `json:"message" example:"Your weekly report is ready"`
	MediaURL string `json:"media_url" example:"https://example.com/chart.png"`
}

// SendReportRequest is the payload of POST /whatsapp/send-sales-report.
type SendReportRequest struct {
	To         string `json:"to" binding:"required" example:"+15551234567"`
	ReportType string `json:"report_type" example:"sales_summary" enums:"sales_summary,best_selling,revenue_report"`
}

// SendReportResponse echoes the sent report.
type SendReportResponse struct {
	messaging.SendResult
	ReportType string `json:"report_type"`
	Text       string `json:"text"`
}

//
// Helpers
//

// clampPagination bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(utils.AtoiDefault(c.Query("page"), defaultPage), 1)
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return page, pageSize
}

// sendFailure maps outbound errors to HTTP responses.
func sendFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrInvalidAddress):
		fail(c, http.StatusBadRequest, ErrCodeInvalidAddress, err.Error())
	case errors.Is(err, messaging.ErrUnknownReport):
		fail(c, http.StatusBadRequest, ErrCodeUnknownReport, err.Error())
	case errors.Is(err, services.ErrNoRecipient),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, messaging.ErrEmptyBody):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, "failed to send message")
	}
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     Message history (paginated)
// @Description Returns ledger records newest first.
// @Tags        Messages
// @Produce     json
//
// @Param       page       query  int  false  "Page number (>=1)"      default(1)
// @Param       page_size  query  int  false  "Page size (1..100)"     default(20)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	page, pageSize := clampPagination(c)

	msgs, total, err := h.deps.History.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list messages")
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: msgs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Get one ledger record
// @Tags        Messages
// @Produce     json
//
// @Param       sid  path  string  true  "Transport message id"
//
// @Success     200  {object}  domain.MessageRecord
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages/{sid} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	rec, err := h.deps.History.Get(c.Request.Context(), c.Param("sid"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, rec)
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load message")
	}
}

// SchedulerStatus godoc
// @ID          schedulerStatus
// @Summary     Scheduled jobs
// @Description Lists registered jobs with their trigger, next and last run.
// @Tags        Scheduler
// @Produce     json
//
// @Success     200  {object}  handlers.SchedulerStatusResponse
// @Router      /scheduler/status [get]
func (h *Handlers) SchedulerStatus(c *gin.Context) {
	ok(c, http.StatusOK, SchedulerStatusResponse{
		Running: h.deps.Scheduler.Running(),
		Jobs:    h.deps.Scheduler.Jobs(),
	})
}

// SchedulerRefresh godoc
// @ID          schedulerRefresh
// @Summary     Trigger the daily refresh now
// @Description Runs the scheduled refresh job synchronously and returns the updated job status.
// @Tags        Scheduler
// @Produce     json
//
// @Success     200  {object}  scheduler.JobStatus
// @Failure     404  {object}  handlers.ErrorResponse  "Job not registered"
// @Failure     502  {object}  handlers.ErrorResponse  "Refresh failed"
// @Router      /scheduler/refresh [post]
func (h *Handlers) SchedulerRefresh(c *gin.Context) {
	id := h.deps.RefreshJobID
	err := h.deps.Scheduler.RunNow(c.Request.Context(), id)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		fail(c, http.StatusNotFound, ErrCodeUnknownJob, "refresh job not registered")
		return
	}
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	for _, j := range h.deps.Scheduler.Jobs() {
		if j.ID == id {
			ok(c, http.StatusOK, j)
			return
		}
	}
	ok(c, http.StatusOK, scheduler.JobStatus{ID: id})
}

// SendMessage godoc
// @ID          sendWhatsApp
// @Summary     Send a WhatsApp message
// @Description Sends a free-form message. Without transport credentials the send is mocked.
// @Tags        WhatsApp
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendMessageRequest  true  "Message"
//
// @Success     200  {object}  messaging.SendResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Transport failure"
// @Router      /whatsapp/send [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.deps.Outbound.Send(c.Request.Context(), strings.TrimSpace(req.To), req.Message, strings.TrimSpace(req.MediaURL))
	if err != nil {
		sendFailure(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// SendSalesReport godoc
// @ID          sendSalesReport
// @Summary     Send a sales report
// @Description Formats a report from the current top items and sends it.
// @Tags        WhatsApp
// @Accept      json
// @Produce     json
//
// @Param       merchant_id  query  string                      false  "Merchant (defaults to the configured one)"
// @Param       body         body   handlers.SendReportRequest  true   "Report request"
//
// @Success     200  {object}  handlers.SendReportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Transport failure"
// @Router      /whatsapp/send-sales-report [post]
func (h *Handlers) SendSalesReport(c *gin.Context) {
	var req SendReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	kind := strings.TrimSpace(req.ReportType)
	if kind == "" {
		kind = messaging.ReportSalesSummary
	}
	res, text, err := h.deps.Outbound.SendReport(c.Request.Context(), h.merchant(c), strings.TrimSpace(req.To), kind)
	if err != nil {
		sendFailure(c, err)
		return
	}
	ok(c, http.StatusOK, SendReportResponse{SendResult: res, ReportType: kind, Text: text})
}
