package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/http/middleware"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
	"github.com/tbourn/go-sales-assistant/internal/repo"
	"github.com/tbourn/go-sales-assistant/internal/sysutil"
	"github.com/tbourn/go-sales-assistant/internal/utils"
)

const (
	// defaultTestFrom and defaultTestQuestion fill in a simulated delivery.
	defaultTestFrom     = "whatsapp:+1234567890"
	defaultTestQuestion = "What is my best-selling drink this week?"
)

// knownStatuses bounds the status label of the callback counter.
var knownStatuses = map[string]struct{}{
	"accepted": {}, "scheduled": {}, "queued": {}, "sending": {}, "sent": {},
	"delivered": {}, "read": {}, "undelivered": {}, "failed": {}, "canceled": {},
	"receiving": {}, "received": {},
}

// inboundFromForm extracts the transport fields of a webhook delivery.
// MessageSid is preferred; MessageIdentifier and SmsMessageSid are aliases.
func inboundFromForm(c *gin.Context) repo.Inbound {
	from := strings.TrimSpace(c.PostForm("From"))
	if n, err := messaging.NormalizeAddress(from); err == nil {
		from = n
	}
	to := strings.TrimSpace(c.PostForm("To"))
	if n, err := messaging.NormalizeAddress(to); err == nil {
		to = n
	}
	return repo.Inbound{
		MessageSID: strings.TrimSpace(sysutil.FirstNonEmpty(
			c.PostForm("MessageSid"),
			c.PostForm("MessageIdentifier"),
			c.PostForm("SmsMessageSid"),
		)),
		From:     from,
		To:       to,
		Body:     c.PostForm("Body"),
		NumMedia: utils.AtoiDefault(c.PostForm("NumMedia"), 0),
	}
}

// Webhook godoc
// @ID          whatsappWebhook
// @Summary     Inbound WhatsApp message
// @Description Receives a Twilio webhook delivery and answers with TwiML. Redeliveries of an already answered MessageSid replay the stored reply.
// @Tags        Webhook
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       MessageSid  formData  string  false  "Transport message id"
// @Param       From        formData  string  true   "Sender address"  example(whatsapp:+15551234567)
// @Param       To          formData  string  false  "Recipient address"
// @Param       Body        formData  string  false  "Message text"
// @Param       NumMedia    formData  int     false  "Number of media attachments"
//
// @Success     200  {string}  string  "TwiML response"
// @Failure     403  {string}  string  "Signature rejected"
// @Router      /webhook/whatsapp [post]
func (h *Handlers) Webhook(c *gin.Context) {
	in := inboundFromForm(c)
	res := h.deps.Pipeline.Handle(c.Request.Context(), in)

	middleware.LoggerFrom(c).Info().
		Str("message_sid", res.MessageSID).
		Str("intent", string(res.Intent)).
		Bool("replayed", res.Replayed).
		Int("num_media", in.NumMedia).
		Msg("webhook answered")

	twiml(c, res.Reply)
}

// StatusCallback godoc
// @ID          whatsappStatusCallback
// @Summary     Delivery status callback
// @Description Records outbound delivery status updates. Always answers with an empty TwiML document.
// @Tags        Webhook
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       MessageSid     formData  string  false  "Transport message id"
// @Param       MessageStatus  formData  string  false  "Delivery status"  example(delivered)
// @Param       ErrorCode      formData  string  false  "Transport error code"
//
// @Success     200  {string}  string  "Empty TwiML response"
// @Router      /webhook/whatsapp/status [post]
func (h *Handlers) StatusCallback(c *gin.Context) {
	sid := sysutil.FirstNonEmpty(c.PostForm("MessageSid"), c.PostForm("SmsSid"))
	status := strings.ToLower(strings.TrimSpace(sysutil.FirstNonEmpty(c.PostForm("MessageStatus"), c.PostForm("SmsStatus"))))
	code := c.PostForm("ErrorCode")

	label := status
	if _, ok := knownStatuses[label]; !ok {
		label = "other"
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.StatusCallbacks.WithLabelValues(label).Inc()
	}

	lg := middleware.LoggerFrom(c)
	ev := lg.Info()
	if code != "" || label == "failed" || label == "undelivered" {
		ev = lg.Warn().Str("error_code", code)
	}
	ev.Str("message_sid", sid).Str("status", status).Msg("delivery status")

	twiml(c, "")
}

// TestWebhookRequest simulates a webhook delivery as JSON.
type TestWebhookRequest struct {
	// MessageSID is synthesized when empty.
	MessageSID string `json:"message_sid" example:"SM_TEST_001"`
	From       string `json:"from" example:"whatsapp:+1234567890"`
	Message    string `json:"message" example:"What is my best-selling drink this week?"`
}

// TestWebhook godoc
// @ID          testWebhook
// @Summary     Simulate an inbound message
// @Description Runs the webhook pipeline for a JSON payload and returns the reply. Repeating a message_sid replays the stored reply.
// @Tags        Test
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.TestWebhookRequest  true  "Simulated delivery"
//
// @Success     200  {object}  services.HandleResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /test/webhook [post]
func (h *Handlers) TestWebhook(c *gin.Context) {
	var req TestWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	from := sysutil.FirstNonEmpty(req.From, defaultTestFrom)
	norm, err := messaging.NormalizeAddress(from)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAddress, err.Error())
		return
	}
	res := h.deps.Pipeline.Handle(c.Request.Context(), repo.Inbound{
		MessageSID: strings.TrimSpace(req.MessageSID),
		From:       norm,
		To:         messaging.DefaultFromNumber,
		Body:       sysutil.FirstNonEmpty(req.Message, defaultTestQuestion),
	})
	ok(c, http.StatusOK, res)
}
