package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/messaging"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/repo"
	"github.com/tbourn/go-sales-assistant/internal/scheduler"
	"github.com/tbourn/go-sales-assistant/internal/services"
)

//
// Fakes
//

type fakePipeline struct {
	mu  sync.Mutex
	got []repo.Inbound
	res services.HandleResult
}

func (f *fakePipeline) Handle(_ context.Context, in repo.Inbound) services.HandleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	res := f.res
	if res.MessageSID == "" {
		res.MessageSID = in.MessageSID
	}
	return res
}

type fakeSales struct {
	items      []domain.CacheEntry
	listErr    error
	refreshRes refresh.Result
	refreshErr error
	status     *services.CacheStatus

	gotMerchant string
	gotLimit    int
	gotCategory string
	gotDays     int
}

func (f *fakeSales) BestSelling(_ context.Context, merchant string, limit int, category string) ([]domain.CacheEntry, error) {
	f.gotMerchant, f.gotLimit, f.gotCategory = merchant, limit, category
	return f.items, f.listErr
}

func (f *fakeSales) Refresh(_ context.Context, merchant string, days int) (refresh.Result, error) {
	f.gotMerchant, f.gotDays = merchant, days
	return f.refreshRes, f.refreshErr
}

func (f *fakeSales) CacheStatus(_ context.Context, merchant string) (*services.CacheStatus, error) {
	f.gotMerchant = merchant
	if f.status == nil {
		return nil, errors.New("db down")
	}
	return f.status, nil
}

type fakeTrends struct{ question string }

func (f *fakeTrends) AnalyzeTrends(_ context.Context, merchant, question string) string {
	f.question = question
	return "Sales Analysis for " + merchant
}

type fakeHistory struct {
	recs  []domain.MessageRecord
	total int64
	err   error

	gotPage, gotSize int
}

func (f *fakeHistory) ListPage(_ context.Context, page, size int) ([]domain.MessageRecord, int64, error) {
	f.gotPage, f.gotSize = page, size
	return f.recs, f.total, f.err
}

func (f *fakeHistory) Get(_ context.Context, sid string) (*domain.MessageRecord, error) {
	for i := range f.recs {
		if f.recs[i].MessageSID == sid {
			return &f.recs[i], nil
		}
	}
	return nil, services.ErrMessageNotFound
}

type fakeScheduler struct {
	jobs   []scheduler.JobStatus
	runErr error
	ran    []string
}

func (f *fakeScheduler) Jobs() []scheduler.JobStatus { return f.jobs }
func (f *fakeScheduler) Running() bool               { return true }
func (f *fakeScheduler) RunNow(_ context.Context, id string) error {
	f.ran = append(f.ran, id)
	return f.runErr
}

type fakeOutbound struct {
	err error

	to, body, media, kind string
}

func (f *fakeOutbound) Send(_ context.Context, to, body, media string) (messaging.SendResult, error) {
	f.to, f.body, f.media = to, body, media
	if f.err != nil {
		return messaging.SendResult{}, f.err
	}
	return messaging.SendResult{MessageID: "MOCK_1", Status: messaging.StatusMock, To: to, Mock: true}, nil
}

func (f *fakeOutbound) SendReport(_ context.Context, merchant, to, kind string) (messaging.SendResult, string, error) {
	f.to, f.kind = to, kind
	if f.err != nil {
		return messaging.SendResult{}, "", f.err
	}
	return messaging.SendResult{MessageID: "MOCK_2", Status: messaging.StatusMock}, "📊 report for " + merchant, nil
}

//
// Harness
//

type harness struct {
	r        *gin.Engine
	pipeline *fakePipeline
	sales    *fakeSales
	trends   *fakeTrends
	history  *fakeHistory
	sched    *fakeScheduler
	out      *fakeOutbound
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		pipeline: &fakePipeline{res: services.HandleResult{Reply: "Hi there!", Intent: "greeting"}},
		sales:    &fakeSales{},
		trends:   &fakeTrends{},
		history:  &fakeHistory{},
		sched:    &fakeScheduler{},
		out:      &fakeOutbound{},
	}
	hd := New(Deps{
		Pipeline:   h.pipeline,
		Sales:      h.sales,
		Trends:     h.trends,
		History:    h.history,
		Scheduler:  h.sched,
		Outbound:   h.out,
		Metrics:    metrics.Registry("handlers_test"),
		MerchantID: "M1",
	})
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-test"); c.Next() })
	r.POST("/webhook/whatsapp", hd.Webhook)
	r.POST("/webhook/whatsapp/status", hd.StatusCallback)
	r.POST("/test/webhook", hd.TestWebhook)
	r.GET("/sales/best-selling", hd.BestSelling)
	r.POST("/sales/refresh", hd.RefreshSales)
	r.GET("/sales/cache-status", hd.CacheStatus)
	r.GET("/sales/trends", hd.Trends)
	r.GET("/messages", hd.ListMessages)
	r.GET("/messages/:sid", hd.GetMessage)
	r.GET("/scheduler/status", hd.SchedulerStatus)
	r.POST("/scheduler/refresh", hd.SchedulerRefresh)
	r.POST("/whatsapp/send", hd.SendMessage)
	r.POST("/whatsapp/send-sales-report", hd.SendSalesReport)
	h.r = r
	return h
}

func (h *harness) do(method, target, contentType string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func (h *harness) form(target string, v url.Values) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, target, "application/x-www-form-urlencoded", v.Encode())
}

func (h *harness) json(method, target string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	return h.do(method, target, "application/json", string(b))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", out, err, w.Body.String())
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("error body = %+v, want code %q", er, code)
	}
}

//
// Webhook
//

func TestWebhook_ParsesFormAndAnswersTwiML(t *testing.T) {
	h := newHarness(t)
	w := h.form("/webhook/whatsapp", url.Values{
		"MessageSid": {" SM123 "},
		"From":       {"whatsapp:+1 (555) 123-4567"},
		"To":         {"whatsapp:+14155238886"},
		"Body":       {"hello"},
		"NumMedia":   {"2"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != messaging.TwiMLContentType {
		t.Fatalf("content-type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<Response><Message>Hi there!</Message></Response>") {
		t.Fatalf("body = %s", w.Body.String())
	}
	got := h.pipeline.got[0]
	want := repo.Inbound{MessageSID: "SM123", From: "whatsapp:+15551234567", To: "whatsapp:+14155238886", Body: "hello", NumMedia: 2}
	if got != want {
		t.Fatalf("inbound = %+v, want %+v", got, want)
	}
}

func TestWebhook_MessageIdentifierAliasAndRawSender(t *testing.T) {
	h := newHarness(t)
	h.form("/webhook/whatsapp", url.Values{
		"MessageIdentifier": {"MI-9"},
		"From":              {"not-a-number"},
		"Body":              {"hi"},
		"NumMedia":          {"x"},
	})
	got := h.pipeline.got[0]
	if got.MessageSID != "MI-9" || got.From != "not-a-number" || got.NumMedia != 0 {
		t.Fatalf("inbound = %+v", got)
	}
}

func TestWebhook_EmptyReplyRendersEmptyResponse(t *testing.T) {
	h := newHarness(t)
	h.pipeline.res = services.HandleResult{}
	w := h.form("/webhook/whatsapp", url.Values{"From": {"whatsapp:+1555"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestStatusCallback_CountsAndAnswersEmpty(t *testing.T) {
	h := newHarness(t)
	m := metrics.Registry("handlers_test")
	baseDelivered := testutil.ToFloat64(m.StatusCallbacks.WithLabelValues("delivered"))
	baseOther := testutil.ToFloat64(m.StatusCallbacks.WithLabelValues("other"))

	w := h.form("/webhook/whatsapp/status", url.Values{"MessageSid": {"SM1"}, "MessageStatus": {"Delivered"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	h.form("/webhook/whatsapp/status", url.Values{"MessageSid": {"SM2"}, "MessageStatus": {"weird-status"}, "ErrorCode": {"63016"}})

	if got := testutil.ToFloat64(m.StatusCallbacks.WithLabelValues("delivered")); got != baseDelivered+1 {
		t.Fatalf("delivered = %v, want %v", got, baseDelivered+1)
	}
	if got := testutil.ToFloat64(m.StatusCallbacks.WithLabelValues("other")); got != baseOther+1 {
		t.Fatalf("other = %v, want %v", got, baseOther+1)
	}
}

func TestTestWebhook_DefaultsAndValidation(t *testing.T) {
	h := newHarness(t)

	w := h.json(http.MethodPost, "/test/webhook", map[string]string{"message_sid": "T1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	res := decode[services.HandleResult](t, w)
	if res.MessageSID != "T1" || res.Reply != "Hi there!" {
		t.Fatalf("result = %+v", res)
	}
	got := h.pipeline.got[0]
	if got.From != defaultTestFrom || got.Body != defaultTestQuestion || got.To != messaging.DefaultFromNumber {
		t.Fatalf("inbound = %+v", got)
	}

	expectError(t, h.json(http.MethodPost, "/test/webhook", map[string]string{"from": "abc!"}), http.StatusBadRequest, ErrCodeInvalidAddress)
	expectError(t, h.do(http.MethodPost, "/test/webhook", "application/json", "{"), http.StatusBadRequest, ErrCodeBadRequest)
}

//
// Sales
//

func TestBestSelling_ClampsAndUsesMerchant(t *testing.T) {
	h := newHarness(t)
	cat := "Coffee"
	h.sales.items = []domain.CacheEntry{{ItemID: "A", ItemName: "Latte", Category: &cat, QuantitySold: 3, TotalRevenue: decimal.RequireFromString("13.50")}}

	w := h.do(http.MethodGet, "/sales/best-selling?limit=500&category=%20coffee%20", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[BestSellingResponse](t, w)
	if body.MerchantID != "M1" || body.Count != 1 || body.Category != "coffee" {
		t.Fatalf("body = %+v", body)
	}
	if h.sales.gotLimit != maxBestSellingLimit || h.sales.gotCategory != "coffee" {
		t.Fatalf("limit=%d category=%q", h.sales.gotLimit, h.sales.gotCategory)
	}

	h.do(http.MethodGet, "/sales/best-selling?merchant_id=M2&limit=0", "", "")
	if h.sales.gotMerchant != "M2" || h.sales.gotLimit != 1 {
		t.Fatalf("merchant=%q limit=%d", h.sales.gotMerchant, h.sales.gotLimit)
	}

	h.do(http.MethodGet, "/sales/best-selling", "", "")
	if h.sales.gotLimit != 10 {
		t.Fatalf("default limit = %d", h.sales.gotLimit)
	}

	h.sales.listErr = errors.New("db")
	expectError(t, h.do(http.MethodGet, "/sales/best-selling", "", ""), http.StatusInternalServerError, ErrCodeListFailed)
}

func TestRefreshSales_MapsErrors(t *testing.T) {
	h := newHarness(t)
	h.sales.refreshRes = refresh.Result{MerchantID: "M1", OrdersProcessed: 4, ItemsUpdated: 2}

	w := h.do(http.MethodPost, "/sales/refresh?days=3", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if res := decode[refresh.Result](t, w); res.ItemsUpdated != 2 || h.sales.gotDays != 3 {
		t.Fatalf("res = %+v days=%d", res, h.sales.gotDays)
	}

	expectError(t, h.do(http.MethodPost, "/sales/refresh?days=-1", "", ""), http.StatusBadRequest, ErrCodeBadRequest)

	h.sales.refreshErr = &refresh.UpstreamFetchError{Op: "orders", Err: errors.New("503")}
	expectError(t, h.do(http.MethodPost, "/sales/refresh", "", ""), http.StatusBadGateway, ErrCodeUpstreamUnavailable)

	h.sales.refreshErr = fmt.Errorf("publish: %w", repo.ErrPersistence)
	expectError(t, h.do(http.MethodPost, "/sales/refresh", "", ""), http.StatusInternalServerError, ErrCodeRefreshFailed)
}

func TestCacheStatusAndTrends(t *testing.T) {
	h := newHarness(t)
	h.sales.status = &services.CacheStatus{MerchantID: "M1", Fresh: true, FreshFor: "24h0m0s"}

	w := h.do(http.MethodGet, "/sales/cache-status", "", "")
	if st := decode[services.CacheStatus](t, w); !st.Fresh || st.MerchantID != "M1" {
		t.Fatalf("status = %+v", st)
	}

	h.sales.status = nil
	expectError(t, h.do(http.MethodGet, "/sales/cache-status", "", ""), http.StatusInternalServerError, ErrCodeInternal)

	w = h.do(http.MethodGet, "/sales/trends?question=pastries", "", "")
	tr := decode[TrendsResponse](t, w)
	if tr.Analysis != "Sales Analysis for M1" || h.trends.question != "pastries" {
		t.Fatalf("trends = %+v", tr)
	}
}

//
// Messages, scheduler, outbound
//

func TestListMessages_Pagination(t *testing.T) {
	h := newHarness(t)
	h.history.recs = []domain.MessageRecord{{MessageSID: "SM1"}, {MessageSID: "SM2"}}
	h.history.total = 45

	w := h.do(http.MethodGet, "/messages?page=2&page_size=500", "", "")
	body := decode[ListMessagesResponse](t, w)
	if h.history.gotPage != 2 || h.history.gotSize != 100 {
		t.Fatalf("page=%d size=%d", h.history.gotPage, h.history.gotSize)
	}
	if body.Pagination.TotalPages != 1 || body.Pagination.HasNext {
		t.Fatalf("pagination = %+v", body.Pagination)
	}

	w = h.do(http.MethodGet, "/messages?page=0&page_size=20", "", "")
	body = decode[ListMessagesResponse](t, w)
	if body.Pagination.Page != 1 || body.Pagination.TotalPages != 3 || !body.Pagination.HasNext {
		t.Fatalf("pagination = %+v", body.Pagination)
	}

	h.history.err = errors.New("db")
	expectError(t, h.do(http.MethodGet, "/messages", "", ""), http.StatusInternalServerError, ErrCodeListFailed)
}

func TestGetMessage(t *testing.T) {
	h := newHarness(t)
	h.history.recs = []domain.MessageRecord{{MessageSID: "SM1", Body: "hi"}}

	w := h.do(http.MethodGet, "/messages/SM1", "", "")
	if rec := decode[domain.MessageRecord](t, w); rec.Body != "hi" {
		t.Fatalf("rec = %+v", rec)
	}
	expectError(t, h.do(http.MethodGet, "/messages/NOPE", "", ""), http.StatusNotFound, ErrCodeNotFound)
}

func TestScheduler_StatusAndRefresh(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()
	h.sched.jobs = []scheduler.JobStatus{{ID: refresh.DailyJobID, Trigger: "daily 02:00 UTC", LastRun: &now, Runs: 1}}

	w := h.do(http.MethodGet, "/scheduler/status", "", "")
	st := decode[SchedulerStatusResponse](t, w)
	if !st.Running || len(st.Jobs) != 1 {
		t.Fatalf("status = %+v", st)
	}

	w = h.do(http.MethodPost, "/scheduler/refresh", "", "")
	if js := decode[scheduler.JobStatus](t, w); js.ID != refresh.DailyJobID || js.Runs != 1 {
		t.Fatalf("job = %+v", js)
	}
	if len(h.sched.ran) != 1 || h.sched.ran[0] != refresh.DailyJobID {
		t.Fatalf("ran = %v", h.sched.ran)
	}

	h.sched.runErr = scheduler.ErrUnknownJob
	expectError(t, h.do(http.MethodPost, "/scheduler/refresh", "", ""), http.StatusNotFound, ErrCodeUnknownJob)
	h.sched.runErr = errors.New("upstream")
	expectError(t, h.do(http.MethodPost, "/scheduler/refresh", "", ""), http.StatusBadGateway, ErrCodeRefreshFailed)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)

	w := h.json(http.MethodPost, "/whatsapp/send", SendMessageRequest{To: " +15551234567 ", Message: "hello", MediaURL: " https://x/y.png "})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if res := decode[messaging.SendResult](t, w); !res.Mock || res.MessageID != "MOCK_1" {
		t.Fatalf("res = %+v", res)
	}
	if h.out.to != "+15551234567" || h.out.media != "https://x/y.png" {
		t.Fatalf("to=%q media=%q", h.out.to, h.out.media)
	}

	expectError(t, h.json(http.MethodPost, "/whatsapp/send", map[string]string{"message": "x"}), http.StatusBadRequest, ErrCodeBadRequest)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: abc", messaging.ErrInvalidAddress), http.StatusBadRequest, ErrCodeInvalidAddress},
		{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
		{errors.New("twilio 500"), http.StatusBadGateway, ErrCodeSendFailed},
	}
	for _, tt := range tests {
		h.out.err = tt.err
		expectError(t, h.json(http.MethodPost, "/whatsapp/send", SendMessageRequest{To: "+1555", Message: "x"}), tt.status, tt.code)
	}
}

func TestSendSalesReport(t *testing.T) {
	h := newHarness(t)

	w := h.json(http.MethodPost, "/whatsapp/send-sales-report", SendReportRequest{To: "+15551234567"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	body := decode[SendReportResponse](t, w)
	if body.ReportType != messaging.ReportSalesSummary || body.MessageID != "MOCK_2" || !strings.Contains(body.Text, "M1") {
		t.Fatalf("body = %+v", body)
	}

	h.out.err = messaging.ErrUnknownReport
	expectError(t, h.json(http.MethodPost, "/whatsapp/send-sales-report", SendReportRequest{To: "+1555", ReportType: "weekly"}), http.StatusBadRequest, ErrCodeUnknownReport)
	if h.out.kind != "weekly" {
		t.Fatalf("kind = %q", h.out.kind)
	}
}
