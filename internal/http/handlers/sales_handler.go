package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sales-assistant/internal/domain"
	"github.com/tbourn/go-sales-assistant/internal/intent"
	"github.com/tbourn/go-sales-assistant/internal/refresh"
	"github.com/tbourn/go-sales-assistant/internal/utils"
)

const maxBestSellingLimit = 100

// BestSellingResponse wraps the top items of the current period.
type BestSellingResponse struct {
	MerchantID string              `json:"merchant_id" example:"MERCHANT_001"`
	Category   string              `json:"category,omitempty" example:"Coffee"`
	Count      int                 `json:"count" example:"3"`
	Items      []domain.CacheEntry `json:"items"`
}

// TrendsResponse carries a trend narrative.
type TrendsResponse struct {
	MerchantID string `json:"merchant_id" example:"MERCHANT_001"`
	Question   string `json:"question,omitempty" example:"How are pastries doing?"`
	Analysis   string `json:"analysis"`
}

// BestSelling godoc
// @ID          bestSelling
// @Summary     Best-selling items
// @Description Returns the current period's items ordered by quantity sold. A stale cache is refreshed first; when that fails the previous period is served.
// @Tags        Sales
// @Produce     json
//
// @Param       merchant_id  query  string  false  "Merchant (defaults to the configured one)"
// @Param       limit        query  int     false  "Max items (1..100)"  default(10)
// @Param       category     query  string  false  "Category filter (case-insensitive)"  example(Coffee)
//
// @Success     200  {object}  handlers.BestSellingResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sales/best-selling [get]
func (h *Handlers) BestSelling(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), intent.DefaultLimit), 1, maxBestSellingLimit)
	category := strings.TrimSpace(c.Query("category"))
	merchant := h.merchant(c)

	items, err := h.deps.Sales.BestSelling(c.Request.Context(), merchant, limit, category)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to load sales data")
		return
	}
	ok(c, http.StatusOK, BestSellingResponse{
		MerchantID: merchant,
		Category:   category,
		Count:      len(items),
		Items:      items,
	})
}

// RefreshSales godoc
// @ID          refreshSales
// @Summary     Refresh the sales cache
// @Description Rebuilds the cache from the data source now. Concurrent requests share one refresh.
// @Tags        Sales
// @Produce     json
//
// @Param       merchant_id  query  string  false  "Merchant (defaults to the configured one)"
// @Param       days         query  int     false  "Lookback window in days"  default(7)
//
// @Success     200  {object}  refresh.Result
// @Failure     502  {object}  handlers.ErrorResponse  "Data source unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sales/refresh [post]
func (h *Handlers) RefreshSales(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), 0)
	if days < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "days must not be negative")
		return
	}
	res, err := h.deps.Sales.Refresh(c.Request.Context(), h.merchant(c), days)
	switch {
	case err == nil:
		ok(c, http.StatusOK, res)
	case errors.Is(err, refresh.ErrUpstreamFetch):
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "sales data source unavailable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, "refresh failed")
	}
}

// CacheStatus godoc
// @ID          cacheStatus
// @Summary     Sales cache status
// @Description Reports the cached period, its freshness and the last refresh attempt.
// @Tags        Sales
// @Produce     json
//
// @Param       merchant_id  query  string  false  "Merchant (defaults to the configured one)"
//
// @Success     200  {object}  services.CacheStatus
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sales/cache-status [get]
func (h *Handlers) CacheStatus(c *gin.Context) {
	st, err := h.deps.Sales.CacheStatus(c.Request.Context(), h.merchant(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read cache status")
		return
	}
	ok(c, http.StatusOK, st)
}

// Trends godoc
// @ID          salesTrends
// @Summary     Sales trend analysis
// @Description Summarizes the current period. Uses the text generator when configured and a deterministic summary otherwise.
// @Tags        Sales
// @Produce     json
//
// @Param       merchant_id  query  string  false  "Merchant (defaults to the configured one)"
// @Param       question     query  string  false  "Optional focus question"
//
// @Success     200  {object}  handlers.TrendsResponse
// @Router      /sales/trends [get]
func (h *Handlers) Trends(c *gin.Context) {
	merchant := h.merchant(c)
	q := strings.TrimSpace(c.Query("question"))
	ok(c, http.StatusOK, TrendsResponse{
		MerchantID: merchant,
		Question:   q,
		Analysis:   h.deps.Trends.AnalyzeTrends(c.Request.Context(), merchant, q),
	})
}
