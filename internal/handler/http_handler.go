package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/kvachev/fx-rate-service/internal/provider"
	"github.com/kvachev/fx-rate-service/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = provider.DateKey

// HTTPHandler maps the HTTP surface onto the conversion service.
type HTTPHandler struct {
	conversions *service.ConversionService
	logger      *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(conversions *service.ConversionService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		conversions: conversions,
		logger:      logger,
	}
}

// SetupRoutes configures the HTTP routes.
func (h *HTTPHandler) SetupRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	api := r.Group("/api")
	{
		api.GET("/convert", h.Convert)

		rates := api.Group("/rates")
		{
			rates.GET("/latest", h.LatestRates)
			rates.GET("/historical/:date", h.HistoricalRates)
			rates.GET("/timeseries", h.TimeSeries)
		}

		currencies := api.Group("/currencies")
		{
			currencies.GET("", h.Currencies)
			currencies.GET("/:code", h.CurrencySupport)
		}
	}
}

// Health returns the liveness status.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fx-rate-service",
	})
}

// Ready returns the readiness status, checking the cache store.
func (h *HTTPHandler) Ready(c *gin.Context) {
	if err := h.conversions.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "fx-rate-service",
	})
}

// Convert converts an amount between two currencies.
func (h *HTTPHandler) Convert(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	rawAmount := c.Query("amount")

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount", "code": string(model.KindInvalidAmount)})
		return
	}

	result, err := h.conversions.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LatestRates returns the latest rate table for a base currency.
func (h *HTTPHandler) LatestRates(c *gin.Context) {
	base := c.Query("base")
	symbols := splitSymbols(c.Query("symbols"))

	table, err := h.conversions.GetLatestRates(c.Request.Context(), base, symbols)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base":  model.Normalize(base),
		"rates": table,
	})
}

// HistoricalRates returns the rate table for a base currency on a past day.
func (h *HTTPHandler) HistoricalRates(c *gin.Context) {
	date, err := time.Parse(dateLayout, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	base := c.Query("base")
	symbols := splitSymbols(c.Query("symbols"))

	table, err := h.conversions.GetHistoricalRates(c.Request.Context(), date, base, symbols)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base":  model.Normalize(base),
		"date":  date.Format(dateLayout),
		"rates": table,
	})
}

// TimeSeries returns day-keyed rate tables for a date range. Days the
// upstream could not serve are absent from the result.
func (h *HTTPHandler) TimeSeries(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, expected YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end date before start date"})
		return
	}
	base := c.Query("base")
	symbols := splitSymbols(c.Query("symbols"))

	series, err := h.conversions.GetTimeSeries(c.Request.Context(), start, end, base, symbols)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base":  model.Normalize(base),
		"start": start.Format(dateLayout),
		"end":   end.Format(dateLayout),
		"rates": series,
	})
}

// Currencies describes the currency configuration.
func (h *HTTPHandler) Currencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"home":     h.conversions.HomeCurrency(),
		"excluded": h.conversions.ExcludedCurrencies(),
	})
}

// CurrencySupport reports whether a single currency is usable.
func (h *HTTPHandler) CurrencySupport(c *gin.Context) {
	raw := c.Param("code")
	resp := gin.H{
		"code":      model.Normalize(raw),
		"supported": true,
	}
	if err := h.conversions.CheckSupport(raw); err != nil {
		resp["supported"] = false
		resp["reason"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps domain error kinds onto HTTP statuses.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	kind := model.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case model.KindInvalidCurrency, model.KindInvalidAmount:
		status = http.StatusBadRequest
	case model.KindRateUnavailable:
		status = http.StatusNotFound
	case model.KindTransientUpstream, model.KindCircuitOpen:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  string(kind),
	})
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
