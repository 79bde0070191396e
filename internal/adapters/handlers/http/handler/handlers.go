package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
	jsonresponse "ohlcvflow/pkg/JSONResponse"

	"github.com/gin-gonic/gin"
)

const (
	DefaultTimeout = 30 * time.Second
	noDataMessage  = "no data"
)

type Limits struct {
	Default int
	Max     int
}

type ohlcvQuery struct {
	Symbol string `form:"symbol"`
	Limit  *int   `form:"limit" binding:"omitempty,gt=0"`
}

type OHLCVHandler struct {
	query    port.QueryService
	latest   port.LatestCache
	store    port.RecordStore
	registry port.ConnectorRegistry
	limits   Limits
	logger   *slog.Logger
}

// NewOHLCVHandler builds the read-side handlers. latest may be nil, in which
// case the latest endpoint reports no data.
func NewOHLCVHandler(
	logger *slog.Logger,
	query port.QueryService,
	latest port.LatestCache,
	store port.RecordStore,
	registry port.ConnectorRegistry,
	limits Limits,
) *OHLCVHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.Default <= 0 {
		limits.Default = 100
	}
	if limits.Max < limits.Default {
		limits.Max = limits.Default
	}

	return &OHLCVHandler{
		query:    query,
		latest:   latest,
		store:    store,
		registry: registry,
		limits:   limits,
		logger:   logger,
	}
}

// GetOHLCV handles GET /futures/ohlcv?symbol=&limit=.
func (h *OHLCVHandler) GetOHLCV(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	var q ohlcvQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		jsonresponse.WriteError(c, jsonresponse.WrapError(
			err,
			"limit must be a positive integer",
			http.StatusBadRequest,
		))
		return
	}

	limit := h.limits.Default
	if q.Limit != nil {
		limit = min(*q.Limit, h.limits.Max)
	}

	records, err := h.query.Query(ctx, domain.Filter{Symbol: strings.TrimSpace(q.Symbol)}, limit)
	switch {
	case errors.Is(err, domain.ErrNoData):
		jsonresponse.WriteError(c, jsonresponse.WrapError(err, noDataMessage, http.StatusNotFound))
		return
	case err != nil:
		jsonresponse.WriteError(c, err)
		return
	}

	jsonresponse.WriteResponse(c, http.StatusOK, records)
}

// GetLatest handles GET /ohlcv/latest/:symbol?exchange=. With an exchange it
// returns that exchange's snapshot; without one it returns every exchange's
// snapshot for the symbol as a list.
func (h *OHLCVHandler) GetLatest(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		jsonresponse.WriteError(c, jsonresponse.WrapError(
			jsonresponse.ErrInvalidInput,
			"Symbol must be provided",
			http.StatusBadRequest,
		))
		return
	}

	var exchange domain.Exchange
	if raw := c.Query("exchange"); raw != "" {
		ex, err := domain.ParseExchange(raw)
		if err != nil {
			jsonresponse.WriteError(c, jsonresponse.WrapError(err, "unknown exchange", http.StatusBadRequest))
			return
		}
		exchange = ex
	}

	if h.latest == nil {
		jsonresponse.WriteError(c, jsonresponse.WrapError(jsonresponse.ErrNotFound, noDataMessage, http.StatusNotFound))
		return
	}

	if exchange == "" {
		records, err := h.latest.GetLatestBySymbol(c.Request.Context(), symbol)
		if err != nil {
			jsonresponse.WriteError(c, err)
			return
		}
		if len(records) == 0 {
			jsonresponse.WriteError(c, jsonresponse.WrapError(jsonresponse.ErrNotFound, noDataMessage, http.StatusNotFound))
			return
		}

		jsonresponse.WriteResponse(c, http.StatusOK, records)
		h.logger.Debug("served latest records",
			slog.String("symbol", symbol),
			slog.Int("exchanges", len(records)))
		return
	}

	record, err := h.latest.GetLatest(c.Request.Context(), exchange, symbol)
	if err != nil {
		jsonresponse.WriteError(c, err)
		return
	}
	if record == nil {
		jsonresponse.WriteError(c, jsonresponse.WrapError(jsonresponse.ErrNotFound, noDataMessage, http.StatusNotFound))
		return
	}

	jsonresponse.WriteResponse(c, http.StatusOK, record)
	h.logger.Debug("served latest record",
		slog.String("symbol", symbol),
		slog.String("exchange", record.Exchange.String()),
		slog.String("close", record.Close))
}

// HealthCheck handles GET /health. A disabled connector or an unreachable
// dependency makes the status "degraded"; the code stays 200.
func (h *OHLCVHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := domain.HealthResponse{Status: "ok", Redis: "disabled", Store: "unknown"}

	if h.store != nil {
		resp.Store = h.store.Ping(ctx)
	}
	if h.latest != nil {
		resp.Redis = h.latest.Ping(ctx)
	}
	if h.registry != nil {
		resp.Connectors = h.registry.States()
		resp.Ingest = h.registry.Stats()
	}

	if resp.Store != "up" || strings.HasPrefix(resp.Redis, "down") {
		resp.Status = "degraded"
	}
	for _, st := range resp.Connectors {
		if st.Phase == domain.PhaseDisabled {
			resp.Status = "degraded"
		}
	}

	jsonresponse.WriteResponse(c, http.StatusOK, resp)
}
