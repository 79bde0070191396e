package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"ohlcvflow/internal/adapters/handlers/http/handler"
	"ohlcvflow/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type emptyQuery struct{}

func (emptyQuery) Query(context.Context, domain.Filter, int) ([]domain.Record, error) {
	return nil, domain.ErrNoData
}

func newTestServer() http.Handler {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewOHLCVHandler(logger, emptyQuery{}, nil, nil, nil, handler.Limits{Default: 100, Max: 1000})
	return NewServer(logger, h, nil)
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer()

	for _, path := range []string{"/futures/ohlcv", "/ohlcv"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path+"?symbol=BTCUSDT", nil))

		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.JSONEq(t, `{"error":"no data"}`, w.Body.String(), path)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "no live endpoint without a hub")
}

func TestServer_RequestID(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeaderKey, "abc-123")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeaderKey))
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/futures/ohlcv", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
