package http

import (
	"log/slog"
	"net/http"

	"ohlcvflow/internal/adapters/handlers/http/handler"

	"github.com/gin-gonic/gin"
)

// NewServer builds the router. live serves the websocket push endpoint and
// may be nil.
func NewServer(
	logger *slog.Logger,
	ohlcvHandler *handler.OHLCVHandler,
	live gin.HandlerFunc,
) http.Handler {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	addRoutes(router, ohlcvHandler, live)

	return router
}
