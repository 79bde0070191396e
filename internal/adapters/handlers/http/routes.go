package http

import (
	"ohlcvflow/internal/adapters/handlers/http/handler"

	"github.com/gin-gonic/gin"
)

func addRoutes(router *gin.Engine, ohlcvHandler *handler.OHLCVHandler, live gin.HandlerFunc) {
	router.GET("/futures/ohlcv", ohlcvHandler.GetOHLCV)
	router.GET("/ohlcv", ohlcvHandler.GetOHLCV)
	router.GET("/ohlcv/latest/:symbol", ohlcvHandler.GetLatest)
	router.GET("/health", ohlcvHandler.HealthCheck)

	if live != nil {
		router.GET("/ws", live)
	}
}
