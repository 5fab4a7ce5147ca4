package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/server/http/handlers"
	"github.com/ketovdk/fiscalgate/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.ReceiptFacade, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	receiptHandler := handlers.NewReceiptHandler(facade)
	settingsHandler := handlers.NewSettingsHandler(facade)

	engine.GET("/ping", settingsHandler.Ping)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKeyHash))
	api.POST("/receipts", receiptHandler.Fiscalize)
	api.POST("/receipts/manual", receiptHandler.Manual)
	api.GET("/receipts/:id", receiptHandler.Get)
	api.POST("/refunds", receiptHandler.Refund)
	api.POST("/refunds/manual", receiptHandler.ManualRefund)
	api.GET("/orders/:order/receipts", receiptHandler.List)
	api.GET("/settings", settingsHandler.Check)

	return engine
}
