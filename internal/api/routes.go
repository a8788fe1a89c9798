package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tcg-binder/internal/api/handlers"
	"github.com/codyseavey/tcg-binder/internal/services"
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Services bundles what the HTTP layer needs; PriceWorker and Scans may be nil
type Services struct {
	Binders      *services.BinderService
	Quotes       *services.PriceQuoteService
	Enricher     *services.PriceEnricher
	PriceWorker  *services.PriceWorker
	Scans        *services.ScanStorage
}

func SetupRouter(corsOrigins []string, svc Services) *gin.Engine {
	router := gin.Default()
	router.Use(MetricsMiddleware())

	config := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		config.AllowOrigins = corsOrigins
	} else {
		config.AllowOrigins = defaultCORSOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	binderHandler := handlers.NewBinderHandler(svc.Binders, svc.Scans, svc.PriceWorker)
	priceHandler := handlers.NewPriceHandler(svc.Quotes, svc.Enricher, svc.PriceWorker)

	// Serve scanned images
	if svc.Scans != nil {
		router.Static("/images/scanned", svc.Scans.GetStorageDir())
	}

	api := router.Group("/api")
	{
		binders := api.Group("/binders")
		{
			binders.GET("", binderHandler.ListBinders)
			binders.POST("", binderHandler.CreateBinder)
			binders.GET("/:id", binderHandler.GetBinder)
			binders.DELETE("/:id", binderHandler.DeleteBinder)
			binders.POST("/:id/refresh-prices", binderHandler.RefreshPrices)
			binders.PUT("/:id/sheets/:sheet/slots/:slot/variants", binderHandler.UpsertVariant)
			binders.DELETE("/:id/sheets/:sheet/slots/:slot/variants/:variantId", binderHandler.RemoveVariant)
		}

		prices := api.Group("/prices")
		{
			prices.GET("/quote", priceHandler.GetQuote)
			prices.POST("/quotes", priceHandler.GetQuotes)
			prices.GET("/status", priceHandler.GetPriceStatus)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
