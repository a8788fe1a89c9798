package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-binder/internal/models"
	"github.com/codyseavey/tcg-binder/internal/services"
)

// maxBatchQuotes bounds one batch request; larger lists should go through binder refreshes
const maxBatchQuotes = 200

type PriceHandler struct {
	quoteService *services.PriceQuoteService
	enricher     *services.PriceEnricher
	priceWorker  *services.PriceWorker
}

func NewPriceHandler(quotes *services.PriceQuoteService, enricher *services.PriceEnricher, priceWorker *services.PriceWorker) *PriceHandler {
	return &PriceHandler{
		quoteService: quotes,
		enricher:     enricher,
		priceWorker:  priceWorker,
	}
}

type batchQuoteRequest struct {
	Requests []models.PricingRequest `json:"requests" binding:"required,dive"`
}

// GetQuote resolves one printing: GET /api/prices/quote?set=neo&number=1&finish=foil
func (h *PriceHandler) GetQuote(c *gin.Context) {
	setCode := c.Query("set")
	number := c.Query("number")
	if setCode == "" || number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "set and number are required"})
		return
	}

	req := models.PricingRequest{
		SetCode:         setCode,
		CollectorNumber: number,
		Finish:          models.NormalizeFinish(c.Query("finish")),
	}
	c.JSON(http.StatusOK, h.quoteService.Resolve(c.Request.Context(), req))
}

// GetQuotes enriches a batch of pricing requests; the response is keyed by "SET:number:finish"
func (h *PriceHandler) GetQuotes(c *gin.Context) {
	var body batchQuoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Requests) > maxBatchQuotes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many requests in one batch (max 200)"})
		return
	}

	quotes := h.enricher.Enrich(c.Request.Context(), body.Requests)
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// GetPriceStatus returns the background worker status
func (h *PriceHandler) GetPriceStatus(c *gin.Context) {
	if h.priceWorker == nil {
		c.JSON(http.StatusOK, gin.H{"cached_quotes": h.quoteService.CacheSize()})
		return
	}
	c.JSON(http.StatusOK, h.priceWorker.GetStatus())
}
