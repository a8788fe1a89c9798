package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/models"
	"github.com/codyseavey/tcg-binder/internal/services"
)

// Maximum quantity allowed per variant
const maxQuantity = 9999

type BinderHandler struct {
	binderService *services.BinderService
	scanStorage   *services.ScanStorage
	priceWorker   *services.PriceWorker
}

func NewBinderHandler(binders *services.BinderService, scans *services.ScanStorage, priceWorker *services.PriceWorker) *BinderHandler {
	return &BinderHandler{
		binderService: binders,
		scanStorage:   scans,
		priceWorker:   priceWorker,
	}
}

func (h *BinderHandler) ListBinders(c *gin.Context) {
	binders, err := h.binderService.ListBinders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binders)
}

func (h *BinderHandler) CreateBinder(c *gin.Context) {
	var req models.CreateBinderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Capacity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must not be negative"})
		return
	}

	binder, err := h.binderService.CreateBinder(c.Request.Context(), req.Name, req.FocusTags, req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, binder)
}

func (h *BinderHandler) GetBinder(c *gin.Context) {
	binder, err := h.binderService.GetBinder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binder)
}

func (h *BinderHandler) DeleteBinder(c *gin.Context) {
	binderID := c.Param("id")
	if err := h.binderService.DeleteBinder(c.Request.Context(), binderID); err != nil {
		respondError(c, err)
		return
	}
	if h.scanStorage != nil {
		if err := h.scanStorage.RemoveBinderScans(binderID); err != nil {
			logging.Sugar.Warnf("Binder handler: %v", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// UpsertVariant adds a variant to a slot, or replaces the matching one
func (h *BinderHandler) UpsertVariant(c *gin.Context) {
	sheetIndex, slotIndex, ok := slotAddress(c)
	if !ok {
		return
	}

	var req models.UpsertVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if quantity > maxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
		return
	}

	variant := models.BinderCardVariant{
		ID:              req.ID,
		PrintingID:      req.PrintingID,
		Name:            req.Name,
		SetCode:         req.SetCode,
		CollectorNumber: req.CollectorNumber,
		Finish:          req.Finish,
		Quantity:        quantity,
		Condition:       req.Condition,
		Acquisition: models.Acquisition{
			Source:    req.AcquisitionSrc,
			CostBasis: req.CostBasis,
		},
	}

	if req.ScannedImageData != "" && h.scanStorage != nil {
		imageData, err := base64.StdEncoding.DecodeString(req.ScannedImageData)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image data"})
			return
		}
		key := models.NewPriceQuoteKey(req.SetCode, req.CollectorNumber, string(req.Finish))
		ref, err := h.scanStorage.SaveScan(c.Param("id"), key, imageData)
		switch {
		case errors.Is(err, services.ErrUnsupportedImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			// The scan is optional; a storage failure still records the variant
			logging.Sugar.Warnf("Binder handler: could not store scan for %s #%s: %v", req.SetCode, req.CollectorNumber, err)
		default:
			source := req.ScanSource
			if source == "" {
				source = models.ScanSourceUpload
			}
			variant.Scan = &models.ScanRecord{
				ImageRef:   ref,
				CapturedAt: time.Now(),
				Source:     source,
			}
		}
	}

	binder, err := h.binderService.UpsertVariant(c.Request.Context(), c.Param("id"), sheetIndex, slotIndex, variant)
	if err != nil {
		if variant.Scan != nil {
			h.discardScan(c.Param("id"), variant.Scan.ImageRef, errors.Is(err, services.ErrBinderNotFound))
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binder)
}

// discardScan drops a scan whose variant was never recorded. An unknown binder loses its whole
// scan directory so stray uploads do not leave empty folders behind.
func (h *BinderHandler) discardScan(binderID, ref string, binderMissing bool) {
	var err error
	if binderMissing {
		err = h.scanStorage.RemoveBinderScans(binderID)
	} else {
		err = h.scanStorage.RemoveScan(ref)
	}
	if err != nil {
		logging.Sugar.Warnf("Binder handler: %v", err)
	}
}

func (h *BinderHandler) RemoveVariant(c *gin.Context) {
	sheetIndex, slotIndex, ok := slotAddress(c)
	if !ok {
		return
	}

	binder, err := h.binderService.RemoveVariant(c.Request.Context(), c.Param("id"), sheetIndex, slotIndex, c.Param("variantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binder)
}

// RefreshPrices re-quotes every variant in the binder. With ?queue=true the refresh is
// handed to the background worker instead and the queue position is returned.
func (h *BinderHandler) RefreshPrices(c *gin.Context) {
	binderID := c.Param("id")

	if c.Query("queue") == "true" && h.priceWorker != nil {
		if _, err := h.binderService.GetBinder(c.Request.Context(), binderID); err != nil {
			respondError(c, err)
			return
		}
		position := h.priceWorker.QueueRefresh(binderID)
		c.JSON(http.StatusAccepted, gin.H{
			"queued":         true,
			"queue_position": position,
		})
		return
	}

	binder, quotes, err := h.binderService.RefreshPrices(c.Request.Context(), binderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"binder": binder,
		"quotes": quotes,
	})
}

// slotAddress parses the :sheet and :slot path params, writing a 400 on failure
func slotAddress(c *gin.Context) (int, int, bool) {
	sheetIndex, err := strconv.Atoi(c.Param("sheet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sheet index"})
		return 0, 0, false
	}
	slotIndex, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot index"})
		return 0, 0, false
	}
	return sheetIndex, slotIndex, true
}
