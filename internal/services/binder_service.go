package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/metrics"
	"github.com/codyseavey/tcg-binder/internal/models"
)

var (
	ErrBinderNotFound  = errors.New("binder not found")
	ErrInvalidBinder   = errors.New("invalid binder")
	ErrSlotOutOfRange  = errors.New("slot out of range")
	ErrInvalidVariant  = errors.New("invalid variant")
	ErrVariantNotFound = errors.New("variant not found")
)

// BinderService owns the persisted binders. Every mutation goes through UpdateBinder, which
// applies the change and the metrics recalculation in one transaction.
type BinderService struct {
	db       *gorm.DB
	enricher *PriceEnricher
	now      func() time.Time
}

func NewBinderService(db *gorm.DB, enricher *PriceEnricher) *BinderService {
	return &BinderService{
		db:       db,
		enricher: enricher,
		now:      time.Now,
	}
}

// CreateBinder stores a new empty binder
func (s *BinderService) CreateBinder(ctx context.Context, name string, focusTags []string, capacity int) (*models.Binder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("binder name is required: %w", ErrInvalidBinder)
	}
	binder := CreateBinderWithCapacity(name, focusTags, capacity)
	if err := s.db.WithContext(ctx).Create(&binder).Error; err != nil {
		return nil, fmt.Errorf("failed to create binder: %w", err)
	}
	logging.Sugar.Infof("Binder service: created binder %s (%d sheets)", binder.ID, len(binder.Sheets))
	return &binder, nil
}

// GetBinder loads one binder
func (s *BinderService) GetBinder(ctx context.Context, id string) (*models.Binder, error) {
	return loadBinder(s.db.WithContext(ctx), id)
}

// ListBinders returns summaries, most recently updated first
func (s *BinderService) ListBinders(ctx context.Context) ([]models.BinderSummary, error) {
	var binders []models.Binder
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&binders).Error; err != nil {
		return nil, fmt.Errorf("failed to list binders: %w", err)
	}
	summaries := make([]models.BinderSummary, len(binders))
	for i := range binders {
		summaries[i] = binders[i].Summary()
	}
	return summaries, nil
}

// StaleBinderIDs returns up to limit binder IDs, least recently updated first
func (s *BinderService) StaleBinderIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Binder{}).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale binders: %w", err)
	}
	return ids, nil
}

// DeleteBinder removes a binder
func (s *BinderService) DeleteBinder(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Binder{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete binder %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBinderNotFound
	}
	metrics.ForgetBinder(id)
	return nil
}

// UpdateBinder loads the binder, applies mutate, recalculates its metrics and saves it,
// all inside one transaction. If mutate fails nothing is written.
func (s *BinderService) UpdateBinder(ctx context.Context, id string, mutate func(b *models.Binder) error) (*models.Binder, error) {
	var updated models.Binder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		binder, err := loadBinder(tx, id)
		if err != nil {
			return err
		}
		if err := mutate(binder); err != nil {
			return err
		}

		updated = RecalculateBinderMetrics(*binder, s.now())
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("failed to save binder %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveBinder(updated.ID, updated.TotalCards, updated.TotalValue)
	return &updated, nil
}

// UpsertVariant adds or replaces a variant in the addressed slot and recalculates the binder
func (s *BinderService) UpsertVariant(ctx context.Context, binderID string, sheetIndex, slotIndex int, variant models.BinderCardVariant) (*models.Binder, error) {
	return s.UpdateBinder(ctx, binderID, func(b *models.Binder) error {
		return PlaceVariant(b, sheetIndex, slotIndex, variant, s.now())
	})
}

// RemoveVariant deletes a variant from the addressed slot and recalculates the binder
func (s *BinderService) RemoveVariant(ctx context.Context, binderID string, sheetIndex, slotIndex int, variantID string) (*models.Binder, error) {
	return s.UpdateBinder(ctx, binderID, func(b *models.Binder) error {
		slot := b.Slot(sheetIndex, slotIndex)
		if slot == nil {
			return fmt.Errorf("sheet %d slot %d: %w", sheetIndex, slotIndex, ErrSlotOutOfRange)
		}
		for i, v := range slot.Variants {
			if v.ID == variantID {
				slot.Variants = append(slot.Variants[:i], slot.Variants[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
	})
}

// RefreshPrices quotes every variant in the binder, merges the quotes and recalculates.
// Catalog calls happen outside the database transaction.
func (s *BinderService) RefreshPrices(ctx context.Context, binderID string) (*models.Binder, map[models.PriceQuoteKey]models.PriceQuoteResult, error) {
	binder, err := s.GetBinder(ctx, binderID)
	if err != nil {
		return nil, nil, err
	}

	quotes := s.enricher.Enrich(ctx, VariantPricingRequests(binder.Variants()))

	// Persist with a fresh context so a caller cancelling mid-batch still keeps the quotes it paid for
	updated, err := s.UpdateBinder(context.WithoutCancel(ctx), binderID, func(b *models.Binder) error {
		priced := ApplyQuotes(b, quotes, s.now())
		logging.Sugar.Infof("Binder service: refreshed %d variant prices in binder %s", priced, binderID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, quotes, nil
}

// PlaceVariant validates variant, fills defaults and adds it to the slot, replacing an existing
// variant with the same ID or the same printing, finish and condition.
func PlaceVariant(b *models.Binder, sheetIndex, slotIndex int, variant models.BinderCardVariant, now time.Time) error {
	slot := b.Slot(sheetIndex, slotIndex)
	if slot == nil {
		return fmt.Errorf("sheet %d slot %d: %w", sheetIndex, slotIndex, ErrSlotOutOfRange)
	}
	if variant.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", ErrInvalidVariant)
	}
	if strings.TrimSpace(variant.SetCode) == "" || strings.TrimSpace(variant.CollectorNumber) == "" {
		return fmt.Errorf("set code and collector number are required: %w", ErrInvalidVariant)
	}

	variant.Finish = models.NormalizeFinish(string(variant.Finish))
	if variant.Condition == "" {
		variant.Condition = models.ConditionNearMint
	}
	if !variant.Condition.IsValid() {
		return fmt.Errorf("unknown condition %q: %w", variant.Condition, ErrInvalidVariant)
	}
	if variant.Acquisition.Source == "" {
		variant.Acquisition.Source = models.AcquisitionOther
	}
	if variant.Acquisition.AcquiredAt.IsZero() {
		variant.Acquisition.AcquiredAt = now
	}

	key := variant.PricingRequest().Key()
	for i, existing := range slot.Variants {
		sameID := variant.ID != "" && existing.ID == variant.ID
		samePrinting := existing.PricingRequest().Key() == key && existing.Condition == variant.Condition
		if !sameID && !samePrinting {
			continue
		}
		variant.ID = existing.ID
		// A replacement without a price keeps the last known valuation
		if variant.Pricing.CurrentValue == nil && variant.Pricing.LastUpdated == nil {
			variant.Pricing = existing.Pricing
		}
		if variant.Scan == nil {
			variant.Scan = existing.Scan
		}
		slot.Variants[i] = variant
		return nil
	}

	if variant.ID == "" {
		variant.ID = uuid.NewString()
	}
	slot.Variants = append(slot.Variants, variant)
	return nil
}

// ApplyQuotes merges quotes into the matching variants' pricing snapshots and returns how many
// variants received a price. A failed or priceless quote only updates LastUpdated and LastError;
// cancelled quotes are ignored.
func ApplyQuotes(b *models.Binder, quotes map[models.PriceQuoteKey]models.PriceQuoteResult, now time.Time) int {
	priced := 0
	for i := range b.Sheets {
		for j := range b.Sheets[i].Slots {
			variants := b.Sheets[i].Slots[j].Variants
			for k := range variants {
				v := &variants[k]
				quote, ok := quotes[v.PricingRequest().Key()]
				if !ok || quote.Status == models.QuoteStatusCancelled {
					continue
				}

				updatedAt := now
				v.Pricing.LastUpdated = &updatedAt
				if !quote.HasPrice() {
					v.Pricing.LastError = quote.Error
					continue
				}

				price := *quote.Price
				v.Pricing.CurrentValue = &price
				v.Pricing.LastError = ""
				if v.Name == "" && quote.Name != nil {
					v.Name = *quote.Name
				}
				priced++
			}
		}
	}
	return priced
}

func loadBinder(db *gorm.DB, id string) (*models.Binder, error) {
	var binder models.Binder
	if err := db.First(&binder, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBinderNotFound
		}
		return nil, fmt.Errorf("failed to load binder %s: %w", id, err)
	}
	return &binder, nil
}
