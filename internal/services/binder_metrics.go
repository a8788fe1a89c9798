package services

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-binder/internal/models"
)

// RecalculateBinderMetrics recomputes every derived field of b from its slots and returns the result.
// It never mutates b. Totals are rebuilt from scratch on every call; the rounded total is appended to
// the value history (replacing a point with the same timestamp, keeping the newest
// MaxValueHistoryPoints) and HourlyChange compares the two most recent points.
//
// HourlyChange is a point-to-point change between recalculations, not a wall-clock hour.
func RecalculateBinderMetrics(b models.Binder, now time.Time) models.Binder {
	out := b.Clone()

	totalCards := 0
	totalValue := 0.0
	for _, sheet := range out.Sheets {
		for _, slot := range sheet.Slots {
			totalCards += models.SlotQuantity(slot)
			totalValue += models.SlotValue(slot)
		}
	}

	rounded := decimal.NewFromFloat(totalValue).Round(0).InexactFloat64()
	out.TotalCards = totalCards
	out.TotalValue = rounded
	out.ValueHistory = appendValuePoint(out.ValueHistory, models.BinderValuePoint{Timestamp: now, Value: rounded})
	out.HourlyChange = hourlyChange(out.ValueHistory)
	out.UpdatedAt = now
	return out
}

func appendValuePoint(history []models.BinderValuePoint, point models.BinderValuePoint) []models.BinderValuePoint {
	kept := make([]models.BinderValuePoint, 0, len(history)+1)
	for _, p := range history {
		if p.Timestamp.Equal(point.Timestamp) {
			continue
		}
		kept = append(kept, p)
	}
	kept = append(kept, point)

	if len(kept) > models.MaxValueHistoryPoints {
		kept = kept[len(kept)-models.MaxValueHistoryPoints:]
	}
	return kept
}

func hourlyChange(history []models.BinderValuePoint) float64 {
	if len(history) < 2 {
		return 0
	}
	latest := history[len(history)-1].Value
	prior := history[len(history)-2].Value
	if prior == 0 {
		return 0
	}

	change := (latest - prior) / prior * 100
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return 0
	}
	return decimal.NewFromFloat(change).Round(2).InexactFloat64()
}
