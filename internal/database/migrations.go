package database

import (
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/models"
)

// RunMigrations runs data fixes after schema changes. Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	return repairBinderLayouts(db)
}

// repairBinderLayouts restores the sheet/slot scaffold of stored binders and trims value
// histories written before the history cap existed
func repairBinderLayouts(db *gorm.DB) error {
	var binders []models.Binder
	if err := db.Find(&binders).Error; err != nil {
		return err
	}

	repaired := 0
	for i := range binders {
		b := &binders[i]
		changed := b.EnsureScaffold()
		if n := len(b.ValueHistory); n > models.MaxValueHistoryPoints {
			b.ValueHistory = b.ValueHistory[n-models.MaxValueHistoryPoints:]
			changed = true
		}
		if !changed {
			continue
		}
		// Skip hooks and UpdatedAt so the repair does not look like a price refresh
		if err := db.Model(b).Select("capacity", "sheets", "value_history").UpdateColumns(b).Error; err != nil {
			logging.Sugar.Warnf("Warning: failed to repair binder %s: %v", b.ID, err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		logging.Sugar.Infof("Repaired layout of %d binders", repaired)
	}
	return nil
}
