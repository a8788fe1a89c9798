package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/models"
)

var DB *gorm.DB

// Initialize opens the database at dbPath and stores it as the process-wide handle
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to a SQLite DSN, migrates the schema and runs data migrations
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	logging.Sugar.Info("Database connected successfully")

	if err := db.AutoMigrate(&models.Binder{}); err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	logging.Sugar.Info("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
