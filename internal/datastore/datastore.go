// Package datastore opens and migrates the persistent store and exposes
// typed repositories over it.
package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/logger"
)

// Open connects to the configured database backend and migrates the schema.
func Open(settings *conf.DatabaseSettings, log logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Type {
	case conf.DatabaseSQLite:
		dialector = sqlite.Open(settings.Path + "?_busy_timeout=5000&_journal_mode=WAL")
	case conf.DatabaseMySQL:
		dialector = mysql.Open(settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", settings.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", settings.Type, err)
	}

	if err := db.AutoMigrate(
		&entities.User{},
		&entities.Device{},
		&entities.Sensor{},
		&entities.Alert{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info("database opened",
		logger.String("type", settings.Type))
	return db, nil
}

// Seed creates the default admin user, device, and sensor when the device
// table is empty, so a fresh install accepts gateway payloads immediately.
func Seed(ctx context.Context, db *gorm.DB, log logger.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&entities.Device{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count devices: %w", err)
	}
	if count > 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin := entities.User{
			Email:        "admin@centinela.local",
			PasswordHash: "$2a$10$invalid.placeholder.hash.must.be.reset.on.first.login",
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}

		device := entities.Device{
			Name:     "ESP32",
			Location: "Salón",
			Status:   entities.DeviceStatusInactive,
			Users:    []entities.User{admin},
		}
		if err := tx.Create(&device).Error; err != nil {
			return fmt.Errorf("failed to seed device: %w", err)
		}

		sensor := entities.Sensor{
			Name:     "PIR_Principal",
			Type:     "motion",
			Location: "Salón",
			DeviceID: device.ID,
		}
		if err := tx.Create(&sensor).Error; err != nil {
			return fmt.Errorf("failed to seed sensor: %w", err)
		}

		log.Info("seeded default records",
			logger.String("user", admin.Email),
			logger.String("device", device.Name),
			logger.String("sensor", sensor.Name))
		return nil
	})
}
