package datastore

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	settings := &conf.DatabaseSettings{
		Type: conf.DatabaseSQLite,
		Path: filepath.Join(t.TempDir(), "centinela.db"),
	}
	db, err := Open(settings, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpen_RejectsUnknownType(t *testing.T) {
	_, err := Open(&conf.DatabaseSettings{Type: "postgres"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestSeed_CreatesDefaultRecords(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Seed(t.Context(), db, testLogger()))

	var device entities.Device
	require.NoError(t, db.Preload("Users").Preload("Sensors").First(&device, "name = ?", "ESP32").Error)
	assert.Equal(t, "Salón", device.Location)
	assert.Equal(t, entities.DeviceStatusInactive, device.Status)
	require.Len(t, device.Users, 1)
	assert.Equal(t, "admin@centinela.local", device.Users[0].Email)
	require.Len(t, device.Sensors, 1)
	assert.Equal(t, "PIR_Principal", device.Sensors[0].Name)
	assert.Equal(t, "motion", device.Sensors[0].Type)
}

func TestSeed_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Seed(t.Context(), db, testLogger()))
	require.NoError(t, Seed(t.Context(), db, testLogger()))

	var devices, users, sensors int64
	require.NoError(t, db.Model(&entities.Device{}).Count(&devices).Error)
	require.NoError(t, db.Model(&entities.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&entities.Sensor{}).Count(&sensors).Error)
	assert.Equal(t, int64(1), devices)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), sensors)
}

func TestSeed_SkipsWhenDevicesExist(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&entities.Device{Name: "Garaje", Status: entities.DeviceStatusActive}).Error)

	require.NoError(t, Seed(t.Context(), db, testLogger()))

	var count int64
	require.NoError(t, db.Model(&entities.Device{}).Where("name = ?", "ESP32").Count(&count).Error)
	assert.Zero(t, count, "seed must not run on a populated store")
}
