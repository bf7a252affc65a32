package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/errors"
)

// deviceRepository implements DeviceRepository.
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// GetByName returns a device by exact display name with its sensors.
func (r *deviceRepository) GetByName(ctx context.Context, name string) (*entities.Device, error) {
	var device entities.Device
	if err := r.db.WithContext(ctx).Preload("Sensors").Where("name = ?", name).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %q: %w", name, err)
	}
	return &device, nil
}

// GetByID returns a device by identifier with its sensors.
func (r *deviceRepository) GetByID(ctx context.Context, id uint) (*entities.Device, error) {
	var device entities.Device
	if err := r.db.WithContext(ctx).Preload("Sensors").First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %d: %w", id, err)
	}
	return &device, nil
}

// GetSensorByName returns the named sensor owned by the given device.
func (r *deviceRepository) GetSensorByName(ctx context.Context, deviceID uint, name string) (*entities.Sensor, error) {
	var sensor entities.Sensor
	if err := r.db.WithContext(ctx).
		Where("device_id = ? AND name = ?", deviceID, name).
		First(&sensor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("failed to get sensor %q for device %d: %w", name, deviceID, err)
	}
	return &sensor, nil
}

// ListUsers returns all users associated with a device.
func (r *deviceRepository) ListUsers(ctx context.Context, deviceID uint) ([]entities.User, error) {
	var device entities.Device
	if err := r.db.WithContext(ctx).Preload("Users").First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to list users for device %d: %w", deviceID, err)
	}
	return device.Users, nil
}

// ListByUser returns the devices associated with a user.
func (r *deviceRepository) ListByUser(ctx context.Context, userID uint) ([]entities.Device, error) {
	var devices []entities.Device
	if err := r.db.WithContext(ctx).
		Joins("JOIN device_users ON device_users.device_id = devices.id").
		Where("device_users.user_id = ?", userID).
		Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices for user %d: %w", userID, err)
	}
	return devices, nil
}

// UpdateStatus sets a device's status field.
func (r *deviceRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&entities.Device{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for device %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
