package repository

import (
	"context"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/errors"
)

// Sentinel errors for device and sensor lookups.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrSensorNotFound = errors.New("sensor not found")
)

// DeviceRepository provides device and sensor lookups for identity
// resolution and mail fan-out.
type DeviceRepository interface {
	// GetByName returns a device by exact display name with its sensors.
	GetByName(ctx context.Context, name string) (*entities.Device, error)

	// GetByID returns a device by identifier with its sensors.
	GetByID(ctx context.Context, id uint) (*entities.Device, error)

	// GetSensorByName returns the sensor with the given name owned by the
	// given device. A sensor with a matching name on another device is not
	// found.
	GetSensorByName(ctx context.Context, deviceID uint, name string) (*entities.Sensor, error)

	// ListUsers returns all users associated with a device.
	ListUsers(ctx context.Context, deviceID uint) ([]entities.User, error)

	// ListByUser returns the devices associated with a user.
	ListByUser(ctx context.Context, userID uint) ([]entities.Device, error)

	// UpdateStatus sets a device's status field.
	UpdateStatus(ctx context.Context, id uint, status string) error
}
