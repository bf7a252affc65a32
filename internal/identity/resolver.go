// Package identity resolves the human-readable device and sensor names in
// inbound gateway payloads to their stored records.
package identity

import (
	"context"
	"strconv"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
)

// Resolver looks up devices and sensors by display name. Lookup is exact
// and case-sensitive; a sensor must belong to the resolved device.
//
// Display names are authoritative. Historical gateway firmware sent raw
// numeric identifiers instead, so a reference that fails name lookup and
// parses as an integer is retried as an ID.
type Resolver struct {
	devices repository.DeviceRepository
}

// NewResolver creates a Resolver over the given device repository.
func NewResolver(devices repository.DeviceRepository) *Resolver {
	return &Resolver{devices: devices}
}

// Resolve returns the device and sensor records for the given references.
// On failure the returned error wraps repository.ErrDeviceNotFound or
// repository.ErrSensorNotFound, naming the missing entity. No side effects,
// no retries.
func (r *Resolver) Resolve(ctx context.Context, deviceRef, sensorRef string) (*entities.Device, *entities.Sensor, error) {
	device, err := r.resolveDevice(ctx, deviceRef)
	if err != nil {
		return nil, nil, err
	}

	sensor, err := r.resolveSensor(ctx, device, sensorRef)
	if err != nil {
		return nil, nil, err
	}
	return device, sensor, nil
}

func (r *Resolver) resolveDevice(ctx context.Context, ref string) (*entities.Device, error) {
	device, err := r.devices.GetByName(ctx, ref)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, repository.ErrDeviceNotFound) {
		return nil, err
	}

	if id, ok := parseID(ref); ok {
		device, idErr := r.devices.GetByID(ctx, id)
		if idErr == nil {
			return device, nil
		}
		if !errors.Is(idErr, repository.ErrDeviceNotFound) {
			return nil, idErr
		}
	}

	return nil, errors.Wrap(repository.ErrDeviceNotFound).
		Component("identity").
		Category(errors.CategoryValidation).
		Context("device", ref).
		Build()
}

func (r *Resolver) resolveSensor(ctx context.Context, device *entities.Device, ref string) (*entities.Sensor, error) {
	sensor, err := r.devices.GetSensorByName(ctx, device.ID, ref)
	if err == nil {
		return sensor, nil
	}
	if !errors.Is(err, repository.ErrSensorNotFound) {
		return nil, err
	}

	// Numeric fallback stays scoped to the resolved device: a matching ID
	// owned by another device is still not found.
	if id, ok := parseID(ref); ok {
		for i := range device.Sensors {
			if device.Sensors[i].ID == id {
				return &device.Sensors[i], nil
			}
		}
	}

	return nil, errors.Wrap(repository.ErrSensorNotFound).
		Component("identity").
		Category(errors.CategoryValidation).
		Context("sensor", ref).
		Context("device", device.Name).
		Build()
}

func parseID(ref string) (uint, bool) {
	v, err := strconv.ParseUint(ref, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
