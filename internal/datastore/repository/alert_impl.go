package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/errors"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Create persists a new alert.
func (r *alertRepository) Create(ctx context.Context, alert *entities.Alert) error {
	// Omit associations so Create never upserts device or sensor rows the
	// resolver already loaded.
	if err := r.db.WithContext(ctx).Omit("Device", "Sensor").Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Get returns a single alert with its device and sensor preloaded.
// Returns ErrAlertNotFound if the alert does not exist.
func (r *alertRepository) Get(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).Preload("Device").Preload("Sensor").First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return &alert, nil
}

// List returns alerts newest first, matching the filter.
func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.db.WithContext(ctx).Preload("Device").Preload("Sensor").Order("created_at DESC, id DESC")

	if len(filter.DeviceIDs) > 0 {
		query = query.Where("device_id IN ?", filter.DeviceIDs)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// SetVideoPath records the capture artifact path. The WHERE clause guards
// the set-once invariant: an already-set path or a deleted row both yield
// zero affected rows, reported as ErrAlertNotFound.
func (r *alertRepository) SetVideoPath(ctx context.Context, id uint, path string) error {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND (video_path IS NULL OR video_path = '')", id).
		Update("video_path", path)
	if result.Error != nil {
		return fmt.Errorf("failed to set video path for alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// Delete removes an alert row.
func (r *alertRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Alert{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}
