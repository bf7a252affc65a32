package repository

import (
	"context"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/errors"
)

// ErrAlertNotFound is returned when an alert does not exist. Callers racing
// a delete (capture reconciliation in particular) treat it as benign.
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository is the durable store of alerts consumed by the intake
// pipeline and the capture orchestrator.
type AlertRepository interface {
	// Create persists a new alert, assigning its ID and creation timestamp.
	Create(ctx context.Context, alert *entities.Alert) error

	// Get returns an alert with its device and sensor resolved.
	Get(ctx context.Context, id uint) (*entities.Alert, error)

	// List returns alerts newest first, matching the filter.
	List(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)

	// SetVideoPath records the capture artifact path for an alert. The path
	// is set at most once: a second call, or a call after the alert was
	// deleted, returns ErrAlertNotFound and changes nothing.
	SetVideoPath(ctx context.Context, id uint, path string) error

	// Delete removes an alert. Artifact removal on disk is the caller's
	// concern.
	Delete(ctx context.Context, id uint) error
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	// DeviceIDs restricts results to the given devices when non-empty.
	DeviceIDs []uint
	Limit     int
	Offset    int
}
