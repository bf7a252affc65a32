package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/logger"
)

// Mailer sends one alert summary to one recipient. Implementations must be
// safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, recipient string, alert *entities.Alert) error
}

// ShoutrrrMailer delivers alert mail through a shoutrrr smtp service URL.
// URLTemplate must contain a single %s placeholder for the recipient
// address.
type ShoutrrrMailer struct {
	urlTemplate string
	log         logger.Logger
}

// NewShoutrrrMailer creates a mailer from the configured URL template.
func NewShoutrrrMailer(urlTemplate string, log logger.Logger) (*ShoutrrrMailer, error) {
	if !strings.Contains(urlTemplate, "%s") {
		return nil, errors.Newf("mail URL template has no %%s recipient placeholder").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	// Validate the template shape up front so misconfiguration fails at
	// startup, not on the first alert.
	if _, err := shoutrrr.CreateSender(fmt.Sprintf(urlTemplate, "probe@localhost")); err != nil {
		return nil, fmt.Errorf("invalid mail URL template: %w", err)
	}
	return &ShoutrrrMailer{urlTemplate: urlTemplate, log: log}, nil
}

// Send delivers one alert summary mail. The caller bounds the attempt with
// ctx; an expired context counts as that recipient's failure only.
func (m *ShoutrrrMailer) Send(ctx context.Context, recipient string, alert *entities.Alert) error {
	sender, err := shoutrrr.CreateSender(fmt.Sprintf(m.urlTemplate, recipient))
	if err != nil {
		return fmt.Errorf("failed to create mail sender for %s: %w", recipient, err)
	}

	title := fmt.Sprintf("Security alert: %s on %s", alert.Type, alert.Device.Name)
	body := FormatAlertMail(alert)

	done := make(chan error, 1)
	go func() {
		errs := sender.Send(body, &types.Params{"title": title})
		for _, sendErr := range errs {
			if sendErr != nil {
				done <- sendErr
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err()).
			Component("notification").
			Category(errors.CategoryTimeout).
			Context("recipient", recipient).
			Build()
	}
}

// FormatAlertMail renders the mail body: type, message, device, sensor,
// and timestamp.
func FormatAlertMail(alert *entities.Alert) string {
	return fmt.Sprintf("Type: %s\nMessage: %s\nDevice: %s\nSensor: %s\nTime: %s\n",
		alert.Type,
		alert.Message,
		alert.Device.Name,
		alert.Sensor.Name,
		alert.CreatedAt.Format(time.RFC3339),
	)
}

// NoopMailer is used when mail dispatch is disabled.
type NoopMailer struct {
	log logger.Logger
}

// NewNoopMailer creates a mailer that logs instead of sending.
func NewNoopMailer(log logger.Logger) *NoopMailer {
	return &NoopMailer{log: log}
}

// Send logs the would-be delivery and succeeds.
func (m *NoopMailer) Send(_ context.Context, recipient string, alert *entities.Alert) error {
	m.log.Debug("mail disabled, skipping delivery",
		logger.String("recipient", recipient),
		logger.Uint64("alert_id", uint64(alert.ID)))
	return nil
}
