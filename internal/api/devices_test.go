package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/fanout"
)

func TestUpdateDeviceStatus(t *testing.T) {
	h := newHarness(t)

	rec := h.request(http.MethodPatch, "/api/v1/devices/1/status", `{"status":"inactive"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, entities.DeviceStatusInactive, h.devices.status[1])

	event := h.waitEvent(t, fanout.DeviceStatusChanged)
	require.NotNil(t, event.Device)
	assert.Equal(t, entities.DeviceStatusInactive, event.Device.Status)
}

func TestUpdateDeviceStatus_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"missing status", "/api/v1/devices/1/status", `{}`, http.StatusBadRequest},
		{"invalid id", "/api/v1/devices/abc/status", `{"status":"active"}`, http.StatusBadRequest},
		{"unknown device", "/api/v1/devices/42/status", `{"status":"active"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.request(http.MethodPatch, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
