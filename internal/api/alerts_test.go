package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centinela-home/centinela/internal/capture"
	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/fanout"
	"github.com/centinela-home/centinela/internal/identity"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/observability"
)

// memAlertRepo is an in-memory AlertRepository for handler tests.
type memAlertRepo struct {
	mu        sync.Mutex
	alerts    map[uint]*entities.Alert
	nextID    uint
	createErr error
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[uint]*entities.Alert), nextID: 1}
}

func (r *memAlertRepo) Create(_ context.Context, alert *entities.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	alert.ID = r.nextID
	alert.CreatedAt = time.Now()
	r.nextID++
	stored := *alert
	r.alerts[alert.ID] = &stored
	return nil
}

func (r *memAlertRepo) Get(_ context.Context, id uint) (*entities.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, repository.ErrAlertNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *memAlertRepo) List(_ context.Context, filter repository.AlertFilter) ([]entities.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.Alert
	for _, alert := range r.alerts {
		if len(filter.DeviceIDs) > 0 {
			match := false
			for _, id := range filter.DeviceIDs {
				if alert.DeviceID == id {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (r *memAlertRepo) SetVideoPath(_ context.Context, id uint, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.VideoPath != "" {
		return repository.ErrAlertNotFound
	}
	alert.VideoPath = path
	return nil
}

func (r *memAlertRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return repository.ErrAlertNotFound
	}
	delete(r.alerts, id)
	return nil
}

// memDeviceRepo backs the identity resolver in handler tests.
type memDeviceRepo struct {
	devices map[string]*entities.Device
	byUser  map[uint][]entities.Device
	status  map[uint]string
	nameErr error
}

func newMemDeviceRepo() *memDeviceRepo {
	sensors := []entities.Sensor{
		{ID: 1, Name: "PIR_Principal", Type: "motion", DeviceID: 1},
		{ID: 2, Name: "Puerta_Entrada", Type: "door", DeviceID: 1},
	}
	device := &entities.Device{ID: 1, Name: "ESP32", Location: "Salón", Status: entities.DeviceStatusActive, Sensors: sensors}
	return &memDeviceRepo{
		devices: map[string]*entities.Device{"ESP32": device},
		byUser:  map[uint][]entities.Device{7: {*device}},
		status:  map[uint]string{1: entities.DeviceStatusActive},
	}
}

func (r *memDeviceRepo) GetByName(_ context.Context, name string) (*entities.Device, error) {
	if r.nameErr != nil {
		return nil, r.nameErr
	}
	if d, ok := r.devices[name]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, repository.ErrDeviceNotFound
}

func (r *memDeviceRepo) GetByID(_ context.Context, id uint) (*entities.Device, error) {
	for _, d := range r.devices {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, repository.ErrDeviceNotFound
}

func (r *memDeviceRepo) GetSensorByName(_ context.Context, deviceID uint, name string) (*entities.Sensor, error) {
	for _, d := range r.devices {
		if d.ID != deviceID {
			continue
		}
		for i := range d.Sensors {
			if d.Sensors[i].Name == name {
				s := d.Sensors[i]
				return &s, nil
			}
		}
	}
	return nil, repository.ErrSensorNotFound
}

func (r *memDeviceRepo) ListUsers(_ context.Context, _ uint) ([]entities.User, error) {
	return nil, nil
}

func (r *memDeviceRepo) ListByUser(_ context.Context, userID uint) ([]entities.Device, error) {
	return r.byUser[userID], nil
}

func (r *memDeviceRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	if _, ok := r.status[id]; !ok {
		return repository.ErrDeviceNotFound
	}
	r.status[id] = status
	for _, d := range r.devices {
		if d.ID == id {
			d.Status = status
		}
	}
	return nil
}

// testHarness bundles a Controller with its collaborators for handler tests.
type testHarness struct {
	controller *Controller
	echo       *echo.Echo
	alerts     *memAlertRepo
	devices    *memDeviceRepo
	bus        *fanout.Bus
	events     chan *fanout.Event
	metrics    *observability.Metrics
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Capture.Enabled = true
	s.Capture.OutputDir = t.TempDir()
	s.Capture.DefaultDuration = conf.Duration(10 * time.Second)
	s.Capture.MaxDuration = conf.Duration(time.Minute)
	s.Capture.GraceWindow = conf.Duration(2 * time.Second)
	s.Capture.SensorTypes = []string{"motion"}
	return s
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	alerts := newMemAlertRepo()
	devices := newMemDeviceRepo()
	bus := fanout.NewBus(nil)
	t.Cleanup(bus.Stop)

	events := make(chan *fanout.Event, 16)
	bus.Subscribe(func(e *fanout.Event) { events <- e })

	metrics := observability.NewTestMetrics()
	e := echo.New()
	c := New(e, Config{
		Settings: testSettings(t),
		Alerts:   alerts,
		Devices:  devices,
		Resolver: identity.NewResolver(devices),
		Bus:      bus,
		Metrics:  metrics,
		Log:      logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
	})
	return &testHarness{controller: c, echo: e, alerts: alerts, devices: devices, bus: bus, events: events, metrics: metrics}
}

func (h *testHarness) request(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func (h *testHarness) waitEvent(t *testing.T, kind fanout.EventKind) *fanout.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event on bus", kind)
		}
	}
}

func TestCreateAlert_StoresAndPublishes(t *testing.T) {
	h := newHarness(t)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"Movimiento detectado en Salón","device":"ESP32","sensor":"PIR_Principal"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"alert_id":1`)

	stored, err := h.alerts.Get(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), stored.DeviceID)
	assert.Equal(t, uint(1), stored.SensorID)
	assert.Empty(t, stored.VideoPath)

	event := h.waitEvent(t, fanout.AlertCreated)
	require.NotNil(t, event.Alert)
	assert.Equal(t, uint(1), event.Alert.ID)
	assert.Equal(t, "ESP32", event.Alert.Device.Name, "bus event carries the resolved device")
}

func TestCreateAlert_NumericDeviceReference(t *testing.T) {
	h := newHarness(t)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"movimiento","device":"1","sensor":"1"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateAlert_RejectsMissingFields(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing type", `{"message":"m","device":"ESP32","sensor":"PIR_Principal"}`},
		{"missing message", `{"type":"motion","device":"ESP32","sensor":"PIR_Principal"}`},
		{"missing device", `{"type":"motion","message":"m","sensor":"PIR_Principal"}`},
		{"missing sensor", `{"type":"motion","message":"m","device":"ESP32"}`},
		{"not json", `tipo=motion`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.request(http.MethodPost, "/api/v1/alerts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAlert_UnknownDeviceNamesEntity(t *testing.T) {
	h := newHarness(t)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"Garaje","sensor":"PIR_Principal"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Garaje")
}

func TestCreateAlert_UnknownSensorNamesEntity(t *testing.T) {
	h := newHarness(t)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"Inexistente"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Inexistente")
}

func TestCreateAlert_ResolverFailureCountsOnce(t *testing.T) {
	h := newHarness(t)
	h.devices.nameErr = errors.New("device store offline")

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"PIR_Principal"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, float64(1),
		promtestutil.ToFloat64(h.metrics.AlertsIngested.WithLabelValues(observability.OutcomeFailed)))
	assert.Zero(t,
		promtestutil.ToFloat64(h.metrics.AlertsIngested.WithLabelValues(observability.OutcomeRejected)))
}

func TestCreateAlert_StoreFailure(t *testing.T) {
	h := newHarness(t)
	h.alerts.createErr = errors.New("disk full")

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"PIR_Principal"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// recordingRecorder notes each invocation and writes a stub clip.
type recordingRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (r *recordingRecorder) Record(_ context.Context, outputPath string, duration time.Duration) error {
	r.mu.Lock()
	r.durations = append(r.durations, duration)
	r.mu.Unlock()
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

func (r *recordingRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations...)
}

func newTestOrchestrator(t *testing.T, rec capture.Recorder, alerts repository.AlertRepository) *capture.Orchestrator {
	t.Helper()
	o, err := capture.NewOrchestrator(capture.Config{
		Recorder:    rec,
		Alerts:      alerts,
		OutputDir:   t.TempDir(),
		Grace:       2 * time.Second,
		MaxDuration: time.Minute,
		Log:         logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
		Metrics:     observability.NewTestMetrics(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Stop(context.Background()) })
	return o
}

func TestCreateAlert_StartsCaptureForMotionSensor(t *testing.T) {
	recorder := &recordingRecorder{}
	h := newHarness(t)
	// The orchestrator reconciles into the same repo the handler stores to.
	h.controller.capture = newTestOrchestrator(t, recorder, h.alerts)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"PIR_Principal"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Eventually(t, func() bool {
		stored, err := h.alerts.Get(t.Context(), 1)
		return err == nil && stored.VideoPath != ""
	}, 3*time.Second, 20*time.Millisecond, "capture should reconcile a video path")

	durations := recorder.recorded()
	require.Len(t, durations, 1)
	assert.Equal(t, 10*time.Second, durations[0], "default duration applies without override")
}

func TestCreateAlert_DurationOverride(t *testing.T) {
	recorder := &recordingRecorder{}
	h := newHarness(t)
	h.controller.capture = newTestOrchestrator(t, recorder, h.alerts)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"PIR_Principal","duration":25}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Eventually(t, func() bool {
		return len(recorder.recorded()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 25*time.Second, recorder.recorded()[0])
}

func TestCreateAlert_GatewayVideoPathSkipsCapture(t *testing.T) {
	recorder := &recordingRecorder{}
	h := newHarness(t)
	h.controller.capture = newTestOrchestrator(t, recorder, h.alerts)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"motion","message":"m","device":"ESP32","sensor":"PIR_Principal","video_path":"/uploads/clip_7.mp4"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := h.alerts.Get(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/clip_7.mp4", stored.VideoPath)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.recorded(), "gateway-supplied recording bypasses capture")
}

func TestCreateAlert_NonCapturableSensorSkipsCapture(t *testing.T) {
	recorder := &recordingRecorder{}
	h := newHarness(t)
	h.controller.capture = newTestOrchestrator(t, recorder, h.alerts)

	rec := h.request(http.MethodPost, "/api/v1/alerts",
		`{"type":"door","message":"m","device":"ESP32","sensor":"Puerta_Entrada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.recorded())
}

func TestListAlerts(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.alerts.Create(t.Context(), &entities.Alert{
			Type: "motion", Message: "m", DeviceID: 1, SensorID: 1,
		}))
	}

	rec := h.request(http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestListAlerts_InvalidLimit(t *testing.T) {
	h := newHarness(t)
	rec := h.request(http.MethodGet, "/api/v1/alerts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAlerts_UserFilter(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.alerts.Create(t.Context(), &entities.Alert{
		Type: "motion", Message: "m", DeviceID: 1, SensorID: 1,
	}))
	require.NoError(t, h.alerts.Create(t.Context(), &entities.Alert{
		Type: "motion", Message: "m", DeviceID: 99, SensorID: 5,
	}))

	rec := h.request(http.MethodGet, "/api/v1/alerts?user_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	// Unknown user has no devices, so no alerts.
	rec = h.request(http.MethodGet, "/api/v1/alerts?user_id=999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestGetAlert(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.alerts.Create(t.Context(), &entities.Alert{
		Type: "motion", Message: "m", DeviceID: 1, SensorID: 1,
	}))

	rec := h.request(http.MethodGet, "/api/v1/alerts/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(http.MethodGet, "/api/v1/alerts/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.request(http.MethodGet, "/api/v1/alerts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAlert_RemovesRowAndArtifact(t *testing.T) {
	h := newHarness(t)
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("clip"), 0o644))

	alert := &entities.Alert{Type: "motion", Message: "m", DeviceID: 1, SensorID: 1, VideoPath: clip}
	require.NoError(t, h.alerts.Create(t.Context(), alert))

	rec := h.request(http.MethodDelete, "/api/v1/alerts/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := h.alerts.Get(t.Context(), 1)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)
	assert.NoFileExists(t, clip)
}

func TestDeleteAlert_MissingArtifactIsNotAnError(t *testing.T) {
	h := newHarness(t)
	alert := &entities.Alert{Type: "motion", Message: "m", DeviceID: 1, SensorID: 1, VideoPath: "/nonexistent/clip.mp4"}
	require.NoError(t, h.alerts.Create(t.Context(), alert))

	rec := h.request(http.MethodDelete, "/api/v1/alerts/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteAlert_NotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.request(http.MethodDelete, "/api/v1/alerts/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.request(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
