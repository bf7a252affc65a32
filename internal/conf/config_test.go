package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "main:\n  loglevel: debug\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.Main.LogLevel)
	assert.Equal(t, ":8080", s.WebServer.Address)
	assert.Equal(t, DatabaseSQLite, s.Database.Type)
	assert.Equal(t, 10*time.Second, s.Capture.DefaultDuration.Std())
	assert.Equal(t, 5*time.Second, s.Capture.GraceWindow.Std())
	assert.Equal(t, []string{"motion"}, s.Capture.SensorTypes)
}

func TestLoad_DurationStringsDecode(t *testing.T) {
	path := writeConfig(t, `
capture:
  enabled: true
  streamurl: rtsp://cam.local/stream
  defaultduration: 12s
  maxduration: 2m
  gracewindow: 3s
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, s.Capture.DefaultDuration.Std())
	assert.Equal(t, 2*time.Minute, s.Capture.MaxDuration.Std())
	assert.Equal(t, 3*time.Second, s.Capture.GraceWindow.Std())
}

func TestLoad_BareIntegerDurationsAreSeconds(t *testing.T) {
	path := writeConfig(t, `
capture:
  enabled: true
  streamurl: rtsp://cam.local/stream
  defaultduration: 15
  maxduration: 120
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, s.Capture.DefaultDuration.Std())
	assert.Equal(t, 2*time.Minute, s.Capture.MaxDuration.Std())
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "bad database type",
			content: "database:\n  type: postgres\n",
			errMsg:  "invalid database type",
		},
		{
			name:    "mysql without dsn",
			content: "database:\n  type: mysql\n",
			errMsg:  "database.dsn is required",
		},
		{
			name:    "capture enabled without stream",
			content: "capture:\n  enabled: true\n",
			errMsg:  "capture.streamurl is required",
		},
		{
			name:    "mail enabled without url template",
			content: "mail:\n  enabled: true\n",
			errMsg:  "mail.urltemplate is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSettings_CaptureSensorType(t *testing.T) {
	s := &Settings{Capture: CaptureSettings{SensorTypes: []string{"motion", "door"}}}

	assert.True(t, s.CaptureSensorType("motion"))
	assert.True(t, s.CaptureSensorType("door"))
	assert.False(t, s.CaptureSensorType("temperature"))
}
