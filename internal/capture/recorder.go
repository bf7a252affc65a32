package capture

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/centinela-home/centinela/internal/errors"
)

// Recorder records a bounded-duration clip from the camera stream into
// outputPath. Implementations must honor ctx cancellation.
type Recorder interface {
	Record(ctx context.Context, outputPath string, duration time.Duration) error
}

// Process termination exit codes (128 + signal number).
const (
	exitCodeSIGKILL = 137
	exitCodeSIGTERM = 143

	signalKilledMessage = "signal: killed"
)

// FFmpegRecorder records from a network camera stream by running ffmpeg.
type FFmpegRecorder struct {
	streamURL string
	binary    string
}

// NewFFmpegRecorder creates a recorder for the given stream URL. binary
// overrides the ffmpeg executable path; empty means "ffmpeg" on $PATH.
func NewFFmpegRecorder(streamURL, binary string) *FFmpegRecorder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegRecorder{streamURL: streamURL, binary: binary}
}

// Record runs ffmpeg until the requested duration elapses or ctx expires.
func (r *FFmpegRecorder) Record(ctx context.Context, outputPath string, duration time.Duration) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
	}
	if strings.HasPrefix(r.streamURL, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-i", r.streamURL,
		"-t", fmt.Sprintf("%.0f", duration.Seconds()),
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(string(output)))).
			Component("capture").
			Category(errors.CategoryProcess).
			Context("stream", r.streamURL).
			Build()
	}
	return nil
}

// IsOperationalError reports whether err is an expected operational event
// rather than a genuine failure: context cancellation, deadline exceeded,
// or a context-triggered process kill.
func IsOperationalError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == exitCodeSIGKILL || code == exitCodeSIGTERM {
			return true
		}
	}
	return strings.Contains(err.Error(), signalKilledMessage)
}
