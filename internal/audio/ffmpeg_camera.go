package audio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"livemic/internal/domain"
	"livemic/internal/ports"
)

const (
	defaultCameraWidth  = 640
	defaultCameraHeight = 480
	defaultCameraFPS    = 2
)

// ErrCameraStopped is returned by Snapshot once the frame stream has ended.
var ErrCameraStopped = errors.New("camera stream ended")

// FFMPEGCamera captures raw RGBA camera frames using ffmpeg.
type FFMPEGCamera struct {
	command string
}

func NewFFMPEGCamera(command string) *FFMPEGCamera {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCamera{command: command}
}

func (c *FFMPEGCamera) Start(ctx context.Context, cfg ports.CameraConfig) (ports.CameraSession, error) {
	if cfg.Width <= 0 {
		cfg.Width = defaultCameraWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultCameraHeight
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = defaultCameraFPS
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}

	size := strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height)
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-video_size", size,
		"-i", cfg.Device,
		"-vf", "scale=" + strconv.Itoa(cfg.Width) + ":" + strconv.Itoa(cfg.Height),
		"-r", strconv.Itoa(cfg.FrameRate),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}

	child, err := launch("ffmpeg", cmd)
	if err != nil {
		return nil, &domain.DeviceAccessError{Device: "camera", Err: err}
	}

	session := &cameraSession{
		stdout: stdout,
		child:  child,
		width:  cfg.Width,
		height: cfg.Height,
		done:   make(chan struct{}),
	}
	go session.readLoop()
	return session, nil
}

type cameraSession struct {
	stdout io.ReadCloser
	child  *childProcess
	width  int
	height int
	done   chan struct{}

	mu      sync.Mutex
	latest  *image.RGBA
	readErr error
}

func (s *cameraSession) readLoop() {
	defer close(s.done)

	frameSize := s.width * s.height * 4
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}

		frame := &image.RGBA{
			Pix:    buf,
			Stride: s.width * 4,
			Rect:   image.Rect(0, 0, s.width, s.height),
		}
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the newest frame. It returns nil, nil until the
// first frame has been read.
func (s *cameraSession) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraStopped, s.readErr)
	}
	if s.latest == nil {
		return nil, nil
	}

	frame := &image.RGBA{
		Pix:    make([]byte, len(s.latest.Pix)),
		Stride: s.latest.Stride,
		Rect:   s.latest.Rect,
	}
	copy(frame.Pix, s.latest.Pix)
	return frame, nil
}

func (s *cameraSession) Stop() error {
	err := s.child.stop()
	_ = s.stdout.Close()
	<-s.done
	return err
}
