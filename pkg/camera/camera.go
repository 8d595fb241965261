// Package camera captures frames for the perception port.
package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture geometry. 640x480 keeps inference latency well under the cycle
// period on the Pi while leaving the classifier enough detail.
const (
	frameWidth  = 640
	frameHeight = 480
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("camera: closed")

// Source yields one JPEG frame per call.
type Source interface {
	// Frame returns the most recent frame as JPEG bytes.
	Frame() ([]byte, error)

	// Close releases the device.
	Close() error
}

// Device reads frames from a V4L2 camera via OpenCV.
type Device struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Open opens camera deviceID (usually 0) and configures capture geometry.
func Open(deviceID int) (*Device, error) {
	cap, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", deviceID, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, frameWidth)
	cap.Set(gocv.VideoCaptureFrameHeight, frameHeight)

	return &Device{cap: cap, mat: gocv.NewMat()}, nil
}

// Frame implements Source.
func (d *Device) Frame() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, errors.New("camera: read frame failed")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.mat)
	if err != nil {
		return nil, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.cap.Close()
}

// StaticSource returns a fixed frame on every call. Used when no camera
// is attached and by tests.
type StaticSource struct {
	JPEG []byte
}

// Frame implements Source.
func (s *StaticSource) Frame() ([]byte, error) {
	return s.JPEG, nil
}

// Close implements Source.
func (s *StaticSource) Close() error { return nil }
