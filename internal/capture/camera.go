// Package capture reads frames from the local camera and decides, from frame
// differences, when the camera is worth running hand detection on.
package capture

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture settings. Frames are kept small; the hand tracker only needs the
// silhouette of one hand.
const (
	IdleFPS       = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device delivered nothing usable.
	ErrNoFrame = errors.New("no frame captured")
)

// Camera is a frame source. The local pipeline drives it at IdleFPS until
// motion is seen and at the session throttle rate afterwards.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// FPSFor returns the smallest frame rate that delivers at least one frame
// per interval.
func FPSFor(interval time.Duration) int {
	if interval <= 0 {
		return IdleFPS
	}
	return int(math.Ceil(float64(time.Second) / float64(interval)))
}

type device struct {
	id int

	mu      sync.Mutex
	capture *gocv.VideoCapture
	fps     int
}

// NewCamera returns a camera for the given OpenCV device index. Nothing is
// opened until Open.
func NewCamera(deviceID int) Camera {
	return &device{id: deviceID, fps: IdleFPS}
}

// Open starts capturing at 640x480. Opening an open camera is a no-op.
func (c *device) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.id)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.id, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *device) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *device) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: %w", c.id, ErrNoFrame)
	}
	return &mat, nil
}

// SetFPS changes the requested frame rate. Non-positive values are ignored.
func (c *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *device) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *device) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
