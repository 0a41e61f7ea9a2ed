package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// PixelDelta is the grey-level change that counts a pixel as moved.
	PixelDelta = 25
	// DefaultMotionThreshold is the percentage of moved pixels that counts
	// as motion.
	DefaultMotionThreshold = 1.0
	// DefaultIdleTimeout is how long a still image keeps the pipeline active.
	DefaultIdleTimeout = 2 * time.Second
)

// MotionDetector compares each frame with the previous one.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionDetector returns a detector that reports motion when more than
// threshold percent of the pixels changed. Non-positive thresholds use
// DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Detect reports whether frame differs from the previous one, and by what
// percentage of pixels. The first frame after construction or Reset only
// primes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !m.primed {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	moved := gocv.NewMat()
	defer moved.Close()
	gocv.Threshold(diff, &moved, PixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(moved)) / float64(moved.Rows()*moved.Cols()) * 100.0
	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold changes the percentage of moved pixels that counts as motion.
// Non-positive values are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the current motion threshold.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Transition is the result of feeding one motion sample to a Gate.
type Transition int

const (
	// Steady means the gate kept its mode.
	Steady Transition = iota
	// Activated means motion woke the gate up.
	Activated
	// Idled means the image stayed still for the idle timeout.
	Idled
)

func (t Transition) String() string {
	switch t {
	case Activated:
		return "activated"
	case Idled:
		return "idled"
	}
	return "steady"
}

// Gate tracks whether the pipeline is active. Motion activates it; it falls
// back to idle once no motion was seen for the timeout. Gate is not safe for
// concurrent use.
type Gate struct {
	timeout    time.Duration
	active     bool
	lastMotion time.Time
}

// NewGate returns an idle gate. Non-positive timeouts use DefaultIdleTimeout.
func NewGate(timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	return &Gate{timeout: timeout}
}

// Update records one motion sample taken at now.
func (g *Gate) Update(motion bool, now time.Time) Transition {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return Activated
		}
		return Steady
	}

	if g.active && now.Sub(g.lastMotion) > g.timeout {
		g.active = false
		return Idled
	}
	return Steady
}

// Active reports whether detection should run.
func (g *Gate) Active() bool { return g.active }

// Reset returns the gate to idle without reporting a transition.
func (g *Gate) Reset() {
	g.active = false
	g.lastMotion = time.Time{}
}
