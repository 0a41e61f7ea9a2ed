package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns either a fixed set of hands or, when a sequence is queued,
// one entry of the sequence per Detect call.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect when no sequence is queued.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// QueueSequence queues per-call results. An empty entry means no hand.
func (m *MockDetector) QueueSequence(seq ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append(m.sequence, seq...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued result, the fixed hands, or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Finger selects one digit in a Pose call.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// fingerBase is the MCP position of each non-thumb finger for a right hand
// facing the camera.
var fingerBase = map[Finger]struct {
	mcp, pip, dip, tip int
	x, y               float64
}{
	Index:  {IndexMCP, IndexPIP, IndexDIP, IndexTip, 0.56, 0.65},
	Middle: {MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip, 0.50, 0.64},
	Ring:   {RingMCP, RingPIP, RingDIP, RingTip, 0.44, 0.65},
	Pinky:  {PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip, 0.38, 0.67},
}

// Pose builds a right-hand skeleton with the given fingers straight and
// pointing up and every other finger curled into the palm.
func Pose(extended ...Finger) HandLandmarks {
	up := make(map[Finger]bool, len(extended))
	for _, f := range extended {
		up[f] = true
	}

	h := HandLandmarks{
		Points:     make([]Point3D, NumLandmarks),
		Handedness: "Right",
		Score:      0.95,
	}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0}

	if up[Thumb] {
		h.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76, Z: 0}
		h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0}
		h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0}
		h.Points[ThumbTip] = Point3D{X: 0.74, Y: 0.60, Z: 0}
	} else {
		h.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76, Z: 0}
		h.Points[ThumbMCP] = Point3D{X: 0.60, Y: 0.72, Z: 0}
		h.Points[ThumbIP] = Point3D{X: 0.56, Y: 0.66, Z: -0.02}
		h.Points[ThumbTip] = Point3D{X: 0.54, Y: 0.64, Z: -0.03}
	}

	for _, f := range []Finger{Index, Middle, Ring, Pinky} {
		b := fingerBase[f]
		h.Points[b.mcp] = Point3D{X: b.x, Y: b.y, Z: 0}
		if up[f] {
			h.Points[b.pip] = Point3D{X: b.x, Y: b.y - 0.12, Z: 0}
			h.Points[b.dip] = Point3D{X: b.x, Y: b.y - 0.21, Z: 0}
			h.Points[b.tip] = Point3D{X: b.x, Y: b.y - 0.29, Z: 0}
			continue
		}
		// Knuckle raised, last two joints folded back toward the palm.
		h.Points[b.pip] = Point3D{X: b.x, Y: b.y - 0.05, Z: -0.03}
		h.Points[b.dip] = Point3D{X: b.x, Y: b.y - 0.07, Z: -0.06}
		h.Points[b.tip] = Point3D{X: b.x, Y: b.y - 0.02, Z: -0.04}
	}

	return h
}

// OpenPalmLandmarks returns an open hand with all five fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	return Pose(Thumb, Index, Middle, Ring, Pinky)
}

// FistLandmarks returns a closed fist.
func FistLandmarks() HandLandmarks {
	return Pose()
}

// PointUpLandmarks returns a hand with only the index finger raised.
func PointUpLandmarks() HandLandmarks {
	return Pose(Index)
}

// VictoryLandmarks returns a "V" with index and middle fingers raised.
func VictoryLandmarks() HandLandmarks {
	return Pose(Index, Middle)
}

// PartialLandmarks returns the first n points of an open palm, as a tracker
// produces when the hand is partly out of frame.
func PartialLandmarks(n int) HandLandmarks {
	h := OpenPalmLandmarks()
	if n < len(h.Points) {
		h.Points = h.Points[:n]
	}
	return h
}
