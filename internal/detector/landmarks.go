// Package detector provides hand tracking types and detector implementations
// that feed landmark frames into the gesture pipeline.
package detector

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is one normalized landmark. X and Y are in image space ([0,1], Y grows
// downward); Z is depth relative to the wrist and may be negative.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the point as a gonum vector.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// IsFinite reports whether all three coordinates are finite numbers.
func (p Point3D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// Distance returns the 3D Euclidean distance between two points.
func Distance(a, b Point3D) float64 {
	return r3.Norm(r3.Sub(a.Vec(), b.Vec()))
}

// HandLandmarks is one detected hand. Points normally holds NumLandmarks
// entries, but trackers may emit partial skeletons, so it is a slice.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Complete reports whether the hand carries a full skeleton.
func (h *HandLandmarks) Complete() bool {
	return h != nil && len(h.Points) >= NumLandmarks
}

// Clone returns a deep copy so callers can keep a frame past the detector's
// next call.
func (h HandLandmarks) Clone() HandLandmarks {
	out := h
	out.Points = append([]Point3D(nil), h.Points...)
	return out
}
