package gesture

import (
	"github.com/ayusman/palmchef/internal/detector"
)

// Thresholds control when a finger counts as extended.
//
// A non-thumb finger is extended when its tip sits above its PIP joint by more
// than Slack (image Y grows downward) or when its extension ratio exceeds
// Ratio. The thumb has no reliable vertical axis and uses ThumbRatio only.
type Thresholds struct {
	Ratio      float64 `json:"ratio"`
	Slack      float64 `json:"slack"`
	ThumbRatio float64 `json:"thumb_ratio"`
}

// DefaultThresholds returns the "clearly extended" tier the rules are tuned for.
func DefaultThresholds() Thresholds {
	return Thresholds{Ratio: 0.95, Slack: 0.04, ThumbRatio: 0.7}
}

// LooseThresholds returns the more permissive tier. It accepts bent fingers
// as extended and is useful for hands seen at an angle.
func LooseThresholds() Thresholds {
	return Thresholds{Ratio: 0.85, Slack: 0.02, ThumbRatio: 0.6}
}

// ratioEpsilon keeps the extension ratio finite when two joints coincide.
const ratioEpsilon = 1e-5

// finger holds the landmark indices used by the two extension tests. The
// ratio uses tip/dip/mcp; the vertical test compares tip against pip.
type finger struct {
	name          string
	tip, dip, mcp int
	pip           int
}

var fingers = [5]finger{
	{"thumb", detector.ThumbTip, detector.ThumbIP, detector.ThumbMCP, -1},
	{"index", detector.IndexTip, detector.IndexDIP, detector.IndexMCP, detector.IndexPIP},
	{"middle", detector.MiddleTip, detector.MiddleDIP, detector.MiddleMCP, detector.MiddlePIP},
	{"ring", detector.RingTip, detector.RingDIP, detector.RingMCP, detector.RingPIP},
	{"pinky", detector.PinkyTip, detector.PinkyDIP, detector.PinkyMCP, detector.PinkyPIP},
}

// FingerState is the per-finger breakdown returned by Analyze.
type FingerState struct {
	Name     string  `json:"name"`
	Ratio    float64 `json:"ratio"`
	Raised   bool    `json:"raised"`   // vertical test only
	Extended bool    `json:"extended"` // combined test
}

// Pose is the full geometric reading of one frame.
type Pose struct {
	Fingers [5]FingerState `json:"fingers"`
	Count   int            `json:"count"`
}

func (p Pose) extended(i int) bool { return p.Fingers[i].Extended }

// Classifier is the fixed rule set with configurable thresholds.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a classifier using th.
func NewClassifier(th Thresholds) Classifier {
	return Classifier{Thresholds: th}
}

// Classify evaluates one frame with DefaultThresholds.
func Classify(points []detector.Point3D) Classification {
	return Classifier{Thresholds: DefaultThresholds()}.Classify(points)
}

// Analyze returns the per-finger reading, or false when the frame is too
// short or carries non-finite coordinates.
func (c Classifier) Analyze(points []detector.Point3D) (Pose, bool) {
	if len(points) < detector.NumLandmarks {
		return Pose{}, false
	}
	for _, p := range points[:detector.NumLandmarks] {
		if !p.IsFinite() {
			return Pose{}, false
		}
	}

	var pose Pose
	for i, f := range fingers {
		ratio := detector.Distance(points[f.tip], points[f.dip]) /
			(detector.Distance(points[f.dip], points[f.mcp]) + ratioEpsilon)

		st := FingerState{Name: f.name, Ratio: ratio}
		if f.pip < 0 {
			st.Extended = ratio > c.Thresholds.ThumbRatio
		} else {
			st.Raised = points[f.tip].Y < points[f.pip].Y-c.Thresholds.Slack
			st.Extended = st.Raised || ratio > c.Thresholds.Ratio
		}
		if st.Extended {
			pose.Count++
		}
		pose.Fingers[i] = st
	}
	return pose, true
}

// Classify maps a frame to a gesture using the fixed priority rules. It never
// panics: short or non-finite frames yield Unclassified.
func (c Classifier) Classify(points []detector.Point3D) Classification {
	pose, ok := c.Analyze(points)
	if !ok {
		return Unclassified
	}

	index, middle, ring, pinky := pose.extended(1), pose.extended(2), pose.extended(3), pose.extended(4)

	switch {
	case index && !middle && !ring && !pinky:
		return Classification{Gesture: Timer, Confidence: 0.9}
	case index && middle && !ring && !pinky:
		return Classification{Gesture: Repeat, Confidence: 0.9}
	case pose.Count <= 1:
		return Classification{Gesture: Prev, Confidence: 0.85}
	case pose.Count >= 3:
		return Classification{Gesture: Next, Confidence: 0.85}
	default:
		return Classification{Gesture: None, Confidence: 0.3}
	}
}
