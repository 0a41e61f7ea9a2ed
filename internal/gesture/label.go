// Package gesture classifies hand landmark frames into control gestures and
// debounces the per-frame signal into discrete fire events.
package gesture

import (
	"fmt"
	"strings"
)

// Label is one of the control gestures, or None.
type Label string

const (
	// Next advances to the next step (open palm).
	Next Label = "NEXT"
	// Prev goes back one step (fist).
	Prev Label = "PREV"
	// Repeat asks for the current step again (victory sign).
	Repeat Label = "REPEAT"
	// Timer toggles the step timer (index pointing up).
	Timer Label = "TIMER"
	// None means no confident classification. It does not mean the hand is absent.
	None Label = "NONE"
)

// Labels lists the control gestures in vote tie-break order: when two labels
// have the same number of votes the one listed first wins.
var Labels = [...]Label{Next, Prev, Repeat, Timer}

var descriptions = map[Label]string{
	Next:   "Next Step",
	Prev:   "Previous Step",
	Repeat: "Repeat Step",
	Timer:  "Pause/Resume",
	None:   "No Hand",
}

// Description returns the human-readable action name shown on the HUD.
func (l Label) Description() string {
	if d, ok := descriptions[l]; ok {
		return d
	}
	return string(l)
}

// Valid reports whether l is one of the five known labels.
func (l Label) Valid() bool {
	_, ok := descriptions[l]
	return ok
}

// ParseLabel accepts a label name in any case.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return None, fmt.Errorf("unknown gesture %q", s)
	}
	return l, nil
}

// Classification is the verdict for a single frame.
type Classification struct {
	Gesture    Label   `json:"gesture"`
	Confidence float64 `json:"confidence"`
}

// Unclassified is the result for frames that cannot be evaluated.
var Unclassified = Classification{Gesture: None, Confidence: 0}

// Locked reports whether the estimate is strong enough for the HUD to show it
// as locked in rather than still stabilizing.
func (c Classification) Locked() bool {
	return c.Gesture != None && c.Confidence >= 0.88
}
