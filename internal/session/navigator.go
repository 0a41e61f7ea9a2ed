package session

import (
	"sync"

	"github.com/ayusman/palmchef/internal/gesture"
)

// maxStep bounds the step index when the recipe length is unknown.
const maxStep = 9999

// Cursor is the recipe position driven by fired gestures.
type Cursor struct {
	Step        int  `json:"step"`
	Steps       int  `json:"steps"`
	TimerActive bool `json:"timer_active"`
	Repeats     int  `json:"repeats"`
}

// Navigator moves a Cursor in response to fires. It is an Observer.
type Navigator struct {
	mu     sync.Mutex
	cursor Cursor
}

// NewNavigator returns a navigator at step 0 of a recipe with the given
// number of steps. Zero steps means unbounded.
func NewNavigator(steps int) *Navigator {
	n := &Navigator{}
	n.SetSteps(steps)
	return n
}

// Observe applies a fired gesture to the cursor.
func (n *Navigator) Observe(u Update) {
	l, ok := u.Fire()
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch l {
	case gesture.Next:
		last := maxStep
		if n.cursor.Steps > 0 {
			last = n.cursor.Steps - 1
		}
		if n.cursor.Step < last {
			n.cursor.Step++
		}
	case gesture.Prev:
		if n.cursor.Step > 0 {
			n.cursor.Step--
		}
	case gesture.Timer:
		n.cursor.TimerActive = !n.cursor.TimerActive
	case gesture.Repeat:
		n.cursor.Repeats++
	}
}

// SetSteps sets the recipe length and clamps the current step into range.
func (n *Navigator) SetSteps(steps int) {
	if steps < 0 {
		steps = 0
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.cursor.Steps = steps
	if steps > 0 && n.cursor.Step > steps-1 {
		n.cursor.Step = steps - 1
	}
}

// Cursor returns the current position.
func (n *Navigator) Cursor() Cursor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor
}

// Reset goes back to the first step with the timer stopped. The recipe
// length is kept.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cursor = Cursor{Steps: n.cursor.Steps}
}
