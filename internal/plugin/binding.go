package plugin

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ayusman/palmchef/internal/gesture"
)

// KeyboardPlugin is the name of the bundled keystroke plugin.
const KeyboardPlugin = "keyboard"

// macOS virtual key codes used by the default bindings.
const (
	keyCodeSpace = 49
	keyCodeLeft  = 123
	keyCodeRight = 124
)

// Binding maps a gesture to a plugin action.
type Binding struct {
	Gesture gesture.Label   `json:"gesture"`
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Bindings is keyed by gesture. Unbound gestures are ignored by the dispatcher.
type Bindings map[gesture.Label]Binding

// DefaultBindings drives a recipe viewer with arrow keys, "r" and space.
func DefaultBindings() Bindings {
	keycode := func(l gesture.Label, code int) Binding {
		return Binding{
			Gesture: l,
			Plugin:  KeyboardPlugin,
			Action:  "keycode",
			Params:  json.RawMessage(fmt.Sprintf(`{"code":%d}`, code)),
		}
	}

	return Bindings{
		gesture.Next:  keycode(gesture.Next, keyCodeRight),
		gesture.Prev:  keycode(gesture.Prev, keyCodeLeft),
		gesture.Timer: keycode(gesture.Timer, keyCodeSpace),
		gesture.Repeat: {
			Gesture: gesture.Repeat,
			Plugin:  KeyboardPlugin,
			Action:  "keystroke",
			Params:  json.RawMessage(`{"key":"r"}`),
		},
	}
}

// LoadBindings reads a JSON array of bindings. Later entries for the same
// gesture replace earlier ones.
func LoadBindings(path string) (Bindings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}

	var list []Binding
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse bindings %s: %w", path, err)
	}

	out := make(Bindings, len(list))
	for i, b := range list {
		l, err := gesture.ParseLabel(string(b.Gesture))
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		if l == gesture.None {
			return nil, fmt.Errorf("binding %d: NONE cannot be bound", i)
		}
		if b.Plugin == "" || b.Action == "" {
			return nil, fmt.Errorf("binding %d: plugin and action are required", i)
		}
		b.Gesture = l
		out[l] = b
	}
	return out, nil
}
