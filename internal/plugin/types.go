// Package plugin runs action plugins in response to fired gestures.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// The executable receives one JSON Request on stdin and answers with one JSON
// Response on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin and the actions it accepts.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Supports reports whether the manifest lists action. An empty action list
// accepts anything.
func (m Manifest) Supports(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	Confidence float64         `json:"confidence,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its resolved paths.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
