// Package main is the media plugin for macOS. It pauses and resumes recipe
// videos and adjusts the volume, so TIMER can be bound to play/pause.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// Request mirrors the executor's request.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	Confidence float64         `json:"confidence,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Params     json.RawMessage `json:"params"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// mediaKey presses one of the hardware media keys.
func mediaKey(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

var scripts = map[string]string{
	"play-pause":  mediaKey(100),
	"next-track":  mediaKey(101),
	"prev-track":  mediaKey(98),
	"volume-up":   `set volume output volume ((output volume of (get volume settings)) + 10)`,
	"volume-down": `set volume output volume ((output volume of (get volume settings)) - 10)`,
	"mute":        `set volume output muted (not (output muted of (get volume settings)))`,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("decode request: %w", err))
		return
	}

	script, err := scriptFor(req.Action)
	if err != nil {
		writeResponse(err)
		return
	}
	writeResponse(runAppleScript(script))
}

// scriptFor returns the AppleScript for action.
func scriptFor(action string) (string, error) {
	script, ok := scripts[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q (supported: %v)", action, actions())
	}
	return script, nil
}

func actions() []string {
	out := make([]string, 0, len(scripts))
	for a := range scripts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}
