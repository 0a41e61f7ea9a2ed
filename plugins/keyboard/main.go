// Package main is the keyboard plugin for macOS. It turns gesture actions
// into keystrokes or raw key codes sent through System Events.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
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

// KeyParams is shared by the keystroke and keycode actions.
type KeyParams struct {
	Key       string   `json:"key"`
	Code      *int     `json:"code"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("decode request: %w", err))
		return
	}

	script, err := buildScript(req.Action, req.Params)
	if err != nil {
		writeResponse(err)
		return
	}
	writeResponse(runAppleScript(script))
}

// buildScript validates the request and returns the AppleScript to run.
func buildScript(action string, params json.RawMessage) (string, error) {
	var p KeyParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("parse params: %w", err)
		}
	}

	var command string
	switch action {
	case "keystroke", "shortcut":
		if p.Key == "" {
			return "", errors.New("key is required")
		}
		command = fmt.Sprintf("keystroke %q", p.Key)
	case "keycode":
		if p.Code == nil || *p.Code < 0 || *p.Code > 127 {
			return "", errors.New("code must be between 0 and 127")
		}
		command = fmt.Sprintf("key code %d", *p.Code)
	default:
		return "", fmt.Errorf("unknown action: %s", action)
	}

	var mods []string
	for _, m := range p.Modifiers {
		if am, ok := modifierMap[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}
	if len(mods) > 0 {
		command += fmt.Sprintf(" using {%s}", strings.Join(mods, ", "))
	}

	return `tell application "System Events" to ` + command, nil
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
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
