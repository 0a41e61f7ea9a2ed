package main

import (
	"encoding/json"
	"testing"
)

func TestBuildScript(t *testing.T) {
	cases := []struct {
		name   string
		action string
		params string
		want   string
	}{
		{"plain key", "keystroke", `{"key":"r"}`, `tell application "System Events" to keystroke "r"`},
		{"shortcut", "shortcut", `{"key":"t","modifiers":["cmd","Shift","hyper"]}`, `tell application "System Events" to keystroke "t" using {command down, shift down}`},
		{"right arrow", "keycode", `{"code":124}`, `tell application "System Events" to key code 124`},
		{"space", "keycode", `{"code":49}`, `tell application "System Events" to key code 49`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildScript(tc.action, json.RawMessage(tc.params))
			if err != nil {
				t.Fatalf("buildScript() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("buildScript() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildScript_Errors(t *testing.T) {
	cases := map[string]struct {
		action string
		params string
	}{
		"empty key":    {"keystroke", `{"key":""}`},
		"missing code": {"keycode", `{}`},
		"code too big": {"keycode", `{"code":300}`},
		"unknown":      {"click", `{}`},
		"invalid json": {"keystroke", `{`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := buildScript(tc.action, json.RawMessage(tc.params)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
