package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, dir string, m Manifest) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	pluginDir := writeManifest(t, root, "kb", Manifest{
		Name:        "keyboard",
		Version:     "1.0.0",
		Description: "Sends keystrokes",
		Executable:  "keyboard",
		Actions:     []string{"keystroke", "keycode"},
	})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	p := plugins[0]
	if p.Manifest.Name != "keyboard" {
		t.Errorf("expected plugin name 'keyboard', got %q", p.Manifest.Name)
	}
	if p.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, p.Path)
	}
	if p.Executable != filepath.Join(pluginDir, "keyboard") {
		t.Errorf("unexpected executable %q", p.Executable)
	}
	if !p.Manifest.Supports("keycode") || p.Manifest.Supports("shortcut") {
		t.Errorf("action list not honored: %v", p.Manifest.Actions)
	}
}

func TestManager_Discover_Sorted(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeManifest(t, root, name, Manifest{Name: name, Executable: name})
	}

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	var names []string
	for _, p := range manager.List() {
		names = append(names, p.Manifest.Name)
	}
	if len(names) != 3 || names[0] != "alpha" || names[2] != "zeta" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestManager_Discover_SkipsBadPlugins(t *testing.T) {
	root := t.TempDir()

	bad := filepath.Join(root, "bad")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, ManifestFile), []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, root, "nameless", Manifest{Executable: "x"})
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, root, "good", Manifest{Name: "good", Executable: "good"})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if n := len(manager.List()); n != 1 {
		t.Fatalf("expected only the valid plugin, got %d", n)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, "a", Manifest{Name: "a", Executable: "a"})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Get("a"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("removed plugin still listed: %v", err)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Fatal("expected no plugins")
	}
	if manager.PluginDir() != "/path/that/does/not/exist" {
		t.Errorf("unexpected plugin dir %q", manager.PluginDir())
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir())

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManifest_SupportsAnyWhenUnlisted(t *testing.T) {
	if !(Manifest{}).Supports("anything") {
		t.Error("manifest without actions should accept any action")
	}
}
