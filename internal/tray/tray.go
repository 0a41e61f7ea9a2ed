// Package tray provides the system tray menu for PalmChef local mode.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

// Tray shows the detection state and the latest fire, and lets the user
// toggle detection. It is a session observer.
type Tray struct {
	mu        sync.RWMutex
	onToggle  func(enabled bool)
	onOpen    func()
	onQuit    func()
	enabled   bool
	last      gesture.Label
	live      gesture.Classification
	dashboard string

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLive   *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a tray with detection enabled. dashboard is shown as the
// tooltip of the open item.
func New(dashboard string) *Tray {
	return &Tray{enabled: true, last: gesture.None, live: gesture.Unclassified, dashboard: dashboard}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the dashboard menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("PalmChef")
	systray.SetTooltip("PalmChef hands-free recipe control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture detection")
	systray.AddSeparator()
	t.menuLive = systray.AddMenuItem(liveTitle(t.live), "Current estimate")
	t.menuLive.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last fired gesture")
	t.menuLast.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open Dashboard...", t.dashboard)
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit PalmChef")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuOpen.ClickedCh:
				t.mu.RLock()
				fn := t.onOpen
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
			case <-menuQuit.ClickedCh:
				t.mu.RLock()
				fn := t.onQuit
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// Toggle flips the enabled state and calls the toggle callback.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// Observe updates the live and last-fired menu items.
func (t *Tray) Observe(u session.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Live != t.live {
		t.live = u.Live
		if t.menuLive != nil {
			t.menuLive.SetTitle(liveTitle(u.Live))
		}
	}
	if l, ok := u.Fire(); ok {
		t.last = l
		if t.menuLast != nil {
			t.menuLast.SetTitle(lastTitle(l))
		}
	}
}

// LastGesture returns the most recent fire, or None.
func (t *Tray) LastGesture() gesture.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func liveTitle(c gesture.Classification) string {
	if c.Gesture == gesture.None {
		return "Live: -"
	}
	state := "stabilizing"
	if c.Locked() {
		state = "locked"
	}
	return fmt.Sprintf("Live: %s (%s)", c.Gesture.Description(), state)
}

func lastTitle(l gesture.Label) string {
	if l == gesture.None {
		return "Last: none"
	}
	return "Last: " + l.Description()
}
