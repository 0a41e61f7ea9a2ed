// Package notify shows a desktop notification for every fired gesture.
package notify

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/ayusman/palmchef/internal/session"
)

const appName = "PalmChef"

// Notifier is a session observer that announces fires.
type Notifier struct {
	mu      sync.RWMutex
	enabled bool
	send    func(title, message string) error
}

// New creates a Notifier backed by beeep.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Observe notifies in the background so the session is never held up by
// the desktop notification service.
func (n *Notifier) Observe(u session.Update) {
	l, ok := u.Fire()
	if !ok {
		return
	}

	n.mu.RLock()
	enabled, send := n.enabled, n.send
	n.mu.RUnlock()
	if !enabled {
		return
	}

	title := appName + ": " + l.Description()
	message := fmt.Sprintf("%s gesture (%.0f%%, %d votes)", l, u.Live.Confidence*100, u.Votes)
	go func() {
		if err := send(title, message); err != nil {
			log.Printf("[notify] %v", err)
		}
	}()
}
