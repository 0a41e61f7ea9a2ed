package app

import (
	"log"
	"time"

	"github.com/ayusman/palmchef/internal/capture"
	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/session"
)

// idleInterval is the tick period while no motion is seen.
const idleInterval = time.Second / capture.IdleFPS

// runPipeline reads a frame per tick. While idle it only looks for motion.
// Motion switches to active mode, where every tick runs hand detection and
// feeds the session at the throttle interval. After IdleTimeout without
// motion the loop returns to idle and the session is reset.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	gate := capture.NewGate(a.config.IdleTimeout)
	activeInterval := a.activeInterval()

	ticker := time.NewTicker(idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				if gate.Active() {
					gate.Reset()
					ticker.Reset(idleInterval)
				}
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			moved, _ := a.motion.Detect(frame)
			switch gate.Update(moved, now) {
			case capture.Activated:
				a.camera.SetFPS(capture.FPSFor(activeInterval))
				ticker.Reset(activeInterval)
				log.Println("Switched to active mode")
			case capture.Idled:
				a.camera.SetFPS(capture.IdleFPS)
				ticker.Reset(idleInterval)
				a.session.Reset(now)
				log.Println("Switched to idle mode")
			}

			if !gate.Active() {
				frame.Close()
				continue
			}

			d := a.Detector()
			if d == nil {
				frame.Close()
				continue
			}
			hands, err := d.Detect(frame)
			frame.Close()
			if err != nil {
				log.Printf("Error detecting hands: %v", err)
				continue
			}

			a.processHands(hands, now)
		}
	}
}

// processHands feeds one detection result to the session. Only the first
// hand is used; no hand resets the session.
func (a *App) processHands(hands []detector.HandLandmarks, now time.Time) (session.Update, bool) {
	return a.session.HandleHands(hands, now)
}

// activeInterval is the session throttle, or the default when throttling is
// disabled.
func (a *App) activeInterval() time.Duration {
	if iv := a.session.Config().Throttle; iv > 0 {
		return iv
	}
	return session.DefaultThrottle
}
