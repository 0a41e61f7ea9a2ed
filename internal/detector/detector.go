package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect. The gesture
	// pipeline only reads the first hand.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleTimeout stops the tracking subprocess after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns the single-hand settings used for gesture control.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.6,
		IdleTimeout:     30 * time.Second,
	}
}
