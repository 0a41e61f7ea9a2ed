// Package report draws session timelines: the live confidence of each
// gesture over time and the points where a gesture fired.
package report

import (
	"errors"
	"time"

	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

// ErrNoSamples is returned when there is nothing to draw.
var ErrNoSamples = errors.New("no samples to render")

// Sample is one point on the timeline.
type Sample struct {
	Offset time.Duration
	Live   gesture.Classification
	Fired  gesture.Label
}

// FromUpdate converts a session update.
func FromUpdate(u session.Update) Sample {
	return Sample{Offset: u.Offset, Live: u.Live, Fired: u.Fired}
}

// FromEvents converts stored fire events. The live estimate of each sample is
// the fired gesture at the recorded confidence.
func FromEvents(events []*store.Event) []Sample {
	samples := make([]Sample, 0, len(events))
	for _, e := range events {
		l := gesture.Label(e.Gesture)
		samples = append(samples, Sample{
			Offset: e.Offset,
			Live:   gesture.Classification{Gesture: l, Confidence: e.Confidence},
			Fired:  l,
		})
	}
	return samples
}

// Collector is a session observer that keeps every update as a Sample.
type Collector struct {
	samples []Sample
}

// Observe records u.
func (c *Collector) Observe(u session.Update) {
	c.samples = append(c.samples, FromUpdate(u))
}

// Samples returns what was collected so far.
func (c *Collector) Samples() []Sample {
	return c.samples
}

type series struct {
	live  map[gesture.Label][][2]float64
	fires [][2]float64
	names []string
}

// split groups samples into one live series per gesture plus the fire points.
// NONE samples are dropped from the live series.
func split(samples []Sample) series {
	s := series{live: make(map[gesture.Label][][2]float64)}
	for _, smp := range samples {
		x := smp.Offset.Seconds()
		if smp.Live.Gesture != gesture.None && smp.Live.Gesture != "" {
			s.live[smp.Live.Gesture] = append(s.live[smp.Live.Gesture], [2]float64{x, smp.Live.Confidence})
		}
		if _, ok := (gesture.Output{Fired: smp.Fired}).Fire(); ok {
			s.fires = append(s.fires, [2]float64{x, smp.Live.Confidence})
			s.names = append(s.names, string(smp.Fired))
		}
	}
	return s
}
