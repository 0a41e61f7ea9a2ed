package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

// palmRun feeds an open palm through a replay session every 130ms.
func palmRun(t *testing.T, frames int) []Sample {
	t.Helper()
	col := &Collector{}
	s, err := session.New(session.DefaultConfig(session.SourceReplay), col)
	require.NoError(t, err)

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	palm := detector.OpenPalmLandmarks().Points
	for i := 0; i < frames; i++ {
		s.HandleFrame(palm, start.Add(time.Duration(i*130)*time.Millisecond))
	}
	return col.Samples()
}

func TestCollector(t *testing.T) {
	samples := palmRun(t, 6)
	require.Len(t, samples, 6)
	assert.Equal(t, time.Duration(0), samples[0].Offset)
	assert.Equal(t, gesture.Next, samples[4].Fired)
	assert.Equal(t, 520*time.Millisecond, samples[4].Offset)
}

func TestSplit(t *testing.T) {
	s := split([]Sample{
		{Offset: 0, Live: gesture.Unclassified, Fired: gesture.None},
		{Offset: time.Second, Live: gesture.Classification{Gesture: gesture.Prev, Confidence: 0.85}, Fired: gesture.None},
		{Offset: 2 * time.Second, Live: gesture.Classification{Gesture: gesture.Prev, Confidence: 0.85}, Fired: gesture.Prev},
	})

	assert.Len(t, s.live, 1)
	assert.Len(t, s.live[gesture.Prev], 2)
	assert.Equal(t, [][2]float64{{2, 0.85}}, s.fires)
	assert.Equal(t, []string{"PREV"}, s.names)
}

func TestFromEvents(t *testing.T) {
	samples := FromEvents([]*store.Event{
		{Gesture: "TIMER", Confidence: 0.9, Offset: 3 * time.Second},
	})
	require.Len(t, samples, 1)
	assert.Equal(t, gesture.Timer, samples[0].Fired)
	assert.Equal(t, gesture.Classification{Gesture: gesture.Timer, Confidence: 0.9}, samples[0].Live)
	assert.Equal(t, 3*time.Second, samples[0].Offset)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "Palm run", palmRun(t, 12)))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "expected a full page")
	assert.Contains(t, html, "Palm run")
	assert.Contains(t, html, "NEXT")
	assert.Contains(t, html, "fired")
}

func TestRenderPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.png")
	require.NoError(t, RenderPNG(path, "Palm run", palmRun(t, 12)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected a PNG file")
}

func TestRender_Empty(t *testing.T) {
	assert.ErrorIs(t, RenderHTML(&bytes.Buffer{}, "empty", nil), ErrNoSamples)
	assert.ErrorIs(t, RenderPNG(filepath.Join(t.TempDir(), "x.png"), "empty", nil), ErrNoSamples)
}
