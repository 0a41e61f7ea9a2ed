package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

type fakeFinder map[string]*Plugin

func (f fakeFinder) Get(name string) (*Plugin, error) {
	p, ok := f[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []Request
	resp     *Response
	err      error
	block    chan struct{}
	done     chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{resp: &Response{Success: true}, done: make(chan struct{}, 64)}
}

func (r *fakeRunner) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.requests = append(r.requests, *req)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.resp, r.err
}

func (r *fakeRunner) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}
}

func keyboard() fakeFinder {
	return fakeFinder{KeyboardPlugin: {Manifest: Manifest{Name: KeyboardPlugin, Actions: []string{"keystroke", "keycode"}}}}
}

func fired(l gesture.Label) session.Update {
	return session.Update{
		SessionID: "s1",
		Live:      gesture.Classification{Gesture: l, Confidence: 0.85},
		Fired:     l,
	}
}

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestDispatcher_ExecutesBoundFires(t *testing.T) {
	runner := newFakeRunner()
	d := NewDispatcher(keyboard(), runner, DefaultBindings())
	startDispatcher(t, d)

	d.Observe(fired(gesture.Next))
	d.Observe(fired(gesture.Repeat))
	runner.wait(t, 2)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.requests, 2)
	assert.Equal(t, "keycode", runner.requests[0].Action)
	assert.Equal(t, "NEXT", runner.requests[0].Gesture)
	assert.JSONEq(t, `{"code":124}`, string(runner.requests[0].Params))
	assert.Equal(t, "s1", runner.requests[0].SessionID)
	assert.InDelta(t, 0.85, runner.requests[0].Confidence, 1e-9)
	assert.JSONEq(t, `{"key":"r"}`, string(runner.requests[1].Params))

	assert.Eventually(t, func() bool { return d.Stats().Executed == 2 }, time.Second, 10*time.Millisecond)
}

func TestDispatcher_IgnoresLiveAndUnbound(t *testing.T) {
	runner := newFakeRunner()
	d := NewDispatcher(keyboard(), runner, Bindings{gesture.Next: DefaultBindings()[gesture.Next]})
	startDispatcher(t, d)

	d.Observe(session.Update{Live: gesture.Classification{Gesture: gesture.Next, Confidence: 0.9}, Fired: gesture.None})
	d.Observe(fired(gesture.Timer))
	d.Observe(fired(gesture.Next))
	runner.wait(t, 1)

	select {
	case <-runner.done:
		t.Fatal("unexpected extra run")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, Stats{Executed: 1}, d.Stats())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	d := NewDispatcher(keyboard(), runner, DefaultBindings())

	// Without a worker nothing drains the queue.
	for i := 0; i < QueueSize+5; i++ {
		d.Observe(fired(gesture.Prev))
	}
	assert.Equal(t, uint64(5), d.Stats().Dropped)

	close(runner.block)
	startDispatcher(t, d)
	runner.wait(t, QueueSize)
}

func TestDispatcher_Failures(t *testing.T) {
	t.Run("missing plugin", func(t *testing.T) {
		runner := newFakeRunner()
		d := NewDispatcher(fakeFinder{}, runner, DefaultBindings())
		startDispatcher(t, d)

		d.Observe(fired(gesture.Next))
		assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("unsupported action", func(t *testing.T) {
		runner := newFakeRunner()
		finder := fakeFinder{KeyboardPlugin: {Manifest: Manifest{Name: KeyboardPlugin, Actions: []string{"shortcut"}}}}
		d := NewDispatcher(finder, runner, DefaultBindings())
		startDispatcher(t, d)

		d.Observe(fired(gesture.Next))
		assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("run error", func(t *testing.T) {
		runner := newFakeRunner()
		runner.err = errors.New("boom")
		d := NewDispatcher(keyboard(), runner, DefaultBindings())
		startDispatcher(t, d)

		d.Observe(fired(gesture.Timer))
		runner.wait(t, 1)
		assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("plugin reports failure", func(t *testing.T) {
		runner := newFakeRunner()
		runner.resp = &Response{Success: false, Error: "no focus"}
		d := NewDispatcher(keyboard(), runner, DefaultBindings())
		startDispatcher(t, d)

		d.Observe(fired(gesture.Timer))
		runner.wait(t, 1)
		assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, 10*time.Millisecond)
	})
}

func TestDispatcher_WithExecutor(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "got.json")
	plugin := scriptPlugin(t, "record", "cat > "+out+"\necho '{\"success\":true}'\n")
	plugin.Manifest.Name = KeyboardPlugin

	d := NewDispatcher(fakeFinder{KeyboardPlugin: plugin}, NewExecutor(5*time.Second), DefaultBindings())
	startDispatcher(t, d)

	d.Observe(fired(gesture.Prev))
	require.Eventually(t, func() bool { return d.Stats().Executed == 1 }, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gesture":"PREV"`)
	assert.Contains(t, string(data), `"code":123`)
}

func TestBindings(t *testing.T) {
	t.Run("defaults cover every gesture", func(t *testing.T) {
		b := DefaultBindings()
		for _, l := range gesture.Labels {
			got, ok := b[l]
			require.True(t, ok, "missing binding for %s", l)
			assert.Equal(t, KeyboardPlugin, got.Plugin)
			assert.Equal(t, l, got.Gesture)
		}
		_, ok := b[gesture.None]
		assert.False(t, ok)
	})

	t.Run("load file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bindings.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"gesture":"next","plugin":"keyboard","action":"keystroke","params":{"key":"j"}},
			{"gesture":"TIMER","plugin":"timer","action":"toggle"}
		]`), 0644))

		b, err := LoadBindings(path)
		require.NoError(t, err)
		require.Len(t, b, 2)
		assert.Equal(t, gesture.Next, b[gesture.Next].Gesture)
		assert.JSONEq(t, `{"key":"j"}`, string(b[gesture.Next].Params))
		assert.Equal(t, "timer", b[gesture.Timer].Plugin)
	})

	t.Run("rejects bad entries", func(t *testing.T) {
		cases := map[string]string{
			"unknown gesture": `[{"gesture":"WAVE","plugin":"k","action":"a"}]`,
			"none":            `[{"gesture":"NONE","plugin":"k","action":"a"}]`,
			"missing action":  `[{"gesture":"NEXT","plugin":"k"}]`,
			"not json":        `{`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "bindings.json")
				require.NoError(t, os.WriteFile(path, []byte(body), 0644))
				_, err := LoadBindings(path)
				assert.Error(t, err)
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBindings(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
