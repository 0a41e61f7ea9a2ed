package plugin

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

// QueueSize is the number of fires the dispatcher buffers before dropping.
const QueueSize = 16

// Finder resolves a plugin by name. *Manager implements it.
type Finder interface {
	Get(name string) (*Plugin, error)
}

// Runner executes a plugin request. *Executor implements it.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Stats counts dispatcher outcomes.
type Stats struct {
	Executed uint64 `json:"executed"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
}

type job struct {
	binding Binding
	update  session.Update
}

// Dispatcher turns fired gestures into plugin runs. It observes sessions and
// hands work to a single worker so that plugin latency never blocks frame
// processing. When the queue is full the fire is dropped.
type Dispatcher struct {
	plugins Finder
	runner  Runner
	queue   chan job

	mu       sync.RWMutex
	bindings Bindings

	executed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewDispatcher creates a dispatcher. Call Run to start executing.
func NewDispatcher(plugins Finder, runner Runner, bindings Bindings) *Dispatcher {
	if bindings == nil {
		bindings = Bindings{}
	}
	return &Dispatcher{
		plugins:  plugins,
		runner:   runner,
		queue:    make(chan job, QueueSize),
		bindings: bindings,
	}
}

// SetBindings replaces the gesture bindings.
func (d *Dispatcher) SetBindings(b Bindings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings = b
}

// Binding returns the binding for l.
func (d *Dispatcher) Binding(l gesture.Label) (Binding, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.bindings[l]
	return b, ok
}

// Observe enqueues bound fires. It never blocks.
func (d *Dispatcher) Observe(u session.Update) {
	l, ok := u.Fire()
	if !ok {
		return
	}
	b, ok := d.Binding(l)
	if !ok {
		return
	}

	select {
	case d.queue <- job{binding: b, update: u}:
	default:
		d.dropped.Add(1)
		log.Printf("[dispatch] queue full, dropping %s", l)
	}
}

// Run executes queued fires until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-d.queue:
			d.execute(ctx, j)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	b := j.binding

	p, err := d.plugins.Get(b.Plugin)
	if err != nil {
		d.failed.Add(1)
		log.Printf("[dispatch] %s: %v", b.Gesture, err)
		return
	}
	if !p.Manifest.Supports(b.Action) {
		d.failed.Add(1)
		log.Printf("[dispatch] %s: plugin %s has no action %q", b.Gesture, b.Plugin, b.Action)
		return
	}

	resp, err := d.runner.Execute(ctx, p, &Request{
		Action:     b.Action,
		Gesture:    string(b.Gesture),
		Confidence: j.update.Live.Confidence,
		SessionID:  j.update.SessionID,
		Params:     b.Params,
	})
	if err != nil {
		d.failed.Add(1)
		log.Printf("[dispatch] %s -> %s/%s: %v", b.Gesture, b.Plugin, b.Action, err)
		return
	}
	if !resp.Success {
		d.failed.Add(1)
		log.Printf("[dispatch] %s -> %s/%s failed: %s", b.Gesture, b.Plugin, b.Action, resp.Error)
		return
	}
	d.executed.Add(1)
}

// Stats returns the outcome counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Executed: d.executed.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}
