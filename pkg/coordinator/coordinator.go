// Package coordinator turns asynchronous change signals into pipeline runs.
//
// Signals are debounced on the trailing edge, each kind with its own
// window; a new signal restarts the pending timer. Every run gets a
// generation number and only the newest generation may publish. A run that
// has been superseded keeps going, so its fetches still warm the cache,
// but its report is dropped.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/mapdiff/pkg/batch"
	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
	"github.com/vanderheijden86/mapdiff/pkg/watcher"
)

// Runner executes one run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.Report
}

// Signal identifies why a run was scheduled.
type Signal int

const (
	SignalMutation Signal = iota
	SignalNavigation
	SignalSettings
)

func (s Signal) String() string {
	switch s {
	case SignalMutation:
		return "mutation"
	case SignalNavigation:
		return "navigation"
	case SignalSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWindows sets the debounce windows. Zero windows keep their defaults.
func WithWindows(w config.DebounceConfig) Option {
	return func(c *Coordinator) {
		if w.Mutation > 0 {
			c.windows.Mutation = w.Mutation
		}
		if w.Navigation > 0 {
			c.windows.Navigation = w.Navigation
		}
		if w.Settings > 0 {
			c.windows.Settings = w.Settings
		}
		if w.PollInterval > 0 {
			c.windows.PollInterval = w.PollInterval
		}
	}
}

// WithPublish sets the report consumer. It is called from run goroutines,
// one report at a time, in increasing generation order.
func WithPublish(fn func(*pipeline.Report)) Option {
	return func(c *Coordinator) { c.publish = fn }
}

// WithProgress sets the progress consumer. Progress of superseded runs is
// dropped.
func WithProgress(fn func(generation uint64, p batch.Progress)) Option {
	return func(c *Coordinator) { c.progress = fn }
}

// WithOnNavigate is called as soon as a navigation is observed, before the
// debounced run, so presentation can clear results for the old location.
func WithOnNavigate(fn func(model.FilterContext)) Option {
	return func(c *Coordinator) { c.onNavigate = fn }
}

// Coordinator schedules pipeline runs. It is safe for concurrent use.
type Coordinator struct {
	runner     Runner
	windows    config.DebounceConfig
	debouncer  *watcher.Debouncer
	publish    func(*pipeline.Report)
	progress   func(uint64, batch.Progress)
	onNavigate func(model.FilterContext)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	generation atomic.Uint64
	published  atomic.Uint64

	mu       sync.Mutex
	location model.FilterContext
	settings config.Settings

	publishMu sync.Mutex
}

// New creates a Coordinator for the initial location and settings. Runs
// are bound to ctx; Close waits for them.
func New(ctx context.Context, runner Runner, location model.FilterContext, settings config.Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		runner:     runner,
		windows:    config.DefaultConfig().Debounce,
		publish:    func(*pipeline.Report) {},
		onNavigate: func(model.FilterContext) {},
		location:   location,
		settings:   settings,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.debouncer = watcher.NewDebouncer(c.windows.Mutation)
	return c
}

// OnDataMutated schedules a run after the mutation window.
func (c *Coordinator) OnDataMutated() {
	c.schedule(SignalMutation)
}

// OnNavigation records the new location and schedules a run after the
// navigation window.
func (c *Coordinator) OnNavigation(location model.FilterContext) {
	c.mu.Lock()
	c.location = location
	c.mu.Unlock()
	c.onNavigate(location)
	c.schedule(SignalNavigation)
}

// OnSettingsChanged records the new settings and schedules a run after the
// settings window.
func (c *Coordinator) OnSettingsChanged(settings config.Settings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	c.schedule(SignalSettings)
}

// RunNow starts a run immediately, cancelling any pending debounced run.
// It returns the run's generation.
func (c *Coordinator) RunNow() uint64 {
	c.debouncer.Cancel()
	return c.start(SignalMutation)
}

// Location returns the most recently observed location.
func (c *Coordinator) Location() model.FilterContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// Settings returns the settings the next run will use.
func (c *Coordinator) Settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Generation returns the newest generation handed out.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Published returns the generation of the last published report.
func (c *Coordinator) Published() uint64 {
	return c.published.Load()
}

// IsCurrent reports whether generation is still the newest run.
func (c *Coordinator) IsCurrent(generation uint64) bool {
	return c.generation.Load() == generation
}

// Close cancels pending and running work and waits for run goroutines.
func (c *Coordinator) Close() {
	c.debouncer.Cancel()
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) window(s Signal) time.Duration {
	switch s {
	case SignalNavigation:
		return c.windows.Navigation
	case SignalSettings:
		return c.windows.Settings
	default:
		return c.windows.Mutation
	}
}

func (c *Coordinator) schedule(s Signal) {
	if c.ctx.Err() != nil {
		return
	}
	d := c.window(s)
	debug.Log("coordinator: %s signal, run in %v", s, d)
	c.debouncer.TriggerAfter(d, func() { c.start(s) })
}

func (c *Coordinator) start(s Signal) uint64 {
	gen := c.generation.Add(1)
	if c.ctx.Err() != nil {
		return gen
	}

	c.mu.Lock()
	req := pipeline.Request{
		Generation: gen,
		Location:   c.location,
		Settings:   c.settings,
	}
	c.mu.Unlock()
	if c.progress != nil {
		req.Progress = func(p batch.Progress) {
			if c.IsCurrent(gen) {
				c.progress(gen, p)
			}
		}
	}

	debug.Log("coordinator: run %d started (%s, %s)", gen, s, req.Location)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		report := c.runner.Run(c.ctx, req)
		c.deliver(gen, report)
	}()
	return gen
}

// deliver publishes report if its run is still current. The check and the
// publish happen under one lock so an older report can never overwrite a
// newer one.
func (c *Coordinator) deliver(gen uint64, report *pipeline.Report) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	if !c.IsCurrent(gen) || c.ctx.Err() != nil {
		debug.Log("coordinator: run %d superseded by %d, discarded", gen, c.generation.Load())
		return
	}
	c.published.Store(gen)
	c.publish(report)
}
