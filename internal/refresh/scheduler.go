package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	logx "edgeadmin/pkg/logx"
)

var ErrClosed = errors.New("refresh: scheduler closed")

// Scheduler runs at most one periodic fetch-and-replace task per region key.
//
// The global flag gates the fetch of every tick. Disabling also tears down all
// tasks; enabling does not bring them back.
type Scheduler struct {
	fetch    Fetcher
	regions  Regions
	notifier Notifier
	bus      eventbus.Bus
	log      logx.Logger

	// root outlives individual tasks so stopping a task never aborts its
	// in-flight fetch.
	root       context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	cfg     Config
	enabled bool
	closed  bool
	tasks   map[string]*task
	seq     uint64
}

type task struct {
	id       uint64
	key      string
	source   string
	schedule string
	sched    cron.Schedule
	cancel   context.CancelFunc
	info     TaskInfo
}

type Option func(*Scheduler)

func WithBus(b eventbus.Bus) Option { return func(s *Scheduler) { s.bus = b } }

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }

func WithNotifier(n Notifier) Option { return func(s *Scheduler) { s.notifier = n } }

// WithEnabled sets the initial global flag (default true).
func WithEnabled(enabled bool) Option { return func(s *Scheduler) { s.enabled = enabled } }

func New(fetch Fetcher, regions Regions, cfg Config, opts ...Option) *Scheduler {
	root, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		fetch:      fetch,
		regions:    regions,
		bus:        eventbus.Nop{},
		root:       root,
		cancelRoot: cancel,
		cfg:        cfg.normalized(),
		enabled:    true,
		tasks:      map[string]*task{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logx.String("comp", "refresh"))
	return s
}

// Apply swaps interval and timeout defaults. Running tasks keep their schedule.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.normalized()
	s.mu.Unlock()
}

// Start replaces any task under key with one fetching source every interval.
// interval <= 0 uses the default interval.
func (s *Scheduler) Start(key, source string, interval time.Duration) error {
	s.mu.Lock()
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}
	s.mu.Unlock()
	return s.start(key, source, interval.String(), every(interval))
}

// StartSchedule is Start with a schedule string (see ParseSchedule). An empty
// schedule uses the default interval.
func (s *Scheduler) StartSchedule(key, source, schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return s.Start(key, source, 0)
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	return s.start(key, source, spec.String(), spec.Schedule())
}

func (s *Scheduler) start(key, source, desc string, sched cron.Schedule) error {
	key = strings.TrimSpace(key)
	source = strings.TrimSpace(source)
	if key == "" {
		return errors.New("refresh: key required")
	}
	if source == "" {
		return errors.New("refresh: source required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	// Cancel and register under one lock so at most one task per key exists.
	s.stopLocked(key, "replaced")

	ctx, cancel := context.WithCancel(s.root)
	s.seq++
	t := &task{
		id:       s.seq,
		key:      key,
		source:   source,
		schedule: desc,
		sched:    sched,
		cancel:   cancel,
		info: TaskInfo{
			Key:       key,
			Source:    source,
			Schedule:  desc,
			StartedAt: time.Now(),
		},
	}
	s.tasks[key] = t
	s.wg.Add(1)
	go s.run(ctx, t)

	s.log.Debug("refresh task started", logx.String("key", key), logx.String("source", source), logx.String("schedule", desc))
	s.bus.Publish(eventbus.Event{Type: eventbus.RefreshStarted, Data: t.info})
	return nil
}

// Stop cancels the task under key. It is a no-op when no task exists.
func (s *Scheduler) Stop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(key, "stopped")
}

func (s *Scheduler) stopLocked(key, reason string) {
	t := s.tasks[key]
	if t == nil {
		return
	}
	t.cancel()
	delete(s.tasks, key)
	s.log.Debug("refresh task stopped", logx.String("key", key), logx.String("reason", reason))
	s.bus.Publish(eventbus.Event{Type: eventbus.RefreshStopped, Data: map[string]string{"key": key, "reason": reason}})
}

// SetGlobalEnabled sets the tick gate. Disabling also stops every task.
func (s *Scheduler) SetGlobalEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		for key := range s.tasks {
			s.stopLocked(key, "disabled")
		}
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.RefreshToggled, Data: map[string]bool{"enabled": enabled}})
}

// Pause gates ticks without stopping tasks (page hidden).
func (s *Scheduler) Pause() { s.setFlag(false) }

// Resume reopens the gate after Pause (page visible again).
func (s *Scheduler) Resume() { s.setFlag(true) }

func (s *Scheduler) setFlag(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Toggle flips the global flag and tells the operator.
func (s *Scheduler) Toggle() bool {
	s.mu.Lock()
	next := !s.enabled
	s.mu.Unlock()

	s.SetGlobalEnabled(next)
	if s.notifier != nil {
		if next {
			s.notifier.Notify("Auto-refresh enabled", notice.SeveritySuccess)
		} else {
			s.notifier.Notify("Auto-refresh disabled", notice.SeverityInfo)
		}
	}
	return next
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Tasks returns running tasks sorted by key.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close stops every task and waits for their goroutines, including any
// in-flight fetch, until ctx is done.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for key := range s.tasks {
		s.stopLocked(key, "closed")
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancelRoot()
		return nil
	case <-ctx.Done():
		s.cancelRoot()
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	defer s.wg.Done()
	timer := time.NewTimer(time.Until(t.sched.Next(time.Now())))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.tick(t)
		if ctx.Err() != nil {
			return
		}
		timer.Reset(time.Until(t.sched.Next(time.Now())))
	}
}

func (s *Scheduler) currentLocked(t *task) bool { return s.tasks[t.key] == t }

func (s *Scheduler) tick(t *task) {
	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return
	}
	t.info.LastTick = time.Now()
	if !s.enabled {
		t.info.Skipped++
		s.mu.Unlock()
		s.bus.Publish(eventbus.Event{Type: eventbus.RefreshSkipped, Data: map[string]string{"key": t.key}})
		return
	}
	if s.regions == nil || !s.regions.Exists(t.key) {
		s.stopLocked(t.key, "region gone")
		s.mu.Unlock()
		return
	}
	t.info.Ticks++
	timeout := s.cfg.FetchTimeout
	notify := s.cfg.NotifyFailures
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(s.root, timeout)
	started := time.Now()
	c, err := s.fetch.Fetch(fctx, t.source)
	cancel()
	res := TickResult{Key: t.key, Source: t.source, Took: time.Since(started), Bytes: len(c.Body)}

	s.mu.Lock()
	current := s.currentLocked(t)
	if current {
		if err != nil {
			t.info.Failures++
			t.info.LastError = err.Error()
		} else {
			t.info.LastOK = time.Now()
			t.info.LastError = ""
		}
	}
	s.mu.Unlock()

	if !current {
		s.log.Debug("refresh result discarded (task replaced or stopped)", logx.String("key", t.key), logx.String("source", t.source))
		return
	}
	if err != nil {
		res.Error = err.Error()
		s.log.Warn("auto-refresh failed", logx.String("key", t.key), logx.String("source", t.source), logx.Err(err))
		s.bus.Publish(eventbus.Event{Type: eventbus.RefreshFailed, Data: res})
		if notify && s.notifier != nil {
			s.notifier.Notify(fmt.Sprintf("Auto-refresh failed for %s: %v", t.key, err), notice.SeverityError)
		}
		return
	}
	if err := s.regions.Replace(t.key, c); err != nil {
		s.log.Debug("region replace failed", logx.String("key", t.key), logx.Err(err))
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.RefreshReplaced, Data: res})
}
