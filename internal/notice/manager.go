package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"edgeadmin/internal/eventbus"
	logx "edgeadmin/pkg/logx"
)

// Manager keeps a bounded FIFO of live notices.
//
// Publish evicts the oldest entries while the live count is at the ceiling.
// Dismiss moves an entry to Closing; it stays live (and evictable) until the
// grace period ends.
type Manager struct {
	surface Surface
	bus     eventbus.Bus
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	entries []*entry
	byID    map[Handle]*entry
	closed  bool
}

type entry struct {
	n      Notice
	expire *time.Timer
	grace  *time.Timer
}

type Option func(*Manager)

func WithBus(b eventbus.Bus) Option { return func(m *Manager) { m.bus = b } }

func WithLogger(log logx.Logger) Option { return func(m *Manager) { m.log = log } }

func NewManager(surface Surface, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		surface: surface,
		bus:     eventbus.Nop{},
		cfg:     cfg.normalized(),
		byID:    map[Handle]*entry{},
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(logx.String("comp", "notice"))
	return m
}

// Apply swaps the runtime config. A lower ceiling is enforced on the next publish.
func (m *Manager) Apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg.normalized()
	m.mu.Unlock()
}

// Notify publishes with the configured default timeout.
func (m *Manager) Notify(message string, severity Severity) Handle {
	m.mu.Lock()
	d := m.cfg.DefaultTimeout
	m.mu.Unlock()
	return m.Publish(message, severity, d)
}

// Publish shows a notice. timeout <= 0 disables auto-dismiss. It returns the
// zero Handle when the surface has no container.
func (m *Manager) Publish(message string, severity Severity, timeout time.Duration) Handle {
	if sev, ok := ParseSeverity(string(severity)); ok {
		severity = sev
	} else {
		severity = SeverityInfo
	}
	if timeout < 0 {
		timeout = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.surface == nil || !m.syncSurfaceLocked() {
		return ""
	}

	for len(m.entries) >= m.cfg.Ceiling {
		m.evictLocked(m.entries[0])
	}

	n := Notice{
		ID:        Handle(uuid.NewString()),
		Message:   message,
		Severity:  severity,
		Timeout:   timeout,
		CreatedAt: time.Now(),
		State:     StateActive,
	}
	if err := m.surface.Mount(n); err != nil {
		m.log.Debug("notice mount failed", logx.Err(err))
		return ""
	}
	e := &entry{n: n}
	m.entries = append(m.entries, e)
	m.byID[n.ID] = e
	if timeout > 0 {
		id := n.ID
		e.expire = time.AfterFunc(timeout, func() { m.Dismiss(id) })
	}
	m.bus.Publish(eventbus.Event{Type: eventbus.NoticePublished, Data: n})
	return n.ID
}

// Dismiss starts the exit transition. Unknown, closing and purged handles are ignored.
func (m *Manager) Dismiss(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSurfaceLocked()
	e := m.byID[h]
	if e == nil || e.n.State != StateActive {
		return
	}
	e.n.State = StateClosing
	if e.expire != nil {
		e.expire.Stop()
	}
	m.surface.Leave(h)
	m.bus.Publish(eventbus.Event{Type: eventbus.NoticeClosing, Data: e.n})

	if m.cfg.Grace <= 0 || m.closed {
		m.purgeLocked(e)
		return
	}
	e.grace = time.AfterFunc(m.cfg.Grace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// The entry may have been evicted while closing.
		if m.byID[h] == e {
			m.purgeLocked(e)
		}
	})
}

func (m *Manager) evictLocked(e *entry) {
	if e.expire != nil {
		e.expire.Stop()
	}
	if e.grace != nil {
		e.grace.Stop()
	}
	m.removeLocked(e)
	m.surface.Unmount(e.n.ID)
	m.bus.Publish(eventbus.Event{Type: eventbus.NoticeEvicted, Data: e.n})
}

func (m *Manager) purgeLocked(e *entry) {
	m.removeLocked(e)
	m.surface.Unmount(e.n.ID)
	m.bus.Publish(eventbus.Event{Type: eventbus.NoticePurged, Data: e.n})
}

// syncSurfaceLocked reports whether the surface is ready. Once its container
// is gone every entry is purged, since none of them is on screen anymore.
func (m *Manager) syncSurfaceLocked() bool {
	if m.surface == nil {
		return false
	}
	if m.surface.Ready() {
		return true
	}
	for len(m.entries) > 0 {
		e := m.entries[0]
		if e.expire != nil {
			e.expire.Stop()
		}
		if e.grace != nil {
			e.grace.Stop()
		}
		m.purgeLocked(e)
	}
	return false
}

func (m *Manager) removeLocked(e *entry) {
	e.n.State = StatePurged
	delete(m.byID, e.n.ID)
	for i, x := range m.entries {
		if x == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

// Live returns the live notices (active and closing) in FIFO order.
func (m *Manager) Live() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSurfaceLocked()
	out := make([]Notice, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.n)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSurfaceLocked()
	return len(m.entries)
}

func (m *Manager) Get(h Handle) (Notice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSurfaceLocked()
	e := m.byID[h]
	if e == nil {
		return Notice{}, false
	}
	return e.n, true
}

// Close stops every pending timer. Later publishes are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, e := range m.entries {
		if e.expire != nil {
			e.expire.Stop()
		}
		if e.grace != nil {
			e.grace.Stop()
		}
	}
}
