package notice

import (
	"strings"
	"time"
)

// Handle identifies a published notice. The zero Handle means nothing was published.
type Handle string

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity reports whether s names a known severity.
func ParseSeverity(s string) (Severity, bool) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return v, true
	}
	return SeverityInfo, false
}

// Rank orders severities for threshold checks (info < success < warning < error).
func (s Severity) Rank() int {
	switch s {
	case SeveritySuccess:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	}
	return 0
}

type State string

const (
	StateActive  State = "active"
	StateClosing State = "closing"
	StatePurged  State = "purged"
)

type Notice struct {
	ID        Handle        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	Timeout   time.Duration `json:"timeout"`
	CreatedAt time.Time     `json:"created_at"`
	State     State         `json:"state"`
}

// Surface is where notices become visible.
//
// Ready reports whether the notice container exists. Leave starts the exit
// transition; Unmount removes the notice for good.
type Surface interface {
	Ready() bool
	Mount(n Notice) error
	Leave(id Handle)
	Unmount(id Handle)
}

type Config struct {
	Ceiling        int
	DefaultTimeout time.Duration
	Grace          time.Duration
}

const (
	DefaultCeiling = 5
	DefaultTimeout = 5 * time.Second
	DefaultGrace   = 300 * time.Millisecond
)

// DefaultConfig returns the stock ceiling, timeout and grace period. A zero
// Config keeps the ceiling default but disables the timeout and the grace period.
func DefaultConfig() Config {
	return Config{Ceiling: DefaultCeiling, DefaultTimeout: DefaultTimeout, Grace: DefaultGrace}
}

func (c Config) normalized() Config {
	if c.Ceiling <= 0 {
		c.Ceiling = DefaultCeiling
	}
	if c.DefaultTimeout < 0 {
		c.DefaultTimeout = 0
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	return c
}
