package refresh

import (
	"context"
	"time"

	"edgeadmin/internal/notice"
)

// Content is a fetched region body.
type Content struct {
	Body        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Fetcher retrieves the content of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (Content, error)
}

// Regions is the write side of the page model.
type Regions interface {
	Exists(key string) bool
	Replace(key string, c Content) error
}

// Notifier surfaces scheduler messages to the operator.
type Notifier interface {
	Notify(message string, severity notice.Severity) notice.Handle
}

type Config struct {
	DefaultInterval time.Duration
	FetchTimeout    time.Duration
	// NotifyFailures publishes an error notice for every failed fetch.
	NotifyFailures bool
}

const (
	DefaultInterval     = 10 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

func (c Config) normalized() Config {
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = DefaultInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

// TaskInfo is a snapshot of a running task.
type TaskInfo struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	Schedule  string    `json:"schedule"`
	StartedAt time.Time `json:"started_at"`
	LastTick  time.Time `json:"last_tick,omitzero"`
	LastOK    time.Time `json:"last_ok,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Ticks     uint64    `json:"ticks"`
	Skipped   uint64    `json:"skipped"`
	Failures  uint64    `json:"failures"`
}

// TickResult is the payload of refresh.replaced and refresh.failed events.
type TickResult struct {
	Key    string        `json:"key"`
	Source string        `json:"source"`
	Took   time.Duration `json:"took"`
	Bytes  int           `json:"bytes,omitempty"`
	Error  string        `json:"error,omitempty"`
}
