package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "300ms", "10s", "1m").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	HTTP    HTTPConfig    `json:"http"`
	Notices NoticesConfig `json:"notices"`
	Refresh RefreshConfig `json:"refresh"`

	// Regions are declared in the page model at startup so configured refresh
	// tasks have a target to write into.
	Regions []string `json:"regions,omitempty"`

	Welcome WelcomeConfig  `json:"welcome"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Mirror  *MirrorConfig  `json:"mirror,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Notice  LoggingNotice `json:"notice"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingNotice surfaces error log lines as dashboard notices.
type LoggingNotice struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Message    string `json:"message,omitempty"`
}

// HTTPConfig controls the dashboard API server.
//
// Defaults:
//   - addr: "127.0.0.1:8080"
//   - read_timeout: "15s"
//   - write_timeout: "0s" (disabled, the event stream is long-lived)
//   - idle_timeout: "60s"
type HTTPConfig struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Pprof mounts net/http/pprof under /debug/pprof. A non-loopback addr
	// requires PprofToken (sent as "Authorization: Bearer <token>").
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"` // do not log
}

// NoticesConfig controls the notification manager.
//
// Defaults: ceiling 5, default_timeout "5s", grace "300ms".
type NoticesConfig struct {
	Ceiling        int    `json:"ceiling,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	Grace          string `json:"grace,omitempty"`
}

// RefreshConfig controls the refresh scheduler.
//
// Enabled is a pointer so an omitted key keeps auto-refresh on.
type RefreshConfig struct {
	Enabled         *bool  `json:"enabled,omitempty"`
	DefaultInterval string `json:"default_interval,omitempty"`
	FetchTimeout    string `json:"fetch_timeout,omitempty"`
	// BaseURL resolves relative task sources (e.g. "/api/metrics").
	BaseURL string `json:"base_url,omitempty"`
	// NotifyFailures surfaces failed fetches as error notices.
	NotifyFailures bool                `json:"notify_failures,omitempty"`
	Tasks          []RefreshTaskConfig `json:"tasks,omitempty"`
}

// RefreshTaskConfig declares a task started with the app.
//
// Schedule accepts the same forms as refresh.ParseSchedule. Empty means the
// default interval.
type RefreshTaskConfig struct {
	Key      string `json:"key"`
	Source   string `json:"source"`
	Schedule string `json:"schedule,omitempty"`
}

// WelcomeConfig controls the one-time first-visit notice. It is on unless
// disabled.
type WelcomeConfig struct {
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
	Delay    string `json:"delay,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// StorageConfig controls the key-value preference store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/edgeadmin.db" }
//	"storage": { "driver": "redis", "addr": "127.0.0.1:6379", "prefix": "edgeadmin:" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only

	Addr     string `json:"addr,omitempty"`     // redis only
	Password string `json:"password,omitempty"` // redis only (do not log)
	DB       int    `json:"db,omitempty"`       // redis only
	Prefix   string `json:"prefix,omitempty"`   // redis only
}

// MirrorConfig forwards notices to a Telegram chat.
type MirrorConfig struct {
	Enabled     bool   `json:"enabled"`
	Token       string `json:"token,omitempty"` // do not log
	ChatID      int64  `json:"chat_id"`
	ThreadID    int    `json:"thread_id,omitempty"`
	MinSeverity string `json:"min_severity,omitempty"` // default "warning"
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// RefreshEnabled reports the effective auto-refresh switch.
func (c *Config) RefreshEnabled() bool {
	if c == nil || c.Refresh.Enabled == nil {
		return true
	}
	return *c.Refresh.Enabled
}
