package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCeiling         = 5
	DefaultNoticeTimeout   = 5 * time.Second
	DefaultGrace           = 300 * time.Millisecond
	DefaultRefreshInterval = 10 * time.Second
	DefaultFetchTimeout    = 10 * time.Second
	DefaultWelcomeDelay    = time.Second
	DefaultWelcomeTimeout  = 8 * time.Second
	DefaultWelcomeMessage  = "Welcome to EdgeSensorWave Admin!"
)

// Validate checks everything that would otherwise fail later during wiring.
// It is used both at startup and as the hot-reload validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Notices.Ceiling < 0 {
		return fmt.Errorf("notices.ceiling must be >= 0")
	}

	durations := []struct{ path, raw string }{
		{"http.read_timeout", cfg.HTTP.ReadTimeout},
		{"http.write_timeout", cfg.HTTP.WriteTimeout},
		{"http.idle_timeout", cfg.HTTP.IdleTimeout},
		{"notices.default_timeout", cfg.Notices.DefaultTimeout},
		{"notices.grace", cfg.Notices.Grace},
		{"refresh.default_interval", cfg.Refresh.DefaultInterval},
		{"refresh.fetch_timeout", cfg.Refresh.FetchTimeout},
		{"welcome.delay", cfg.Welcome.Delay},
		{"welcome.timeout", cfg.Welcome.Timeout},
	}
	if cfg.Storage != nil {
		durations = append(durations, struct{ path, raw string }{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	for i, t := range cfg.Refresh.Tasks {
		key := strings.TrimSpace(t.Key)
		if key == "" {
			return fmt.Errorf("refresh.tasks[%d].key is required", i)
		}
		if strings.TrimSpace(t.Source) == "" {
			return fmt.Errorf("refresh.tasks[%d].source is required", i)
		}
		if seen[key] {
			return fmt.Errorf("refresh.tasks[%d]: duplicate key %q", i, key)
		}
		seen[key] = true
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "memory", "file", "sqlite", "sqlite3", "redis":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
	}

	if m := cfg.Mirror; m != nil && m.Enabled {
		if strings.TrimSpace(m.Token) == "" {
			return errors.New("mirror.token is required when mirror is enabled")
		}
		if m.ChatID == 0 {
			return errors.New("mirror.chat_id is required when mirror is enabled")
		}
	}
	return nil
}

// CeilingOrDefault returns the visible notice ceiling.
func (n NoticesConfig) CeilingOrDefault() int {
	if n.Ceiling <= 0 {
		return DefaultCeiling
	}
	return n.Ceiling
}

func (n NoticesConfig) TimeoutOrDefault() time.Duration {
	return durationOr(n.DefaultTimeout, DefaultNoticeTimeout)
}

func (n NoticesConfig) GraceOrDefault() time.Duration {
	return durationOr(n.Grace, DefaultGrace)
}

func (r RefreshConfig) IntervalOrDefault() time.Duration {
	return durationOr(r.DefaultInterval, DefaultRefreshInterval)
}

func (r RefreshConfig) FetchTimeoutOrDefault() time.Duration {
	return durationOr(r.FetchTimeout, DefaultFetchTimeout)
}

func (w WelcomeConfig) DelayOrDefault() time.Duration {
	return durationOr(w.Delay, DefaultWelcomeDelay)
}

func (w WelcomeConfig) TimeoutOrDefault() time.Duration {
	return durationOr(w.Timeout, DefaultWelcomeTimeout)
}

func (w WelcomeConfig) MessageOrDefault() string {
	if m := strings.TrimSpace(w.Message); m != "" {
		return m
	}
	return DefaultWelcomeMessage
}
